package auth

import "errors"

var (
	// ErrInvalidToken indicates a malformed token, a bad signature or a wrong
	// token type.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token has expired.
	ErrExpiredToken = errors.New("token expired")

	// ErrTokenNotYetValid indicates the token's nbf or iat is in the future.
	ErrTokenNotYetValid = errors.New("token not yet valid")

	// ErrWeakSecret is returned for signing secrets shorter than MinSecretLength.
	ErrWeakSecret = errors.New("trigger secret must be at least 32 characters")
)
