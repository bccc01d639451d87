// Package auth issues and validates the short-lived HS256 bearer tokens that
// gate the dispatch trigger endpoints. The self-chaining dispatcher signs a
// token for every re-invocation it schedules; the trigger middleware accepts
// either such a token or the raw shared secret.
package auth
