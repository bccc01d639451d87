package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityErrorsWrapGenericOnes(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		notFound     bool
		duplicate    bool
		invalidInput bool
	}{
		{name: "ecosystem not found", err: ErrEcosystemNotFound, notFound: true},
		{name: "wrapped ecosystem not found", err: fmt.Errorf("find by title: %w", ErrEcosystemNotFound), notFound: true},
		{name: "short link not found", err: ErrShortLinkNotFound, notFound: true},
		{name: "short code taken", err: ErrShortCodeTaken, duplicate: true},
		{name: "invalid entity", err: fmt.Errorf("upsert: %w", ErrInvalidEntity), invalidInput: true},
		{name: "unrelated", err: errors.New("connection reset")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.notFound, errors.Is(tc.err, ErrNotFound))
			assert.Equal(t, tc.duplicate, errors.Is(tc.err, ErrDuplicate))
			assert.Equal(t, tc.invalidInput, errors.Is(tc.err, ErrInvalidEntity))
		})
	}

	assert.False(t, errors.Is(ErrEcosystemNotFound, ErrShortLinkNotFound))
}
