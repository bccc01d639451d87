package executor

import (
	"errors"

	"github.com/phrazzld/eco-queue/internal/chat"
	"github.com/phrazzld/eco-queue/internal/domain"
	"github.com/phrazzld/eco-queue/internal/redact"
)

// Kind is the class of a task execution result.
type Kind string

// Execution result kinds
const (
	KindCompleted   Kind = "completed"
	KindSkipped     Kind = "skipped"
	KindRateLimited Kind = "rate_limited"
	KindFailed      Kind = "failed"
)

// Classification is the dispatcher-facing view of an execution error.
type Classification struct {
	Kind Kind
	// Wait is the platform-imposed pause in seconds, set for KindRateLimited.
	Wait int
	// Note is the redacted error text, empty for KindCompleted.
	Note string
}

// Classify maps an executor error to a Classification. A rate-limit wait
// takes precedence over "already done" wording in the same message. Only a
// platform refusal or a duplicate ecosystem is skip-class; anything else,
// including storage errors after a partial saga, is a failure.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Kind: KindCompleted}
	}
	if seconds, ok := chat.RetryAfter(err); ok {
		if seconds < 1 {
			seconds = 1
		}
		return Classification{Kind: KindRateLimited, Wait: seconds, Note: redact.ErrorText(err)}
	}
	if chat.IsAlreadyDone(err) || errors.Is(err, domain.ErrDuplicateEcosystem) {
		return Classification{Kind: KindSkipped, Note: redact.ErrorText(err)}
	}
	return Classification{Kind: KindFailed, Note: redact.ErrorText(err)}
}
