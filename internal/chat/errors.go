package chat

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrNotCached is returned by Client.ResolvePeer when the id is not in the
	// client's entity cache.
	ErrNotCached = errors.New("chat: entity not in cache")

	// ErrEntityNotFound is returned by the Resolver when a chat cannot be found
	// even after refreshing the dialog list.
	ErrEntityNotFound = errors.New("chat: entity not found")

	// ErrTopicNotFound is returned when a topic name does not match any topic.
	ErrTopicNotFound = errors.New("chat: topic not found")
)

// FloodWaitError reports that the platform requires a pause of Seconds before
// any further call.
type FloodWaitError struct {
	Seconds int
	Op      string
}

func (e *FloodWaitError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: FLOOD_WAIT: retry after %d seconds", e.Op, e.Seconds)
	}
	return fmt.Sprintf("FLOOD_WAIT: retry after %d seconds", e.Seconds)
}

// APIError is a non rate-limit error reported by the platform.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

var retryAfterPattern = regexp.MustCompile(
	`(?i)(?:flood_wait_(\d+)\b|\bretry after (\d+)\b|\ba wait of (\d+) seconds?\b)`,
)

// RetryAfter extracts a wait duration in seconds from err. It recognises
// *FloodWaitError anywhere in the chain and falls back to the textual shapes
// platforms use ("FLOOD_WAIT_45", "retry after 45", "A wait of 45 seconds").
func RetryAfter(err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Seconds, true
	}

	m := retryAfterPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	for _, group := range m[1:] {
		if group == "" {
			continue
		}
		seconds, convErr := strconv.Atoi(group)
		if convErr != nil {
			return 0, false
		}
		return seconds, true
	}
	return 0, false
}

var alreadyDoneMarkers = []string{
	"already exists",
	"already_exists",
	"already participant",
	"user_already_participant",
	"not modified",
	"not_modified",
	"already closed",
	"already open",
	"duplicate",
}

// IsAlreadyDone reports whether err carries a platform *APIError saying the
// requested side effect is already in place. Errors raised outside the
// platform, such as this service's own storage errors, never qualify.
func IsAlreadyDone(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	msg := strings.ToLower(apiErr.Code + " " + apiErr.Message)
	for _, marker := range alreadyDoneMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
