package chat

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNoPendingPlan    = errors.New("no plan is waiting for approval")
	ErrNoUnit           = errors.New("no unit selected for this conversation")
	ErrTurnInProgress   = errors.New("a message is already being processed")
	ErrQuotaExhausted   = errors.New("daily message limit reached")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrInvalidReference = errors.New("reference points outside the current drafts")
)

// APIError is a failed call to the workout API.
type APIError struct {
	Op      string
	Status  int
	Message string // server supplied, may be empty
	Err     error  // transport failure, if any
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrQuotaExhausted) match rate-limit rejections.
func (e *APIError) Is(target error) bool {
	return target == ErrQuotaExhausted && e.quotaExhausted()
}

func (e *APIError) quotaExhausted() bool {
	if e.Status == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "daily message limit") || strings.Contains(msg, "rate limit")
}

// GeneratorError is an error event reported by the generator mid-stream.
type GeneratorError struct {
	Message string
}

func (e *GeneratorError) Error() string {
	return "generator: " + e.Message
}

// UserMessage turns any failure of a turn or an approval into the single line shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var genErr *GeneratorError
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrQuotaExhausted):
		return "You have used all of today's messages. Come back tomorrow!"
	case errors.Is(err, ErrNoPendingPlan):
		return "There is no plan waiting for approval."
	case errors.Is(err, ErrNoUnit):
		return "Select a unit before chatting."
	case errors.Is(err, ErrTurnInProgress):
		return "Wait for the current answer to finish."
	case errors.Is(err, ErrInvalidReference):
		return "That workout or exercise is no longer in the list."
	case errors.As(err, &genErr):
		return genErr.Message
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	default:
		return "Something went wrong. Please try again."
	}
}
