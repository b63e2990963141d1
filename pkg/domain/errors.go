package domain

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyInput is returned when neither text nor image was provided.
	ErrEmptyInput = errors.New("empty input: type a question or attach an image")

	// ErrInvalidInput is returned when the text or upload violates input limits.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDecodeFailed is returned when the attached image cannot be decoded.
	ErrDecodeFailed = errors.New("image decode failed")

	// ErrTopicRejected is returned when a text-only query is outside the domain.
	ErrTopicRejected = errors.New("topic rejected")

	// ErrModelFailure wraps any failure signaled by the model provider.
	ErrModelFailure = errors.New("model request failed")

	// ErrEmptyResponse is returned when the model produced nothing usable.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrConversationNotFound is returned by stores that distinguish unknown keys.
	ErrConversationNotFound = errors.New("conversation not found")
)

// Kind labels an error for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTopicRejected):
		return "topic_rejected"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDecodeFailed):
		return "decode_failed"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, ErrModelFailure):
		return "model_failure"
	default:
		return "internal"
	}
}

// UserMessage converts a pipeline error into the text shown to the user.
// The refusal is returned verbatim so clients can special-case it.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTopicRejected):
		return RefusalMessage
	case errors.Is(err, ErrEmptyResponse), errors.Is(err, ErrModelFailure):
		return "⚠️ Error from model: " + detail(err, ErrModelFailure)
	case errors.Is(err, ErrEmptyInput), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrDecodeFailed):
		return "⚠️ Error: " + err.Error()
	default:
		return GenericFailureMessage
	}
}

// detail strips the sentinel prefix so the provider diagnostic reads naturally.
func detail(err error, sentinel error) string {
	msg := err.Error()
	if trimmed := strings.TrimPrefix(msg, sentinel.Error()+": "); trimmed != "" {
		return trimmed
	}
	return msg
}
