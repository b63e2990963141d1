package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"Nil", nil, ""},
		{"Topic", domain.ErrTopicRejected, domain.RefusalMessage},
		{"Wrapped Topic", fmt.Errorf("gate: %w", domain.ErrTopicRejected), domain.RefusalMessage},
		{"Model", fmt.Errorf("%w: quota exceeded", domain.ErrModelFailure), "⚠️ Error from model: quota exceeded"},
		{"Empty Response", domain.ErrEmptyResponse, "⚠️ Error from model: model returned an empty response"},
		{"Decode", fmt.Errorf("%w: image: unknown format", domain.ErrDecodeFailed), "⚠️ Error: image decode failed: image: unknown format"},
		{"Empty Input", domain.ErrEmptyInput, "⚠️ Error: " + domain.ErrEmptyInput.Error()},
		{"Unknown", errors.New("boom"), domain.GenericFailureMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.UserMessage(tt.err))
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", domain.Kind(nil))
	assert.Equal(t, "topic_rejected", domain.Kind(domain.ErrTopicRejected))
	assert.Equal(t, "decode_failed", domain.Kind(fmt.Errorf("%w: x", domain.ErrDecodeFailed)))
	assert.Equal(t, "empty_response", domain.Kind(domain.ErrEmptyResponse))
	assert.Equal(t, "model_failure", domain.Kind(fmt.Errorf("%w: x", domain.ErrModelFailure)))
	assert.Equal(t, "internal", domain.Kind(errors.New("other")))
}

func TestNormalizedInput_UserMessage(t *testing.T) {
	img := &domain.Image{Data: []byte{0xff}, MIMEType: "image/jpeg"}

	msg := domain.NormalizedInput{Text: "what pest is this?", Image: img}.UserMessage()
	assert.Equal(t, domain.RoleUser, msg.Role)
	if assert.Len(t, msg.Parts, 2) {
		assert.Equal(t, domain.PartImage, msg.Parts[0].Kind)
		assert.Equal(t, domain.PartText, msg.Parts[1].Kind)
	}

	msg = domain.NormalizedInput{Text: "soil pH?"}.UserMessage()
	assert.Len(t, msg.Parts, 1)
	assert.Equal(t, "soil pH?", msg.Text())
	assert.NoError(t, msg.Validate())
	assert.ErrorIs(t, domain.Message{Role: domain.RoleModel}.Validate(), domain.ErrEmptyMessage)
}
