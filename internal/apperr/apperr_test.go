package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	err := fmt.Errorf("save audio: %w", User("No selected file"))

	msg, ok := UserMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "No selected file", msg)

	_, ok = UserMessage(errors.New("boom"))
	assert.False(t, ok)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote(Remote("gemini", 500, "internal")))
	assert.True(t, IsRemote(fmt.Errorf("generate: %w", Network("post", errors.New("reset")))))
	assert.False(t, IsRemote(Transient("save reply", errors.New("disk full"))))
	assert.False(t, IsRemote(User("nope")))
	assert.False(t, IsRemote(errors.New("disk full")))
}

func TestErrorStrings(t *testing.T) {
	assert.Equal(t, "gemini api error 429: quota", Remote("gemini", 429, "quota").Error())
	assert.Equal(t, "tts: empty audio", Remote("tts", 0, "empty audio").Error())

	cause := errors.New("connection refused")
	err := Transient("upload file", cause)
	assert.Equal(t, "upload file: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Transient("noop", nil))
	assert.Nil(t, Network("noop", nil))
}
