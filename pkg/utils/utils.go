package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	DecodeBase64Audio(data string) ([]byte, error)
	ValidateAudioPayload(data []byte) error
}

type utils struct {
	maxAudioSize int
}

func New() IUtils {
	return &utils{
		maxAudioSize: 10 * 1024 * 1024,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// DecodeBase64Audio accepts plain base64 or data URLs ("data:audio/wav;base64,...").
func (u *utils) DecodeBase64Audio(data string) ([]byte, error) {
	if idx := strings.IndexByte(data, ','); idx >= 0 {
		data = data[idx+1:]
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errors.New("invalid base64 audio data")
	}

	return decoded, nil
}

func (u *utils) ValidateAudioPayload(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty audio payload")
	}

	if len(data) > u.maxAudioSize {
		return errors.New("audio payload exceeds size limit")
	}

	return nil
}
