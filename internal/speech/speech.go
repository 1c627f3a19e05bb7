// Package speech defines the speech-to-text boundary. Only a stub
// implementation ships; a real provider plugs in behind Transcriber.
package speech

import (
	"context"
	"errors"
	"io"
)

// DefaultTranscript is what Stub returns when no transcript is configured.
const DefaultTranscript = "This is a simulated transcription of the audio. A real deployment would call a speech-to-text service."

// ErrEmptyAudio is returned for a zero-length clip.
var ErrEmptyAudio = errors.New("empty audio")

// Transcriber converts an audio clip to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader) (string, error)
}

// Stub consumes the audio and returns a fixed transcript.
type Stub struct {
	Transcript string
}

func (s Stub) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	if audio == nil {
		return "", ErrEmptyAudio
	}
	n, err := io.Copy(io.Discard, audio)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrEmptyAudio
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Transcript == "" {
		return DefaultTranscript, nil
	}
	return s.Transcript, nil
}
