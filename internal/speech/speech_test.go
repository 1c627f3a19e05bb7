package speech

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestStub(t *testing.T) {
	ctx := context.Background()

	got, err := Stub{}.Transcribe(ctx, strings.NewReader("RIFF...."))
	if err != nil || got != DefaultTranscript {
		t.Fatalf("default transcript: %q %v", got, err)
	}

	got, err = Stub{Transcript: "hello"}.Transcribe(ctx, bytes.NewReader([]byte{1, 2, 3}))
	if err != nil || got != "hello" {
		t.Fatalf("configured transcript: %q %v", got, err)
	}

	if _, err := (Stub{}).Transcribe(ctx, strings.NewReader("")); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := (Stub{}).Transcribe(cctx, strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
