// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a local whisper.cpp server,
// the whisper.cpp CGO bindings, or the OpenAI API) behind a uniform batch
// interface: one utterance clip in, one transcript out. The emotion endpoints
// operate on complete utterances, so batch transcription is the natural
// shape — there is no streaming session to manage.
//
// Implementations must be safe for concurrent use; the HTTP server calls
// Transcribe from many request goroutines at once.
package stt

import (
	"context"
	"errors"

	"github.com/sainte-ai/emotion-engine/pkg/audio"
)

// ErrEmptyAudio is returned by Transcribe when the clip carries no samples.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Transcriber is the abstraction over any STT backend.
type Transcriber interface {
	// Transcribe converts a complete utterance clip into text. The returned
	// transcript is trimmed of leading and trailing whitespace; an empty
	// string with a nil error means the engine heard no speech.
	//
	// Implementations resample and downmix the clip as their engine
	// requires; callers may pass audio in whatever format they decoded.
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
}
