package stt

import (
	"context"

	"github.com/harunnryd/interviewer/pkg/frames"
)

// StreamingSTT defines the contract for a continuous speech recognizer.
//
// Results emits TextFrames (interim and final, see frames.TextFrame.IsFinal),
// ControlFlush at utterance boundaries and ControlError on provider failure.
// The channel is closed when the recognition stream ends, expected or not.
type StreamingSTT interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Start opens the recognition stream.
	Start(ctx context.Context) error
	// Close shuts the stream down.
	Close() error
	// SendAudio forwards captured audio to the recognizer.
	SendAudio(frame frames.AudioFrame) error
	// Results returns a channel of transcription/control frames.
	Results() <-chan frames.Frame
}

// Factory creates a fresh recognizer for one listening session.
type Factory func(sessionID string) StreamingSTT

