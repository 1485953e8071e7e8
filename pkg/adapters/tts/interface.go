package tts

import (
	"context"

	"github.com/harunnryd/interviewer/pkg/frames"
)

// StreamingTTS defines the contract for a speech synthesizer.
//
// Results emits AudioFrames for the current utterance followed by a
// ControlAudioReady frame once the utterance is fully synthesized.
type StreamingTTS interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Start initializes the TTS connection.
	Start(ctx context.Context) error
	// Close shuts down the TTS connection.
	Close() error
	// SendText sends one complete utterance to be synthesized.
	SendText(text string) error
	// Flush stops current synthesis and clears buffered audio.
	Flush()
	// Results returns a channel of audio/control frames.
	Results() <-chan frames.Frame
}

// Factory creates the synthesizer for a session.
type Factory func(sessionID string) StreamingTTS

