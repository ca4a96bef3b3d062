package detector

import (
	"context"
	"errors"

	"gocv.io/x/gocv"
)

// ErrUnavailable is returned when the detection backend cannot be started.
var ErrUnavailable = errors.New("hand detector unavailable")

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Load prepares the underlying model. It blocks until the model is
	// ready or has failed to load.
	Load(ctx context.Context) error

	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
// Drawing only ever follows one hand.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}

// Unavailable returns a Detector that always fails with err. It stands in
// when no backend could be created, so callers see a failed load rather
// than a missing detector.
func Unavailable(err error) Detector {
	return unavailable{err: err}
}

type unavailable struct{ err error }

func (u unavailable) Load(context.Context) error { return u.err }
func (u unavailable) Detect(*gocv.Mat) ([]HandLandmarks, error) { return nil, u.err }
func (u unavailable) Close() error { return nil }
