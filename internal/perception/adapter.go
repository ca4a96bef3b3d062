// Package perception sits between the frame source and the hand
// detector. It tracks whether the model is usable, skips frames it has
// already seen and never lets two detections overlap.
package perception

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingerbrush/internal/detector"
)

var (
	// ErrNotReady is returned while the model is loading or after it
	// failed to load.
	ErrNotReady = errors.New("perception not ready")
	// ErrBusy is returned when a detection is already running.
	ErrBusy = errors.New("detection in flight")
)

// Status is the model readiness.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "loading"
	}
}

// LandmarkFrame is the detection result for one source frame. Hand is
// nil when no hand was found.
type LandmarkFrame struct {
	Hand      *detector.HandLandmarks
	Timestamp time.Time
}

// Adapter wraps a Detector. Safe for concurrent use.
type Adapter struct {
	det    detector.Detector
	logger *slog.Logger

	mu       sync.Mutex
	status   Status
	loadErr  error
	last     time.Time
	seen     bool
	inFlight bool
}

// NewAdapter creates an adapter in the loading state.
func NewAdapter(det detector.Detector, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{det: det, logger: logger}
}

// Load loads the model and blocks until it is ready or has failed.
func (a *Adapter) Load(ctx context.Context) error {
	a.mu.Lock()
	a.status = StatusLoading
	a.loadErr = nil
	a.mu.Unlock()

	start := time.Now()
	err := a.det.Load(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.status = StatusFailed
		a.loadErr = err
		a.logger.Warn("hand detector failed to load", "error", err)
		return fmt.Errorf("load detector: %w", err)
	}
	a.status = StatusReady
	a.logger.Info("hand detector ready", "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// Status returns the readiness and, when failed, the load error.
func (a *Adapter) Status() (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status, a.loadErr
}

// Ready reports whether detections can be submitted.
func (a *Adapter) Ready() bool {
	s, _ := a.Status()
	return s == StatusReady
}

// Submit runs detection on frame. It returns ok=false without calling
// the detector when ts equals the timestamp of the previous submission.
// Caller timestamps must increase monotonically.
func (a *Adapter) Submit(frame *gocv.Mat, ts time.Time) (LandmarkFrame, bool, error) {
	a.mu.Lock()
	if a.status != StatusReady {
		a.mu.Unlock()
		return LandmarkFrame{}, false, ErrNotReady
	}
	if a.seen && ts.Equal(a.last) {
		a.mu.Unlock()
		return LandmarkFrame{}, false, nil
	}
	if a.inFlight {
		a.mu.Unlock()
		return LandmarkFrame{}, false, ErrBusy
	}
	a.inFlight = true
	a.last = ts
	a.seen = true
	a.mu.Unlock()

	hands, err := a.det.Detect(frame)

	a.mu.Lock()
	a.inFlight = false
	a.mu.Unlock()

	if err != nil {
		return LandmarkFrame{}, false, fmt.Errorf("detect: %w", err)
	}

	out := LandmarkFrame{Timestamp: ts}
	for i := range hands {
		if hands[i].Valid() {
			hand := hands[i]
			out.Hand = &hand
			break
		}
	}
	return out, true, nil
}

// InFlight reports whether a detection is running.
func (a *Adapter) InFlight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight
}

// ResetTimestamps forgets the last seen timestamp, for use after the
// frame source restarts.
func (a *Adapter) ResetTimestamps() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = false
	a.last = time.Time{}
}

// Close releases the detector.
func (a *Adapter) Close() error {
	return a.det.Close()
}
