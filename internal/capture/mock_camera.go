package capture

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// mockFrameInterval spaces the synthetic timestamps of played-back frames.
const mockFrameInterval = 33 * time.Millisecond

// MockCamera plays back pre-recorded frames for testing
type MockCamera struct {
	deviceID int
	frames   []*gocv.Mat
	index    int
	loop     bool
	mu       sync.Mutex
	running  bool
	openErr  error
	fps      int
	clock    time.Time
}

func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
		fps:    DefaultFPS,
		clock:  time.Unix(0, 0),
	}
}

// MockOpener returns an Opener whose cameras play back frames. Devices
// listed in failing refuse to open.
func MockOpener(frames []*gocv.Mat, failing ...int) Opener {
	fail := make(map[int]bool, len(failing))
	for _, id := range failing {
		fail[id] = true
	}
	return func(deviceID int) Camera {
		cam := NewMockCamera(frames, true)
		cam.deviceID = deviceID
		if fail[deviceID] {
			cam.SetOpenError(fmt.Errorf("device %d busy", deviceID))
		}
		return cam
	}
}

// SetOpenError makes Open fail with err.
func (c *MockCamera) SetOpenError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return c.openErr
	}
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if len(c.frames) == 0 {
		return nil, fmt.Errorf("no frames available")
	}

	if c.index >= len(c.frames) {
		if c.loop {
			c.index = 0
		} else {
			return nil, fmt.Errorf("no more frames")
		}
	}

	// Clone the frame so the original isn't modified
	mat := c.frames[c.index].Clone()
	c.index++
	c.clock = c.clock.Add(mockFrameInterval)

	return newFrame(&mat, c.clock), nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *MockCamera) DeviceID() int { return c.deviceID }

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// Reset restarts playback from the beginning
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
}
