// Package capture provides camera capture functionality using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingerbrush/internal/geometry"
)

// Default camera settings
const (
	DefaultFPS    = 5
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrNoCamera is returned when no device could be opened.
	ErrNoCamera = errors.New("no camera available")
)

// FacingMode says which way the camera points.
type FacingMode string

const (
	// FacingUser is a front camera. Its image is shown mirrored.
	FacingUser FacingMode = "user"
	// FacingEnvironment is a rear camera.
	FacingEnvironment FacingMode = "environment"
)

// ParseFacingMode parses "user" or "environment".
func ParseFacingMode(s string) (FacingMode, error) {
	switch FacingMode(s) {
	case FacingUser, FacingEnvironment:
		return FacingMode(s), nil
	default:
		return FacingUser, fmt.Errorf("unknown facing mode %q", s)
	}
}

// Mirror reports whether frames from this facing are displayed mirrored.
func (f FacingMode) Mirror() bool {
	return f != FacingEnvironment
}

// Other returns the opposite facing.
func (f FacingMode) Other() FacingMode {
	if f == FacingEnvironment {
		return FacingUser
	}
	return FacingEnvironment
}

// Frame is a captured video frame. Timestamps increase strictly for a
// given camera, so a repeated timestamp means a repeated frame.
type Frame struct {
	Mat       *gocv.Mat
	Timestamp time.Time
	Width     int
	Height    int
}

// Size returns the intrinsic frame size.
func (f *Frame) Size() geometry.Size {
	return geometry.Size{Width: f.Width, Height: f.Height}
}

// Clone returns a deep copy that must be closed separately.
func (f *Frame) Clone() *Frame {
	mat := f.Mat.Clone()
	return &Frame{Mat: &mat, Timestamp: f.Timestamp, Width: f.Width, Height: f.Height}
}

// Close releases the frame's Mat. It is safe to call more than once.
func (f *Frame) Close() error {
	if f == nil || f.Mat == nil {
		return nil
	}
	err := f.Mat.Close()
	f.Mat = nil
	return err
}

func newFrame(mat *gocv.Mat, ts time.Time) *Frame {
	return &Frame{Mat: mat, Timestamp: ts, Width: mat.Cols(), Height: mat.Rows()}
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*Frame, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	DeviceID() int
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	deviceID int
	width    int
	height   int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
	last     time.Time
}

// NewCamera creates a new Camera with the given device ID and requested
// resolution. Non-positive sizes use 640x480. The default FPS is 5 until
// the pacer raises it.
func NewCamera(deviceID, width, height int) Camera {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	return &cameraImpl{
		deviceID: deviceID,
		width:    width,
		height:   height,
		fps:      DefaultFPS,
	}
}

// Open opens the camera for capturing frames.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return fmt.Errorf("open device %d: %w", c.deviceID, err)
	}

	// The device may pick a different size; frames report what they got.
	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true
	c.last = time.Time{}

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Frame.
func (c *cameraImpl) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	ts := time.Now()
	if !ts.After(c.last) {
		ts = c.last.Add(time.Nanosecond)
	}
	c.last = ts

	return newFrame(&mat, ts), nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// DeviceID returns the OpenCV device index.
func (c *cameraImpl) DeviceID() int {
	return c.deviceID
}
