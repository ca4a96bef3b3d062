package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

var errDetectorClosed = fmt.Errorf("%w: detector closed", ErrUnavailable)

// idleShutdown is how long the Python service may sit unused before it is
// stopped. It is restarted on the next Detect call.
const idleShutdown = 30 * time.Second

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// Wire protocol: each frame is written to stdin as a 4-byte big-endian length
// followed by JPEG bytes; the service answers with one JSON line per frame.
// On startup the service prints a single {"ready": true} line once the model
// has loaded.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	pythonPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	lastUsed   time.Time
	idleTimer  *time.Timer

	// procMu guards proc and closed so Close can reach a process that a
	// Detect call is blocked on while holding mu.
	procMu sync.Mutex
	proc   *os.Process
	closed bool
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started by Load, or lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := findMediaPipeScript()
	if scriptPath == "" {
		return nil, fmt.Errorf("%w: mediapipe_service.py not found", ErrUnavailable)
	}

	// Use virtual environment Python if available
	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
		pythonPath: pythonPath,
	}, nil
}

// Load starts the service and waits for its ready line.
func (d *MediaPipeDetector) Load(ctx context.Context) error {
	if d.isClosed() {
		return errDetectorClosed
	}
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if started {
		return nil
	}

	type result struct {
		svc *service
		err error
	}
	ready := make(chan result, 1)
	go func() {
		svc, err := d.launch()
		ready <- result{svc, err}
	}()

	select {
	case r := <-ready:
		if r.err != nil {
			return r.err
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		d.install(r.svc)
		if !d.started {
			return errDetectorClosed
		}
		return nil
	case <-ctx.Done():
		// The launch keeps running; stop whatever it produces.
		go func() {
			if r := <-ready; r.err == nil {
				r.svc.stop()
			}
		}()
		return ctx.Err()
	}
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		if d.isClosed() {
			return nil, errDetectorClosed
		}
		svc, err := d.launch()
		if err != nil {
			return nil, err
		}
		d.install(svc)
		if !d.started {
			return nil, errDetectorClosed
		}
	}

	// Encode frame as JPEG
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	// Write length (4 bytes big-endian) + data
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	// Read JSON response
	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	n := len(response.Hands)
	if d.config.MaxHands > 0 && n > d.config.MaxHands {
		n = d.config.MaxHands
	}
	result := make([]HandLandmarks, n)
	for i := 0; i < n; i++ {
		result[i] = response.Hands[i].toHandLandmarks()
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return result, nil
}

// Close shuts down the Python process. A detection still waiting on the
// service is abandoned: the process is killed and that call fails.
func (d *MediaPipeDetector) Close() error {
	d.procMu.Lock()
	d.closed = true
	proc := d.proc
	d.procMu.Unlock()

	killed := false
	if !d.mu.TryLock() {
		if proc != nil {
			proc.Kill()
			killed = true
		}
		d.mu.Lock()
	}
	defer d.mu.Unlock()

	err := d.shutdown()
	if killed {
		return nil
	}
	return err
}

func (d *MediaPipeDetector) isClosed() bool {
	d.procMu.Lock()
	defer d.procMu.Unlock()
	return d.closed
}

// service is one running Python process.
type service struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func (s *service) stop() error {
	s.stdin.Close()
	return s.cmd.Wait()
}

// launch starts the service and blocks until it reports ready.
func (d *MediaPipeDetector) launch() (*service, error) {
	cmd := exec.Command(d.pythonPath, d.scriptPath,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mediapipe service: %w", err)
	}

	svc := &service{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}

	line, err := svc.stdout.ReadString('\n')
	if err != nil {
		svc.stop()
		return nil, fmt.Errorf("%w: service exited before ready: %v", ErrUnavailable, err)
	}

	var status struct {
		Ready bool   `json:"ready"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &status); err != nil || !status.Ready {
		svc.stop()
		if status.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, status.Error)
		}
		return nil, fmt.Errorf("%w: unexpected handshake %q", ErrUnavailable, line)
	}

	return svc, nil
}

// install adopts a launched service. Callers must hold d.mu.
func (d *MediaPipeDetector) install(svc *service) {
	d.procMu.Lock()
	defer d.procMu.Unlock()
	if d.started || d.closed {
		// Another caller won the race, or Close ran during the launch.
		svc.stop()
		return
	}
	d.proc = svc.cmd.Process
	d.cmd = svc.cmd
	d.stdin = svc.stdin
	d.stdout = svc.stdout
	d.started = true
	d.lastUsed = time.Now()
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.procMu.Lock()
	d.proc = nil
	d.procMu.Unlock()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

func findMediaPipeScript() string {
	// Get executable directory
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(execDir, "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".fingerbrush/scripts/mediapipe_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
// It checks for venv/bin/python relative to the project directory.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".fingerbrush/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		lm.Points[i] = Point3D{
			X: h.Points[i].X,
			Y: h.Points[i].Y,
			Z: h.Points[i].Z,
		}
	}

	return lm
}
