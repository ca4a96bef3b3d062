package app

import (
	"time"

	"github.com/ayusman/fingerbrush/internal/capture"
)

// openCamera replaces the current camera with one for preferred facing
// and restarts the capture loop. The old camera is closed first since
// many devices cannot have both open.
func (a *App) openCamera(preferred capture.FacingMode) (capture.FacingMode, error) {
	a.camMu.Lock()
	defer a.camMu.Unlock()

	if a.stopped.Load() {
		return preferred, ErrNotRunning
	}

	a.stopCapture()
	if a.camera != nil {
		if err := a.camera.Close(); err != nil {
			a.logger.Warn("close camera", "error", err)
		}
		a.camera = nil
	}
	a.slot.Clear()
	a.motion.Reset()
	a.adapter.ResetTimestamps()

	cam, facing, err := capture.OpenFacing(a.config.Opener, a.config.Devices, preferred)
	if err != nil {
		return preferred, err
	}
	cam.SetFPS(a.pacer.FPS())

	a.camera = cam
	a.captureStop = make(chan struct{})
	a.captureDone = make(chan struct{})
	go a.captureLoop(cam, a.captureStop, a.captureDone)

	a.logger.Info("camera opened", "device", cam.DeviceID(), "facing", facing)
	return facing, nil
}

// stopCapture stops the capture loop. camMu must be held.
func (a *App) stopCapture() {
	if a.captureStop == nil {
		return
	}
	close(a.captureStop)
	<-a.captureDone
	a.captureStop = nil
	a.captureDone = nil
}

// captureLoop reads frames into the frame slot, switching between the
// idle and active capture rate as motion comes and goes.
func (a *App) captureLoop(cam capture.Camera, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(frameInterval(a.pacer.FPS()))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame, err := cam.ReadFrame()
			if err != nil {
				a.logger.Debug("read frame", "error", err)
				continue
			}

			moving, _ := a.motion.Detect(frame)
			if fps, changed := a.pacer.Observe(moving || a.hand.Load(), time.Now()); changed {
				cam.SetFPS(fps)
				ticker.Reset(frameInterval(fps))
				a.logger.Debug("capture rate changed", "fps", fps)
			}

			a.slot.Put(frame)
		}
	}
}

func (a *App) captureFPS() int {
	a.camMu.Lock()
	defer a.camMu.Unlock()
	if a.camera == nil {
		return 0
	}
	return a.camera.FPS()
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = IdleFPS
	}
	return time.Second / time.Duration(fps)
}
