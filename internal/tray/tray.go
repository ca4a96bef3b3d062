// Package tray provides a system tray menu for the drawing app.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/fingerbrush/internal/stroke"
)

// Tray represents the system tray application.
type Tray struct {
	onMode  func(mode stroke.InputMode) error
	onFlip  func()
	onClear func()
	onOpen  func()
	onQuit  func()

	mode             stroke.InputMode
	gestureAvailable bool
	mu               sync.RWMutex

	// Menu items stored for later updates
	menuMode *systray.MenuItem
}

// New creates a new Tray showing mode as the armed input mode.
func New(mode stroke.InputMode) *Tray {
	return &Tray{
		mode:             mode,
		gestureAvailable: true,
	}
}

// OnModeToggle sets the callback called with the requested mode when the
// mode item is clicked. A non-nil error keeps the current mode.
func (t *Tray) OnModeToggle(fn func(mode stroke.InputMode) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMode = fn
}

// OnFlipCamera sets the callback for the flip camera item.
func (t *Tray) OnFlipCamera(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFlip = fn
}

// OnClear sets the callback for the clear canvas item.
func (t *Tray) OnClear(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClear = fn
}

// OnOpen sets the callback for the open canvas item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Fingerbrush")
	systray.SetTooltip("Fingerbrush - draw with a pinch")

	t.mu.Lock()
	t.menuMode = systray.AddMenuItem(modeTitle(t.mode), "Switch between gesture and touch input")
	if !t.gestureAvailable {
		t.menuMode.Disable()
	}
	t.mu.Unlock()

	menuFlip := systray.AddMenuItem("Flip Camera", "Switch between front and rear camera")
	menuClear := systray.AddMenuItem("Clear Canvas", "Erase the drawing")
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Canvas...", "Open the canvas in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Fingerbrush")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuMode.ClickedCh:
				t.handleModeToggle()
			case <-menuFlip.ClickedCh:
				t.call(t.onFlip)
			case <-menuClear.ClickedCh:
				t.call(t.onClear)
			case <-menuOpen.ClickedCh:
				t.call(t.onOpen)
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handleModeToggle asks for the other mode and updates the title when
// the switch is accepted.
func (t *Tray) handleModeToggle() {
	t.mu.RLock()
	next := nextMode(t.mode)
	callback := t.onMode
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		if err := callback(next); err != nil {
			return
		}
	}
	t.SetMode(next)
}

func (t *Tray) call(fn func()) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if fn != nil {
		go fn()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetMode updates the mode shown in the menu.
func (t *Tray) SetMode(mode stroke.InputMode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.mode = mode
	if t.menuMode != nil {
		t.menuMode.SetTitle(modeTitle(mode))
	}
}

// SetGestureAvailable enables or disables the mode toggle.
func (t *Tray) SetGestureAvailable(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gestureAvailable = ok
	if t.menuMode == nil {
		return
	}
	if ok {
		t.menuMode.Enable()
	} else {
		t.menuMode.Disable()
	}
}

// Mode returns the mode shown in the menu.
func (t *Tray) Mode() stroke.InputMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

func modeTitle(mode stroke.InputMode) string {
	if mode == stroke.Touch {
		return "Mode: Touch"
	}
	return "Mode: Gesture"
}

func nextMode(mode stroke.InputMode) stroke.InputMode {
	if mode == stroke.Touch {
		return stroke.Gesture
	}
	return stroke.Touch
}
