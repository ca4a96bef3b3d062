package capture

import "time"

// Pacer switches the capture rate between an idle and an active frame
// rate. Activity raises the rate immediately; the rate drops back only
// after IdleTimeout without activity.
type Pacer struct {
	idleFPS      int
	activeFPS    int
	idleTimeout  time.Duration
	active       bool
	lastActivity time.Time
}

// NewPacer creates a pacer in the idle state.
func NewPacer(idleFPS, activeFPS int, idleTimeout time.Duration) *Pacer {
	if idleFPS <= 0 {
		idleFPS = DefaultFPS
	}
	if activeFPS < idleFPS {
		activeFPS = idleFPS
	}
	return &Pacer{idleFPS: idleFPS, activeFPS: activeFPS, idleTimeout: idleTimeout}
}

// Observe records whether there was activity at now and returns the
// frame rate to use and whether it changed.
func (p *Pacer) Observe(activity bool, now time.Time) (fps int, changed bool) {
	if activity {
		p.lastActivity = now
		if !p.active {
			p.active = true
			return p.activeFPS, true
		}
		return p.activeFPS, false
	}

	if p.active && now.Sub(p.lastActivity) > p.idleTimeout {
		p.active = false
		return p.idleFPS, true
	}
	return p.FPS(), false
}

// FPS returns the current frame rate.
func (p *Pacer) FPS() int {
	if p.active {
		return p.activeFPS
	}
	return p.idleFPS
}

// Active reports whether the pacer is in the active state.
func (p *Pacer) Active() bool { return p.active }
