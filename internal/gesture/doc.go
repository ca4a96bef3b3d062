// Package gesture turns hand landmarks into pinch readings and a smoothed
// draw point.
package gesture
