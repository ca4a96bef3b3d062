package capture

import "sync"

// FrameSlot holds the most recent frame. Writers replace it, readers get
// clones, so a slow reader never holds up capture.
type FrameSlot struct {
	mu    sync.Mutex
	frame *Frame
}

// Put stores f and closes the frame it replaces. The slot takes
// ownership of f.
func (s *FrameSlot) Put(f *Frame) {
	s.mu.Lock()
	old := s.frame
	s.frame = f
	s.mu.Unlock()

	old.Close()
}

// Snapshot returns a clone of the latest frame, or false if the slot is
// empty. The caller must close the clone.
func (s *FrameSlot) Snapshot() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil || s.frame.Mat == nil {
		return nil, false
	}
	return s.frame.Clone(), true
}

// Clear drops the stored frame.
func (s *FrameSlot) Clear() {
	s.Put(nil)
}
