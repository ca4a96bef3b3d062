package geometry

// Mapper caches the cover transform between a source and the drawing
// surface. The transform is only recomputed when the source size, the
// surface size or the mirror flag changes, never from per-frame data.
type Mapper struct {
	source    Size
	target    Size
	mirror    bool
	transform Transform
	ok        bool
}

// NewMapper creates a Mapper for the given surface size.
func NewMapper(target Size, mirror bool) *Mapper {
	m := &Mapper{target: target, mirror: mirror}
	m.recompute()
	return m
}

// SetSource records the intrinsic size of the frame source.
// Returns true if the cached transform was recomputed.
func (m *Mapper) SetSource(s Size) bool {
	if s == m.source {
		return false
	}
	m.source = s
	m.recompute()
	return true
}

// Resize records a new drawing-surface size.
func (m *Mapper) Resize(s Size) bool {
	if s == m.target {
		return false
	}
	m.target = s
	m.recompute()
	return true
}

// SetMirror changes horizontal mirroring (front-facing cameras mirror).
func (m *Mapper) SetMirror(mirror bool) bool {
	if mirror == m.mirror {
		return false
	}
	m.mirror = mirror
	m.recompute()
	return true
}

// Transform returns the cached transform and whether it is usable.
func (m *Mapper) Transform() (Transform, bool) {
	return m.transform, m.ok
}

// Map maps a normalized point through the cached transform.
func (m *Mapper) Map(p Point) (Point, bool) {
	if !m.ok {
		return Point{}, false
	}
	return m.transform.Map(p)
}

// Target returns the current drawing-surface size.
func (m *Mapper) Target() Size {
	return m.target
}

func (m *Mapper) recompute() {
	m.transform, m.ok = Cover(m.source, m.target, m.mirror)
}
