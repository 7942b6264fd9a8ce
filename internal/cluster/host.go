package cluster

// Host is the map the organizer attaches layers and controls to.
type Host interface {
	AddLayer(l Layer)
	RemoveLayer(l Layer)
	HasLayer(l Layer) bool
	EachLayer(fn func(Layer))

	Control() *ToggleControl
	SetControl(c *ToggleControl)
}

// MapHost is an in-memory Host keeping layers in attachment order.
type MapHost struct {
	layers   []Layer
	attached map[Layer]struct{}
	control  *ToggleControl
}

// NewMapHost returns an empty host.
func NewMapHost() *MapHost {
	return &MapHost{attached: make(map[Layer]struct{})}
}

// AddLayer attaches l. Attaching an attached layer does nothing.
func (h *MapHost) AddLayer(l Layer) {
	if _, ok := h.attached[l]; ok {
		return
	}
	h.attached[l] = struct{}{}
	h.layers = append(h.layers, l)
}

// RemoveLayer detaches l if attached.
func (h *MapHost) RemoveLayer(l Layer) {
	if _, ok := h.attached[l]; !ok {
		return
	}
	delete(h.attached, l)
	for i, al := range h.layers {
		if al == l {
			h.layers = append(h.layers[:i], h.layers[i+1:]...)
			break
		}
	}
}

// HasLayer reports whether l is attached.
func (h *MapHost) HasLayer(l Layer) bool {
	_, ok := h.attached[l]
	return ok
}

// EachLayer calls fn for every attached layer. fn may attach or detach layers.
func (h *MapHost) EachLayer(fn func(Layer)) {
	for _, l := range append([]Layer(nil), h.layers...) {
		fn(l)
	}
}

// Len returns the number of attached layers.
func (h *MapHost) Len() int { return len(h.layers) }

// Control returns the toggle control, nil when none is shown.
func (h *MapHost) Control() *ToggleControl { return h.control }

// SetControl replaces the toggle control. nil removes it.
func (h *MapHost) SetControl(c *ToggleControl) { h.control = c }
