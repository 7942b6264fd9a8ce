package cluster

import (
	"fmt"
	"sort"
)

// ToggleEntry is one overlay listed by the toggle control.
type ToggleEntry struct {
	Name  string
	Group *DisplayGroup
}

// ToggleControl lists display groups so they can be shown and hidden one by one.
type ToggleControl struct {
	Collapsed bool
	entries   []ToggleEntry
}

// NewToggleControl builds a control from a name to group mapping, sorted by name.
func NewToggleControl(groups map[string]*DisplayGroup) *ToggleControl {
	c := &ToggleControl{entries: make([]ToggleEntry, 0, len(groups))}
	for name, g := range groups {
		c.entries = append(c.entries, ToggleEntry{Name: name, Group: g})
	}
	sort.Slice(c.entries, func(i, j int) bool { return c.entries[i].Name < c.entries[j].Name })
	return c
}

// Entries returns the listed overlays in display order.
func (c *ToggleControl) Entries() []ToggleEntry {
	if c == nil {
		return nil
	}
	return append([]ToggleEntry(nil), c.entries...)
}

// Len returns the number of entries.
func (c *ToggleControl) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Lookup returns the entry with the given name.
func (c *ToggleControl) Lookup(name string) (ToggleEntry, bool) {
	for _, e := range c.Entries() {
		if e.Name == name {
			return e, true
		}
	}
	return ToggleEntry{}, false
}

// SetVisible shows or hides the named group by attaching or detaching it.
func (c *ToggleControl) SetVisible(h Host, name string, visible bool) error {
	e, ok := c.Lookup(name)
	if !ok {
		return fmt.Errorf("no overlay named %q", name)
	}
	if visible {
		h.AddLayer(e.Group)
	} else {
		h.RemoveLayer(e.Group)
	}
	return nil
}
