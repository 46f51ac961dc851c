package reader

import "fmt"

// ReselectPolicy decides which voice is selected after the list is refreshed.
type ReselectPolicy string

const (
	// ReselectFirst selects the first voice on every refresh.
	ReselectFirst ReselectPolicy = "first"
	// ReselectPreserve keeps the selection when its name survives the refresh.
	ReselectPreserve ReselectPolicy = "preserve"
)

// ParseReselectPolicy maps a config value onto a policy. Empty means first.
func ParseReselectPolicy(s string) (ReselectPolicy, error) {
	switch ReselectPolicy(s) {
	case "", ReselectFirst:
		return ReselectFirst, nil
	case ReselectPreserve:
		return ReselectPreserve, nil
	default:
		return "", fmt.Errorf("unknown reselect policy: %q", s)
	}
}

// Registry tracks the enumerated voices and the selected one.
type Registry struct {
	policy   ReselectPolicy
	voices   []Voice
	selected int // -1 when nothing is selected
}

func NewRegistry(policy ReselectPolicy) *Registry {
	if policy == "" {
		policy = ReselectFirst
	}
	return &Registry{policy: policy, selected: -1}
}

// Replace swaps in a freshly enumerated list and re-derives the selection.
func (r *Registry) Replace(voices []Voice) {
	prev, hadPrev := r.Selected()

	r.voices = append([]Voice(nil), voices...)
	r.selected = -1
	if len(r.voices) == 0 {
		return
	}

	if r.policy == ReselectPreserve && hadPrev {
		if i := r.indexOf(prev.Name); i >= 0 {
			r.selected = i
			return
		}
	}
	r.selected = 0
}

// Select picks the voice with the given name. Unknown names clear the selection.
func (r *Registry) Select(name string) bool {
	r.selected = r.indexOf(name)
	return r.selected >= 0
}

func (r *Registry) Selected() (Voice, bool) {
	if r.selected < 0 || r.selected >= len(r.voices) {
		return Voice{}, false
	}
	return r.voices[r.selected], true
}

func (r *Registry) List() []Voice {
	return append([]Voice(nil), r.voices...)
}

func (r *Registry) indexOf(name string) int {
	for i, v := range r.voices {
		if v.Name == name {
			return i
		}
	}
	return -1
}
