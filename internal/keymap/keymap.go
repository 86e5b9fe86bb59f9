// Package keymap resolves evdev key names and holds the immutable
// code-to-code remap table the shifted layer applies.
package keymap

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	evdev "github.com/holoplot/go-evdev"
)

var (
	nameOnce   sync.Once
	nameToCode map[string]uint16
)

// codeIndex builds the name lookup from go-evdev's generated code tables.
// BTN_* codes share the EV_KEY code space and are accepted too.
func codeIndex() map[string]uint16 {
	nameOnce.Do(func() {
		nameToCode = make(map[string]uint16)
		for code := evdev.EvCode(1); code <= evdev.KEY_MAX; code++ {
			name := evdev.CodeName(evdev.EV_KEY, code)
			if strings.HasPrefix(name, "KEY_") || strings.HasPrefix(name, "BTN_") {
				if _, dup := nameToCode[name]; !dup {
					nameToCode[name] = uint16(code)
				}
			}
		}
	})
	return nameToCode
}

// Resolve maps an evdev key name such as "KEY_SPACE" to its numeric code.
func Resolve(name string) (uint16, error) {
	code, ok := codeIndex()[name]
	if !ok {
		return 0, fmt.Errorf("unknown key name %q", name)
	}
	return code, nil
}

// Map is an immutable mapping from input keycode to output keycode. Keys
// without an entry pass through unchanged.
type Map struct {
	m map[uint16]uint16
}

// New copies entries into a Map. The caller's map is not retained.
func New(entries map[uint16]uint16) *Map {
	m := make(map[uint16]uint16, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return &Map{m: m}
}

// FromNames builds a Map from a name-to-name table as found in the config
// file. Any unresolvable name is an error; the caller treats it as fatal.
func FromNames(entries map[string]string) (*Map, error) {
	m := make(map[uint16]uint16, len(entries))
	for from, to := range entries {
		src, err := Resolve(from)
		if err != nil {
			return nil, fmt.Errorf("keymap key: %w", err)
		}
		dst, err := Resolve(to)
		if err != nil {
			return nil, fmt.Errorf("keymap value for %s: %w", from, err)
		}
		m[src] = dst
	}
	return &Map{m: m}, nil
}

// Lookup returns the mapped code for code, or code itself when no mapping
// exists.
func (m *Map) Lookup(code uint16) uint16 {
	if mapped, ok := m.m[code]; ok {
		return mapped
	}
	return code
}

// Has reports whether a mapping exists for code.
func (m *Map) Has(code uint16) bool {
	_, ok := m.m[code]
	return ok
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.m)
}

// Targets returns the sorted set of destination codes. The sink checks
// these against its declared capabilities.
func (m *Map) Targets() []uint16 {
	targets := make([]uint16, 0, len(m.m))
	seen := make(map[uint16]bool, len(m.m))
	for _, v := range m.m {
		if !seen[v] {
			seen[v] = true
			targets = append(targets, v)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}
