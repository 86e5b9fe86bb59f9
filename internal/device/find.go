// Package device opens the physical input device and the virtual output
// device and converts between raw evdev events and engine events.
package device

import (
	"fmt"
	"strconv"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// Find resolves a device selector to an event device path. A selector
// starting with /dev/input/ is used as-is; anything else is a substring
// match against enumerated device names, choosing the highest-numbered
// eventN node among the matches. An empty selector matches every device.
func Find(selector string) (string, error) {
	if strings.HasPrefix(selector, "/dev/input/") {
		return selector, nil
	}

	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return "", fmt.Errorf("enumerate input devices: %w", err)
	}

	path := match(paths, selector)
	if path == "" {
		return "", fmt.Errorf("no input device name contains %q", selector)
	}
	return path, nil
}

// match picks the highest-numbered event node whose device name contains
// selector.
func match(paths []evdev.InputPath, selector string) string {
	best := ""
	bestNum := -1
	for _, p := range paths {
		if !strings.Contains(p.Name, selector) {
			continue
		}
		if n := eventNumber(p.Path); n > bestNum {
			bestNum = n
			best = p.Path
		}
	}
	return best
}

// eventNumber extracts N from a path ending in eventN, or -1.
func eventNumber(path string) int {
	i := strings.LastIndex(path, "event")
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(path[i+len("event"):])
	if err != nil {
		return -1
	}
	return n
}
