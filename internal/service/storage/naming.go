package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"motorwatch/internal/model"
)

// Namer hands out artifact filenames. It remembers the latest second used per
// device; a capture at or before that second gets a random suffix, so frames
// finishing out of order never reuse a plain name.
type Namer struct {
	mu   sync.Mutex
	last map[string]string
}

func NewNamer() *Namer {
	return &Namer{last: make(map[string]string)}
}

// Name returns {device}_motor_{YYYYMMDDHHMMSS}.jpg, motor_{hex}.jpg for
// unknown devices, and appends _{hex8} when the second was already handed out.
func (n *Namer) Name(deviceID string, ts time.Time) string {
	if deviceID == "" || deviceID == model.UnknownDevice {
		return fmt.Sprintf("motor_%s.jpg", randomHex())
	}

	device := sanitize(deviceID)
	stamp := ts.UTC().Format("20060102150405")

	n.mu.Lock()
	defer n.mu.Unlock()

	// stały format, więc porównanie napisów = porównanie czasów
	if stamp <= n.last[device] {
		return fmt.Sprintf("%s_motor_%s_%s.jpg", device, stamp, randomHex()[:8])
	}
	n.last[device] = stamp
	return fmt.Sprintf("%s_motor_%s.jpg", device, stamp)
}

func randomHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// sanitize keeps device ids usable as object keys and file names.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
