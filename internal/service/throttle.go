package service

import "time"

// CaptureController limits how often matched stream frames get archived.
// It belongs to a single stream session and is not safe for concurrent use.
type CaptureController struct {
	interval    time.Duration
	lastCapture time.Time
	hasCapture  bool
}

func NewCaptureController(interval time.Duration) *CaptureController {
	return &CaptureController{interval: interval}
}

// Allow reports whether a match at now may be archived and, if so, records it.
// A capture is allowed when none happened yet or strictly more than the
// interval has passed since the last one.
func (c *CaptureController) Allow(now time.Time) bool {
	if c.hasCapture && now.Sub(c.lastCapture) <= c.interval {
		return false
	}
	c.lastCapture = now
	c.hasCapture = true
	return true
}

// Reset forgets the last capture, e.g. after the stream reconnects.
func (c *CaptureController) Reset() {
	c.hasCapture = false
	c.lastCapture = time.Time{}
}
