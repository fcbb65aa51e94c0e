package model

import (
	"time"

	"gocv.io/x/gocv"
)

// UnknownDevice is used when a frame arrives without a device identifier.
const UnknownDevice = "unknown"

// Transport identifies the channel that delivered a frame. The response is
// always dispatched over the same transport.
type Transport string

const (
	TransportHTTP   Transport = "http"
	TransportMQTT   Transport = "mqtt"
	TransportStream Transport = "stream"
)

// SourceKind is the closed set of frame source variants.
type SourceKind string

const (
	SourceMultipart SourceKind = "multipart"
	SourceJSON      SourceKind = "json"
	SourceMQTT      SourceKind = "mqtt"
	SourceVideo     SourceKind = "video"
	SourceDirectory SourceKind = "directory"
)

// Transport returns the transport a source variant belongs to.
func (k SourceKind) Transport() Transport {
	switch k {
	case SourceMultipart, SourceJSON:
		return TransportHTTP
	case SourceMQTT:
		return TransportMQTT
	default:
		return TransportStream
	}
}

// Frame is one decoded still image plus its arrival metadata.
// The Image must be closed by the owner once the response has been dispatched.
type Frame struct {
	Image     gocv.Mat
	Timestamp time.Time
	DeviceID  string
	Transport Transport
	Source    SourceKind
	// Name is the file name for directory sources, empty otherwise.
	Name string
}

// NewFrame wraps a decoded image, defaulting the device id to UnknownDevice.
func NewFrame(img gocv.Mat, deviceID string, source SourceKind, ts time.Time) *Frame {
	if deviceID == "" {
		deviceID = UnknownDevice
	}
	return &Frame{
		Image:     img,
		Timestamp: ts,
		DeviceID:  deviceID,
		Transport: source.Transport(),
		Source:    source,
	}
}

// Close releases the bitmap.
func (f *Frame) Close() error {
	if f == nil {
		return nil
	}
	return f.Image.Close()
}
