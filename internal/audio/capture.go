package audio

import (
	"errors"
)

// MIMEWebM is the MIME tag of blobs produced by the webm encoder.
const MIMEWebM = "audio/webm"

// ErrDeviceUnavailable is returned when a capture device cannot be
// acquired: permission denied, no device present, or device busy.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// Blob is a finished recording: the concatenated encoded chunks and
// their MIME tag.
type Blob struct {
	Data []byte `json:"-"`
	MIME string `json:"mime"`
}

// Handle represents a live capture: the encoded chunk stream, the raw
// signal tap for level analysis, and the device resources behind them.
// A Handle is owned by exactly one recording session at a time.
type Handle interface {
	// Chunks delivers encoded stream chunks as they are produced.
	// The channel is closed after the final flush, which is the
	// terminal "stopped" event of the capture.
	Chunks() <-chan []byte

	// Tap exposes the raw signal for per-frame level analysis.
	Tap() *Tap

	// SampleRate reports the capture context sample rate.
	SampleRate() int

	// MIME reports the MIME tag of the encoded chunks.
	MIME() string

	// Stop finalizes the encoded stream and releases all device
	// resources. Safe to call more than once; the release happens
	// exactly once.
	Stop() error
}

// Backend abstracts over the capture implementations.
type Backend interface {
	// Open acquires a live capture from the active input device.
	// Fails with an error wrapping ErrDeviceUnavailable if no device
	// can be acquired.
	Open() (Handle, error)

	// ListDevices lists available capture device names.
	ListDevices() ([]string, error)

	// Name returns the backend name.
	Name() string
}
