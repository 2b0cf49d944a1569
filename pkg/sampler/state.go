package sampler

import "errors"

// Response texts shown by the controller itself.
const (
	MsgReady         = "Camera access granted. Ready to start."
	MsgStarted       = "Processing started..."
	MsgStopped       = "Processing stopped."
	MsgCaptureFailed = "Failed to capture image. Stream might not be active."
)

// AllowedIntervals are the tick intervals a session may use, in milliseconds.
var AllowedIntervals = []int{100, 250, 500, 1000, 2000}

// DefaultIntervalMs is the interval of a fresh session.
const DefaultIntervalMs = 500

// ValidInterval reports whether ms is one of AllowedIntervals.
func ValidInterval(ms int) bool {
	for _, v := range AllowedIntervals {
		if v == ms {
			return true
		}
	}
	return false
}

var (
	// ErrSourceUnavailable wraps the video source's acquisition error on Start.
	ErrSourceUnavailable = errors.New("sampler: video source unavailable")

	// ErrRunning is returned by setters while a run is active.
	ErrRunning = errors.New("sampler: settings are locked while running")

	// ErrInvalidInterval is returned for intervals outside AllowedIntervals.
	ErrInvalidInterval = errors.New("sampler: interval must be one of 100, 250, 500, 1000, 2000 ms")

	// ErrEmptyEndpoint is returned when the endpoint is blank.
	ErrEmptyEndpoint = errors.New("sampler: endpoint must not be empty")

	// ErrClosed is returned by Start after Shutdown.
	ErrClosed = errors.New("sampler: controller is shut down")
)

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	// Seq increases with every published change; consumers may drop
	// snapshots older than one they already applied.
	Seq uint64 `json:"seq"`

	Running     bool   `json:"running"`
	Endpoint    string `json:"endpoint"`
	Instruction string `json:"instruction"`
	IntervalMs  int    `json:"interval_ms"`
	Response    string `json:"response"`
	FPS         int    `json:"fps"`

	// InFlight is true while a cycle holds the dispatch guard.
	InFlight bool `json:"in_flight"`

	// Cycles started and ticks dropped since process start.
	Cycles  uint64 `json:"cycles"`
	Dropped uint64 `json:"dropped"`
}
