package types

// Shared bus payload shapes. Kept flat and JSON-friendly so bridges can
// forward them without translation.

type Info struct {
	SchemaVersion int    `json:"schema_version"`
	Driver        string `json:"driver"`
	Detail        any    `json:"detail,omitempty"`
}

// Retained info payload for a repeater device.
type RepeaterInfo struct {
	Vendor string `json:"vendor"` // "nxp" | "ti"
	Role   string `json:"role"`   // "host" | "client"
	Bus    string `json:"bus"`
	Addr   uint16 `json:"addr"`
}

// Retained value: repeater/<id>/power
type PowerValue struct {
	Enabled bool  `json:"enabled"`
	TSms    int64 `json:"ts_ms"`
}

// Control payloads.
type ResetSet struct {
	BringOutOfReset bool `json:"bring_out_of_reset"`
}

// TuneStore carries one diagnostic write line: "<hex-address> <hex-value>".
type TuneStore struct {
	Line string `json:"line"`
}

// TuneDump is the rendered known-map snapshot.
type TuneDump struct {
	Text string `json:"text"`
}

type ServiceState struct {
	Level  string `json:"level"` // "idle" | "ready" | "stopped" | "error"
	Status string `json:"status,omitempty"`
	TSms   int64  `json:"ts_ms"`
}

// Periodic liveness beat: repeater/<id>/heartbeat
type Heartbeat struct {
	Powered bool  `json:"powered"`
	Tuned   int   `json:"tuned"`
	TSms    int64 `json:"ts_ms"`
}

// Published to config/heartbeat to retune the beat interval.
type HeartbeatConfig struct {
	IntervalMS int `json:"interval_ms"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
