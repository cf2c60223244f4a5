package audio

// Device describes an input device.
type Device struct {
	Index     int     `json:"index"`
	Name      string  `json:"name"`
	Channels  int     `json:"channels"`
	LatencyMs float64 `json:"latency_ms"`
	Default   bool    `json:"default"`
}
