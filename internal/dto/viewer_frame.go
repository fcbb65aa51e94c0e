package dto

// ViewerFrame is pushed to live viewers for every processed frame.
type ViewerFrame struct {
	DeviceID   string   `json:"device_id"`
	Transport  string   `json:"transport"`
	Result     string   `json:"result"`
	Confidence *float64 `json:"confidence,omitempty"`
	Image      string   `json:"image"`
}
