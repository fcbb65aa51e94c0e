package dto

import (
	"math"

	"motorwatch/internal/model"
)

const (
	RoleRequest  = "request"
	RoleResponse = "response"

	ResultNone = "none"
)

// ClassifyResponse is the result shape shared by HTTP and MQTT.
// Confidence is present iff matched; Filename and BackendUsed iff archived.
type ClassifyResponse struct {
	Role        string   `json:"role"`
	DeviceID    string   `json:"device_id"`
	Result      string   `json:"result,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Filename    string   `json:"filename,omitempty"`
	BackendUsed string   `json:"backend_used,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// NewClassifyResponse builds the response for a processed frame.
// label is reported as the result when the event matched.
func NewClassifyResponse(deviceID, label string, result *model.Result) ClassifyResponse {
	resp := ClassifyResponse{
		Role:     RoleResponse,
		DeviceID: deviceID,
		Result:   ResultNone,
	}
	if result == nil || result.Event == nil || !result.Event.Matched {
		return resp
	}

	resp.Result = label
	if result.Event.BestConfidence != nil {
		confidence := *result.Event.BestConfidence
		// ponizej 0.01 zaokraglenie daloby 0 przy wykrytym obiekcie
		if rounded := math.Round(confidence*100) / 100; rounded > 0 {
			confidence = rounded
		}
		resp.Confidence = &confidence
	}
	if result.Archived() {
		resp.Filename = result.Artifact.Filename
		resp.BackendUsed = string(result.Artifact.BackendUsed)
	}
	return resp
}

// NewErrorResponse builds a fault response for a device.
func NewErrorResponse(deviceID string, err error) ClassifyResponse {
	return ClassifyResponse{
		Role:     RoleResponse,
		DeviceID: deviceID,
		Error:    err.Error(),
	}
}
