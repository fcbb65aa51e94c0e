package ingest

import (
	"encoding/json"
	"time"

	"motorwatch/internal/dto"
	"motorwatch/internal/model"
)

// FromMQTT decodes an inbound frames-topic message.
//
// ok is false for messages that must be dropped without a reply: anything that
// is not a request, requests from devices outside the allow-list, and payloads
// that are not JSON at all. When ok is true and err is set, the caller replies
// with an error to deviceID.
func FromMQTT(payload []byte, allowed func(deviceID string) bool, now time.Time) (frame *model.Frame, deviceID string, ok bool, err error) {
	var msg dto.MQTTMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, "", false, model.NewValidationError("", "invalid JSON payload")
	}

	if msg.Role != dto.RoleRequest {
		return nil, msg.DeviceID, false, nil
	}
	// brak device_id nie jest na liscie, wiec tez jest pomijany po cichu
	if allowed != nil && !allowed(msg.DeviceID) {
		return nil, msg.DeviceID, false, nil
	}
	if msg.DeviceID == "" {
		return nil, model.UnknownDevice, true, model.NewValidationError("device_id", "Missing device_id")
	}
	if msg.ImageBase64 == "" {
		return nil, msg.DeviceID, true, model.NewValidationError("image_base64", "Missing base64 image")
	}

	img, err := DecodeBase64Image(msg.ImageBase64)
	if err != nil {
		return nil, msg.DeviceID, true, err
	}
	return model.NewFrame(img, msg.DeviceID, model.SourceMQTT, now), msg.DeviceID, true, nil
}
