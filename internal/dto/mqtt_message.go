package dto

// MQTTMessage is an inbound message on the frames topic.
// Only messages with Role == RoleRequest are processed.
type MQTTMessage struct {
	Role        string `json:"role"`
	DeviceID    string `json:"device_id"`
	ImageBase64 string `json:"image_base64"`
}
