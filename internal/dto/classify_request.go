package dto

// ClassifyRequest is the JSON body accepted by /classify and /upload.
type ClassifyRequest struct {
	DeviceID    string `json:"device_id"`
	ImageBase64 string `json:"image_base64"`
}
