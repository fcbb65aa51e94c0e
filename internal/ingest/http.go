package ingest

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"motorwatch/internal/dto"
	"motorwatch/internal/model"
)

// SelectHTTPSource picks the source variant for an HTTP request body.
func SelectHTTPSource(contentType string) (model.SourceKind, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", model.ErrUnsupportedMediaType
	}
	switch mediaType {
	case "multipart/form-data":
		return model.SourceMultipart, nil
	case "application/json":
		return model.SourceJSON, nil
	default:
		return "", model.ErrUnsupportedMediaType
	}
}

// FromMultipart reads the "image" file field and the optional "device_id" field.
func FromMultipart(r *http.Request, maxMemory int64, now time.Time) (*model.Frame, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, model.NewValidationError("", "malformed multipart body: "+err.Error())
	}

	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return nil, model.NewValidationError("image", "No image uploaded")
	}
	if err != nil {
		return nil, model.NewValidationError("image", err.Error())
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, model.NewValidationError("image", "No selected file")
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read uploaded file")
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return model.NewFrame(img, r.FormValue("device_id"), model.SourceMultipart, now), nil
}

// FromJSON reads a {device_id, image_base64} body. When requireDevice is false a
// missing device id becomes model.UnknownDevice.
func FromJSON(body io.Reader, requireDevice bool, now time.Time) (*model.Frame, error) {
	var req dto.ClassifyRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, model.NewValidationError("", "invalid JSON body")
	}

	if requireDevice && req.DeviceID == "" {
		return nil, model.NewValidationError("device_id", "Missing device_id")
	}
	if req.ImageBase64 == "" {
		return nil, model.NewValidationError("image_base64", "Missing base64 image")
	}

	img, err := DecodeBase64Image(req.ImageBase64)
	if err != nil {
		return nil, err
	}
	return model.NewFrame(img, req.DeviceID, model.SourceJSON, now), nil
}
