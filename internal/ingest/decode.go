// Package ingest turns transport payloads into decoded frames.
//
// Every transport is one named variant of model.SourceKind. HTTP requests pick
// their variant from the Content-Type header, MQTT messages and pull sources
// have a fixed variant.
package ingest

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"motorwatch/internal/model"
)

// DecodeImage decodes compressed image bytes into a BGR bitmap.
func DecodeImage(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, &model.DecodeError{Err: errors.New("image is empty")}
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, &model.DecodeError{Err: err}
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, &model.DecodeError{Err: errors.New("unrecognized image format")}
	}
	return mat, nil
}

// DecodeBase64Image decodes a base64 payload, optionally carrying a data URI prefix.
func DecodeBase64Image(encoded string) (gocv.Mat, error) {
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	encoded = strings.TrimSpace(encoded)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return gocv.Mat{}, &model.DecodeError{Err: errors.Wrap(err, "invalid base64")}
	}
	return DecodeImage(raw)
}
