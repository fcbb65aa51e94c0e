package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motorwatch/internal/model"
)

func decode(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestNewClassifyResponse_NoMatch(t *testing.T) {
	result := &model.Result{Event: &model.Event{Matched: false}}

	body := decode(t, NewClassifyResponse("cam-001", "motorcycle", result))

	assert.Equal(t, "response", body["role"])
	assert.Equal(t, "cam-001", body["device_id"])
	assert.Equal(t, "none", body["result"])
	assert.NotContains(t, body, "confidence")
	assert.NotContains(t, body, "filename")
	assert.NotContains(t, body, "error")
}

func TestNewClassifyResponse_MatchedAndArchived(t *testing.T) {
	conf := 0.8749
	result := &model.Result{
		Event: &model.Event{Matched: true, BestConfidence: &conf},
		Artifact: &model.ArchivedArtifact{
			Filename:    "cam-001_motor_20250101120000.jpg",
			BackendUsed: model.BackendSecondary,
			Succeeded:   true,
		},
	}

	body := decode(t, NewClassifyResponse("cam-001", "motorcycle", result))

	assert.Equal(t, "motorcycle", body["result"])
	assert.Equal(t, 0.87, body["confidence"])
	assert.Equal(t, "cam-001_motor_20250101120000.jpg", body["filename"])
	assert.Equal(t, "secondary", body["backend_used"])
}

func TestNewClassifyResponse_TinyConfidenceStaysPositive(t *testing.T) {
	conf := 0.003
	result := &model.Result{Event: &model.Event{Matched: true, BestConfidence: &conf}}

	body := decode(t, NewClassifyResponse("cam-001", "motorcycle", result))

	assert.Equal(t, "motorcycle", body["result"])
	assert.Equal(t, 0.003, body["confidence"])
}

func TestNewClassifyResponse_MatchedArchivalFailed(t *testing.T) {
	conf := 0.5
	result := &model.Result{
		Event:    &model.Event{Matched: true, BestConfidence: &conf},
		Artifact: &model.ArchivedArtifact{Filename: "x.jpg", Succeeded: false},
	}

	body := decode(t, NewClassifyResponse("cam-001", "motorcycle", result))

	assert.Equal(t, "motorcycle", body["result"])
	assert.Equal(t, 0.5, body["confidence"])
	assert.NotContains(t, body, "filename")
	assert.NotContains(t, body, "backend_used")
}

func TestNewErrorResponse(t *testing.T) {
	body := decode(t, NewErrorResponse("cam-002", errors.New("detection failed")))

	assert.Equal(t, "response", body["role"])
	assert.Equal(t, "detection failed", body["error"])
	assert.NotContains(t, body, "result")
}

func TestMQTTMessage_IgnoresUnknownFields(t *testing.T) {
	var msg MQTTMessage
	err := json.Unmarshal([]byte(`{"role":"request","device_id":"cam-9","image_base64":"AAAA","battery":87}`), &msg)
	require.NoError(t, err)
	assert.Equal(t, RoleRequest, msg.Role)
	assert.Equal(t, "cam-9", msg.DeviceID)
}

func TestArtifactInfo_MarshalJSON(t *testing.T) {
	ts := time.Date(2025, 6, 15, 14, 30, 5, 0, time.UTC)
	info := ArtifactInfo{
		Filename:  "cam1_motor_20250615143005.jpg",
		DeviceID:  "cam1",
		Date:      ts,
		TimeOfDay: ts,
		Backend:   "primary",
		Objects:   []string{"motorcycle"},
	}

	body := decode(t, info)
	assert.Equal(t, "15-06-2025", body["date"])
	assert.Equal(t, "14:30:05", body["timeOfDay"])
	assert.Equal(t, "primary", body["backend"])
}
