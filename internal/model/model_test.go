package model

import (
	"context"
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSourceKind_Transport(t *testing.T) {
	assert.Equal(t, TransportHTTP, SourceMultipart.Transport())
	assert.Equal(t, TransportHTTP, SourceJSON.Transport())
	assert.Equal(t, TransportMQTT, SourceMQTT.Transport())
	assert.Equal(t, TransportStream, SourceVideo.Transport())
	assert.Equal(t, TransportStream, SourceDirectory.Transport())
}

func TestDetectionSet_Best(t *testing.T) {
	empty := DetectionSet{ClassID: 3}
	_, ok := empty.Best()
	assert.False(t, ok)
	assert.True(t, empty.Empty())

	set := DetectionSet{ClassID: 3, Detections: []Detection{
		{Box: image.Rect(0, 0, 10, 10), Confidence: 0.31, ClassID: 3},
		{Box: image.Rect(5, 5, 20, 20), Confidence: 0.87, ClassID: 3},
		{Box: image.Rect(1, 1, 4, 4), Confidence: 0.5, ClassID: 3},
	}}
	best, ok := set.Best()
	assert.True(t, ok)
	assert.Equal(t, 0.87, best)
}

func TestRoleForIndex(t *testing.T) {
	assert.Equal(t, BackendPrimary, RoleForIndex(0))
	assert.Equal(t, BackendSecondary, RoleForIndex(1))
}

func TestResult_Archived(t *testing.T) {
	var nilResult *Result
	assert.False(t, nilResult.Archived())
	assert.False(t, (&Result{}).Archived())
	assert.False(t, (&Result{Artifact: &ArchivedArtifact{Succeeded: false}}).Archived())
	assert.True(t, (&Result{Artifact: &ArchivedArtifact{Filename: "a.jpg", Succeeded: true}}).Archived())
}

func TestErrorClassification(t *testing.T) {
	validation := errors.Wrap(NewValidationError("image_base64", "Missing base64 image"), "classify")
	assert.True(t, IsValidation(validation))
	assert.False(t, IsDecode(validation))
	assert.Equal(t, "classify: image_base64: Missing base64 image", validation.Error())

	decode := errors.Wrap(&DecodeError{Err: errors.New("empty image")}, "upload")
	assert.True(t, IsDecode(decode))

	timeout := &DetectionFault{Err: context.DeadlineExceeded}
	assert.True(t, IsDetection(timeout))
	assert.True(t, IsRetryable(timeout))
	assert.False(t, IsRetryable(&DetectionFault{Err: errors.New("net not loaded")}))
}
