package ai

import (
	"image"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"motorwatch/internal/model"
)

// Model is the detection capability: one bitmap in, raw detections out.
// Implementations are not required to be safe for concurrent use.
type Model interface {
	Detect(img gocv.Mat) ([]model.Detection, error)
	Close() error
}

// nmsClassOffset separates boxes of different classes so one NMS pass stays per-class.
const nmsClassOffset = 4096

// YOLOModel runs a YOLO (v8/v11 layout) ONNX export through OpenCV DNN.
type YOLOModel struct {
	net            gocv.Net
	inputSize      int
	scoreThreshold float32
	iouThreshold   float32
}

// LoadYOLO reads the ONNX weights and prepares the network for CPU inference.
func LoadYOLO(path string, inputSize int, scoreThreshold, iouThreshold float64) (*YOLOModel, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.Errorf("model file not found: %s", path)
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, errors.Errorf("failed to load network from %s", path)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, errors.New("failed to set preferable backend or target")
	}

	return &YOLOModel{
		net:            net,
		inputSize:      inputSize,
		scoreThreshold: float32(scoreThreshold),
		iouThreshold:   float32(iouThreshold),
	}, nil
}

// Detect runs one forward pass and returns NMS-filtered boxes in image coordinates.
func (m *YOLOModel) Detect(img gocv.Mat) ([]model.Detection, error) {
	if img.Empty() {
		return nil, errors.New("input image is empty")
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(m.inputSize, m.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 {
		return nil, errors.Errorf("unexpected output shape %v", dims)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read network output")
	}

	// [1, 4+classes, anchors] for v8/v11, some exports are transposed.
	attrs, anchors := dims[1], dims[2]
	transposed := attrs > anchors
	if transposed {
		attrs, anchors = anchors, attrs
	}
	at := func(attr, anchor int) float32 {
		if transposed {
			return data[anchor*attrs+attr]
		}
		return data[attr*anchors+anchor]
	}

	scaleX := float32(img.Cols()) / float32(m.inputSize)
	scaleY := float32(img.Rows()) / float32(m.inputSize)

	var (
		boxes    []image.Rectangle
		nmsBoxes []image.Rectangle
		scores   []float32
		classes  []int
	)
	for i := 0; i < anchors; i++ {
		bestClass, bestScore := -1, float32(0)
		for c := 4; c < attrs; c++ {
			if s := at(c, i); s > bestScore {
				bestClass, bestScore = c-4, s
			}
		}
		if bestClass < 0 || bestScore < m.scoreThreshold {
			continue
		}

		cx, cy := at(0, i)*scaleX, at(1, i)*scaleY
		w, h := at(2, i)*scaleX, at(3, i)*scaleY
		box := image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2))

		offset := image.Pt(bestClass*nmsClassOffset, 0)
		boxes = append(boxes, box)
		nmsBoxes = append(nmsBoxes, box.Add(offset))
		scores = append(scores, bestScore)
		classes = append(classes, bestClass)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(nmsBoxes, scores, m.scoreThreshold, m.iouThreshold)
	detections := make([]model.Detection, 0, len(keep))
	for _, idx := range keep {
		detections = append(detections, model.Detection{
			Box:        boxes[idx],
			Confidence: float64(scores[idx]),
			ClassID:    classes[idx],
		})
	}
	return detections, nil
}

func (m *YOLOModel) Close() error {
	return m.net.Close()
}
