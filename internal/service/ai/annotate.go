package ai

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"motorwatch/internal/model"
)

// AlertCaption is drawn once on every matched frame.
const AlertCaption = "Motorcycle detected!"

var (
	boxColor   = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	alertColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
)

// DrawDetections draws one box and "label 0.87" caption per detection and the
// alert caption in the top left corner. It draws onto img in place.
func DrawDetections(img *gocv.Mat, set model.DetectionSet) error {
	for _, d := range set.Detections {
		if err := gocv.Rectangle(img, d.Box, boxColor, 2); err != nil {
			return errors.Wrap(err, "failed to draw rectangle")
		}

		label := fmt.Sprintf("%s %.2f", set.Label, d.Confidence)
		pt := image.Pt(d.Box.Min.X, d.Box.Min.Y-10)
		if err := gocv.PutText(img, label, pt, gocv.FontHersheySimplex, 0.5, boxColor, 1); err != nil {
			return errors.Wrap(err, "failed to draw text")
		}
	}

	if err := gocv.PutText(img, AlertCaption, image.Pt(30, 50), gocv.FontHersheySimplex, 1.2, alertColor, 3); err != nil {
		return errors.Wrap(err, "failed to draw alert")
	}
	return nil
}
