// Package detector wraps object detection backends behind one narrow
// interface so the pipeline never depends on a concrete model runtime.
package detector

import (
	"context"
	"image"

	"roadvision/internal/models"
)

// Annotated is a frame with the detections drawn onto it. Image always has
// the same bounds as the frame that was passed in.
type Annotated struct {
	Image      image.Image
	Detections []models.DetectionResult
}

type Detector interface {
	Infer(ctx context.Context, frame image.Image) (Annotated, error)
}

// BoxFunc reports raw detections for a frame.
type BoxFunc func(ctx context.Context, frame image.Image) ([]models.DetectionResult, error)

// Annotating turns a box-only backend into a Detector that also renders.
func Annotating(fn BoxFunc) Detector {
	return annotating(fn)
}

type annotating BoxFunc

func (fn annotating) Infer(ctx context.Context, frame image.Image) (Annotated, error) {
	dets, err := fn(ctx, frame)
	if err != nil {
		return Annotated{}, err
	}
	return Annotated{Image: Annotate(frame, dets), Detections: dets}, nil
}

// Unavailable fails every frame with err.
func Unavailable(err error) Detector {
	return Annotating(func(context.Context, image.Image) ([]models.DetectionResult, error) {
		return nil, err
	})
}
