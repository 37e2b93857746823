//go:build !gocv

package detector

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"roadvision/internal/models"
)

// ErrOpenCVUnavailable is returned by builds without the gocv tag.
var ErrOpenCVUnavailable = errors.New("opencv detector not compiled in, rebuild with -tags gocv")

type OpenCVDetector struct{}

func NewOpenCVDetector(modelPath string, classes models.Classes, size image.Point) (*OpenCVDetector, error) {
	return nil, ErrOpenCVUnavailable
}

func (d *OpenCVDetector) Infer(ctx context.Context, frame image.Image) (Annotated, error) {
	return Annotated{}, ErrOpenCVUnavailable
}

func (d *OpenCVDetector) Close() error { return nil }
