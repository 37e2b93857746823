package models_test

import (
	"image"
	"testing"

	"github.com/matryer/is"
	"github.com/spf13/afero"

	"roadvision/internal/models"
)

func TestParseClassesList(t *testing.T) {
	is := is.New(t)

	classes, err := models.ParseClasses([]byte("nc: 2\nnames: [pothole, crack]\n"))
	is.NoErr(err)
	is.Equal(classes, models.Classes{"pothole", "crack"})
	is.Equal(classes.Name(1), "crack")
	is.Equal(classes.Name(7), "class 7")
}

func TestParseClassesMapping(t *testing.T) {
	is := is.New(t)

	classes, err := models.ParseClasses([]byte("names:\n  2: patch\n  0: pothole\n"))
	is.NoErr(err)
	is.Equal(len(classes), 3)
	is.Equal(classes.Name(0), "pothole")
	is.Equal(classes.Name(1), "class 1")
	is.Equal(classes.Name(2), "patch")
}

func TestParseClassesRejectsScalar(t *testing.T) {
	is := is.New(t)

	_, err := models.ParseClasses([]byte("names: pothole\n"))
	is.True(err != nil)
}

func TestParseClassesRejectsHugeID(t *testing.T) {
	is := is.New(t)

	_, err := models.ParseClasses([]byte("names:\n  1000000000: pothole\n"))
	is.True(err != nil)

	classes, err := models.ParseClasses([]byte("names:\n  10000: pothole\n"))
	is.NoErr(err)
	is.Equal(classes.Name(models.MaxClassID), "pothole")
}

func TestLoadClassesMissingFile(t *testing.T) {
	is := is.New(t)

	_, err := models.LoadClasses(afero.NewMemMapFs(), "data.yaml")
	is.True(err != nil)
}

func TestDetectionPixelsRoundTrip(t *testing.T) {
	is := is.New(t)

	bounds := image.Rect(0, 0, 640, 640)
	rect := image.Rect(64, 128, 320, 480)

	det := models.DetectionResult{Label: "crack", Box: models.NormalizedBox(rect, bounds)}
	box, ok := det.Pixels(bounds)
	is.True(ok)
	is.Equal(box, models.Box{X1: 64, Y1: 128, X2: 320, Y2: 480})

	_, ok = models.DetectionResult{Box: []float32{0.1}}.Pixels(bounds)
	is.True(!ok)
}
