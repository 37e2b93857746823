package cwidget

import (
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/matryer/is"
)

func TestPositiveIntInputReportsValidValues(t *testing.T) {
	test.NewTempApp(t)
	is := is.New(t)

	var got []int
	in := NewPositiveIntInput("Playback FPS", "Enter integer", 24, func(v int) { got = append(got, v) })

	in.SetText("12")
	in.SetText("0")
	in.SetText("abc")
	in.SetText("")

	is.Equal(got, []int{12, 24})
	is.True(in.errorWidget.Hidden)
	is.Equal(in.labelWidget.Text, "Playback FPS: 24")
}

func TestPositiveIntInputShowsError(t *testing.T) {
	test.NewTempApp(t)
	is := is.New(t)

	in := NewPositiveIntInput("Playback FPS", "", 24, nil)
	in.SetText("-3")

	is.True(!in.errorWidget.Hidden)
	is.Equal(in.errorWidget.Text, ErrNotPositive.Error())
	is.Equal(in.labelWidget.Text, "Playback FPS: 24")
}
