package cwidget

import (
	"errors"
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Input is a labelled entry that only reports values its Validator accepts.
type Input[T any] struct {
	widget.BaseWidget

	labelWidget *widget.Label
	entryWidget *widget.Entry
	errorWidget *widget.Label

	LabelText   string
	Placeholder string

	DefaultValue T

	OnChanged func(T)

	Validator func(string) (T, error)
}

var ErrNotPositive = errors.New("value must be greater than zero")

// NewPositiveIntInput accepts whole numbers above zero. An empty entry
// means the default value.
func NewPositiveIntInput(label, placeholder string, defaultValue int, onChanged func(int)) *Input[int] {
	input := &Input[int]{
		LabelText:    label,
		Placeholder:  placeholder,
		OnChanged:    onChanged,
		DefaultValue: defaultValue,
	}

	input.Validator = func(s string) (int, error) {
		if s == "" {
			return input.DefaultValue, nil
		}

		res, err := strconv.Atoi(s)
		if err != nil {
			return input.DefaultValue, fmt.Errorf("%q is not a whole number", s)
		}
		if res <= 0 {
			return input.DefaultValue, ErrNotPositive
		}
		return res, nil
	}

	input.build(func(v int) string { return fmt.Sprintf("%s: %d", label, v) })
	return input
}

func (item *Input[T]) build(format func(T) string) {
	item.labelWidget = widget.NewLabel(format(item.DefaultValue))
	item.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	item.entryWidget = widget.NewEntry()
	item.entryWidget.SetPlaceHolder(item.Placeholder)

	item.errorWidget = widget.NewLabel("")
	item.errorWidget.Hidden = true
	item.errorWidget.TextStyle = fyne.TextStyle{Italic: true}
	item.errorWidget.Importance = widget.DangerImportance

	item.entryWidget.OnChanged = func(s string) {
		res, err := item.Validator(s)
		item.SetError(err)

		if err == nil {
			if item.OnChanged != nil {
				item.OnChanged(res)
			}
			item.labelWidget.SetText(format(res))
		}
	}

	item.ExtendBaseWidget(item)
}

func (item *Input[T]) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		item.entryWidget,
		item.errorWidget,
	)

	return widget.NewSimpleRenderer(c)
}

func (item *Input[T]) SetError(err error) {
	item.errorWidget.Hidden = err == nil
	if err != nil {
		item.errorWidget.SetText(err.Error())
	}
	item.errorWidget.Refresh()
}

func (item *Input[T]) SetText(text string) {
	item.entryWidget.SetText(text)
}
