package ui

import (
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const maxConsoleLines = 500

// Console is the append-only log panel under the view. It is a
// logger.Sink and may be fed from any goroutine.
type Console struct {
	mu    sync.Mutex
	lines []string

	text   *widget.Label
	scroll *container.Scroll
}

func NewConsole() *Console {
	c := &Console{text: widget.NewLabel("")}
	c.text.Wrapping = fyne.TextWrapWord
	c.text.TextStyle = fyne.TextStyle{Monospace: true}

	c.scroll = container.NewVScroll(c.text)
	c.scroll.SetMinSize(fyne.NewSize(0, 110))
	return c
}

func (c *Console) Object() fyne.CanvasObject { return c.scroll }

func (c *Console) Append(line string) {
	c.mu.Lock()
	c.lines = appendCapped(c.lines, line, maxConsoleLines)
	text := strings.Join(c.lines, "\n")
	c.mu.Unlock()

	fyne.Do(func() {
		c.text.SetText(text)
		c.scroll.ScrollToBottom()
	})
}

func appendCapped(lines []string, line string, max int) []string {
	lines = append(lines, line)
	if over := len(lines) - max; over > 0 {
		lines = append(lines[:0], lines[over:]...)
	}
	return lines
}
