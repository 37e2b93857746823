// Package view holds the shell's state as an immutable value. The UI keeps
// one State, feeds every user action through Reduce and renders the result.
package view

type Page int

const (
	PageNone Page = iota
	PageImage
	PageVideo
	PageCamera
)

func (p Page) String() string {
	switch p {
	case PageImage:
		return "Image Processing"
	case PageVideo:
		return "Video Processing"
	case PageCamera:
		return "Camera Capture"
	}
	return ""
}

var Pages = [...]Page{PageImage, PageVideo, PageCamera}

type State struct {
	Page        Page
	SaveResults bool
	RealTime    bool
	// Busy is set while a run is in progress.
	Busy bool
	// Status is the last run's one line summary.
	Status string
	// Visits counts navigations, including re-selecting the current page.
	Visits int
}

type Action interface{ isAction() }

type (
	Navigate       struct{ Page Page }
	SetSaveResults struct{ On bool }
	SetRealTime    struct{ On bool }
	RunStarted     struct{ Status string }
	RunFinished    struct{ Status string }
)

func (Navigate) isAction()       {}
func (SetSaveResults) isAction() {}
func (SetRealTime) isAction()    {}
func (RunStarted) isAction()     {}
func (RunFinished) isAction()    {}

// Reduce is pure: it returns the next state and never touches s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Navigate:
		if a.Page < PageImage || a.Page > PageCamera {
			return s
		}
		s.Page = a.Page
		s.Status = ""
		s.Visits++
	case SetSaveResults:
		s.SaveResults = a.On
	case SetRealTime:
		s.RealTime = a.On
	case RunStarted:
		s.Busy = true
		s.Status = a.Status
	case RunFinished:
		s.Busy = false
		s.Status = a.Status
	}
	return s
}

// PageChanged reports whether moving from prev to next must clear the view
// and rebuild the page controls. Selecting the page already shown counts.
func PageChanged(prev, next State) bool {
	return prev.Page != next.Page || prev.Visits != next.Visits
}
