package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"roadvision/internal/config"
	"roadvision/internal/logger"
	"roadvision/internal/ui/cwidget"
	"roadvision/internal/view"
	"roadvision/processing/capture"
	"roadvision/processing/media"
	"roadvision/processing/pipeline"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config   *config.Config
	pipeline *pipeline.Pipeline
	log      *logger.Logger

	console *Console
	display *Display

	// state is only read and written on the UI goroutine.
	state view.State

	pageControls  *fyne.Container
	saveCheck     *widget.Check
	realTimeCheck *widget.Check
	statusLabel   *widget.Label

	idleOnly []fyne.Disableable
	busyOnly []fyne.Disableable

	runMu     sync.Mutex
	cancelRun context.CancelFunc
	runID     int
}

func CreateApp(p *pipeline.Pipeline, cfg *config.Config, log *logger.Logger) *DetectApp {
	a := app.New()
	w := a.NewWindow("Road Defect Detection")

	w.Resize(fyne.NewSize(1280, 720))
	w.SetFixedSize(true)

	console := NewConsole()
	log.AddSink(console)

	saveResults, realTime := cfg.Modes()

	return &DetectApp{
		fyneApp:  a,
		mainWin:  w,
		config:   cfg,
		pipeline: p,
		log:      log,
		console:  console,
		display:  NewDisplay(log, cfg.GetPlaybackFPS),
		state:    view.State{SaveResults: saveResults, RealTime: realTime},
	}
}

func (a *DetectApp) Run() {
	navLabel := widget.NewLabelWithStyle("Navigation", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})

	nav := container.NewVBox(navLabel, widget.NewSeparator())
	for _, page := range view.Pages {
		nav.Add(widget.NewButton(page.String(), func() {
			a.dispatch(view.Navigate{Page: page})
		}))
	}

	a.saveCheck = widget.NewCheck("Save Results", func(on bool) {
		a.dispatch(view.SetSaveResults{On: on})
	})
	a.saveCheck.Checked = a.state.SaveResults

	a.realTimeCheck = widget.NewCheck("Process Video in Real-Time", func(on bool) {
		a.dispatch(view.SetRealTime{On: on})
	})
	a.realTimeCheck.Checked = a.state.RealTime

	a.statusLabel = widget.NewLabel("")
	a.statusLabel.Truncation = fyne.TextTruncateEllipsis

	topControls := container.NewHBox(a.saveCheck, a.realTimeCheck, layout.NewSpacer())

	a.pageControls = container.NewVBox()

	visualization := container.NewBorder(a.pageControls, nil, nil, nil, a.display.Object())

	main := container.NewBorder(
		container.NewBorder(nil, nil, topControls, nil, a.statusLabel),
		a.console.Object(),
		nil, nil,
		visualization,
	)

	split := container.NewHSplit(container.NewPadded(nav), container.NewPadded(main))
	split.SetOffset(0.16)

	a.mainWin.SetContent(split)

	a.mainWin.SetCloseIntercept(func() {
		a.stopRun()
		a.display.StopPlayback()

		a.config.SetModes(a.state.SaveResults, a.state.RealTime)
		if err := a.config.SaveByDefault(); err != nil {
			logger.Warn("could not save config: %v", err)
		}
		a.mainWin.Close()
	})

	a.dispatch(view.Navigate{Page: view.PageImage})

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

// dispatch is the single entry point for state changes. UI goroutine only.
func (a *DetectApp) dispatch(action view.Action) {
	prev := a.state
	a.state = view.Reduce(prev, action)
	a.render(prev, a.state)
}

func (a *DetectApp) render(prev, next view.State) {
	if view.PageChanged(prev, next) {
		a.stopRun()
		a.display.Clear()
		a.installPage(next.Page)
	}

	if a.saveCheck.Checked != next.SaveResults {
		a.saveCheck.SetChecked(next.SaveResults)
	}
	if a.realTimeCheck.Checked != next.RealTime {
		a.realTimeCheck.SetChecked(next.RealTime)
	}

	a.statusLabel.SetText(next.Status)

	for _, w := range a.idleOnly {
		setEnabled(w, !next.Busy)
	}
	for _, w := range a.busyOnly {
		setEnabled(w, next.Busy)
	}
}

func setEnabled(w fyne.Disableable, on bool) {
	if on {
		w.Enable()
	} else {
		w.Disable()
	}
}

func (a *DetectApp) installPage(page view.Page) {
	a.idleOnly = nil
	a.busyOnly = nil
	a.pageControls.Objects = nil

	title := widget.NewLabelWithStyle(page.String(), fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	a.pageControls.Add(title)

	switch page {
	case view.PageImage:
		upload := widget.NewButtonWithIcon("Upload Image", theme.FileImageIcon(), a.uploadImage)
		a.idleOnly = append(a.idleOnly, upload)
		a.pageControls.Add(container.NewCenter(upload))

	case view.PageVideo:
		upload := widget.NewButtonWithIcon("Upload Video", theme.FileVideoIcon(), a.uploadVideo)
		stop := widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), a.stopRun)
		a.idleOnly = append(a.idleOnly, upload)
		a.busyOnly = append(a.busyOnly, stop)

		fpsInput := cwidget.NewPositiveIntInput(
			"Playback FPS",
			"Enter integer",
			int(a.config.GetPlaybackFPS()),
			func(i int) {
				a.config.SetPlaybackFPS(uint(i))
			},
		)

		a.pageControls.Add(container.NewCenter(container.NewHBox(upload, stop)))
		a.pageControls.Add(fpsInput)

	case view.PageCamera:
		start := widget.NewButtonWithIcon("Start Capture", theme.MediaPlayIcon(), a.captureFromCamera)
		stop := widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), a.stopRun)
		a.idleOnly = append(a.idleOnly, start)
		a.busyOnly = append(a.busyOnly, stop)

		a.pageControls.Add(a.cameraSelect())
		a.pageControls.Add(container.NewCenter(container.NewHBox(start, stop)))
	}

	a.pageControls.Refresh()
}

func (a *DetectApp) cameraSelect() fyne.CanvasObject {
	const loading = "Loading cameras..."

	deviceSelect := widget.NewSelect([]string{loading}, func(s string) {
		if s != loading && s != "No cameras found" {
			a.config.SetDeviceID(s)
		}
	})
	deviceSelect.SetSelected(loading)
	deviceSelect.Disable()

	go func() {
		devices, err := capture.ListCameras()

		fyne.Do(func() {
			if err != nil {
				a.log.Errorf("Error listing cameras: %v", err)
				deviceSelect.Options = []string{"Error listing cameras"}
			} else if len(devices) == 0 {
				deviceSelect.Options = []string{"No cameras found"}
				deviceSelect.SetSelected("No cameras found")
			} else {
				deviceSelect.Options = devices
				deviceSelect.Enable()

				if id := a.config.GetDeviceID(); id != "" {
					deviceSelect.SetSelected(id)
				} else {
					deviceSelect.SetSelected(devices[0])
				}
			}
			deviceSelect.Refresh()
		})
	}()

	return container.NewBorder(nil, nil, widget.NewLabel("Camera:"), nil, deviceSelect)
}

// options snapshots the toggles for one run.
func (a *DetectApp) options() pipeline.Options {
	return pipeline.Options{RealTime: a.state.RealTime, SaveResults: a.state.SaveResults}
}

func (a *DetectApp) openFile(exts []string, onPicked func(path string)) {
	d := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()
		onPicked(path)
	}, a.mainWin)

	d.SetFilter(storage.NewExtensionFileFilter(exts))
	d.Resize(fyne.NewSize(900, 600))
	d.Show()
}

func (a *DetectApp) uploadImage() {
	a.openFile(media.ImageExtensions, func(path string) {
		a.log.Infof("Image uploaded: %s", path)
		opts := a.options()

		a.startRun("Processing "+filepath.Base(path), func(ctx context.Context) (string, error) {
			res, err := a.pipeline.ProcessImage(ctx, path, opts)
			if errors.Is(err, context.Canceled) {
				return "Stopped", nil
			}
			if err != nil {
				return "", err
			}

			a.display.Bind(ctx).ShowFrame(res.Image)
			if res.Fallback() {
				return "Detector failed, showing the original image", nil
			}
			return fmt.Sprintf("%d detections", len(res.Detections)), nil
		})
	})
}

func (a *DetectApp) uploadVideo() {
	a.openFile(media.VideoExtensions, func(path string) {
		a.log.Infof("Video uploaded: %s", path)
		opts := a.options()

		a.startRun("Processing "+filepath.Base(path), func(ctx context.Context) (string, error) {
			report, err := a.pipeline.ProcessVideo(ctx, path, opts, a.display.Bind(ctx))
			return runSummary(report, err)
		})
	})
}

func (a *DetectApp) captureFromCamera() {
	a.log.Infof("Starting camera capture...")
	opts := a.options()
	opts.RealTime = true

	a.startRun("Camera "+a.config.GetDeviceID(), func(ctx context.Context) (string, error) {
		src, err := capture.NewCamera(a.config)
		if err != nil {
			a.log.Errorf("Error starting camera: %v", err)
			return "", err
		}

		report, err := a.pipeline.ProcessStream(ctx, "camera", src, opts, a.display.Bind(ctx))
		return runSummary(report, err)
	})
}

func runSummary(report pipeline.Report, err error) (string, error) {
	if errors.Is(err, context.Canceled) {
		return "Stopped: " + report.String(), nil
	}
	if err != nil {
		return "", err
	}
	return report.String(), nil
}

// startRun cancels whatever is running and starts job on a worker
// goroutine. The run's ctx outlives job so a batch playback keeps going
// until the next run or page change. UI goroutine only.
func (a *DetectApp) startRun(status string, job func(ctx context.Context) (string, error)) {
	a.stopRun()
	a.display.StopPlayback()

	ctx, cancel := context.WithCancel(context.Background())
	a.runMu.Lock()
	a.cancelRun = cancel
	a.runMu.Unlock()

	a.runID++
	id := a.runID
	a.dispatch(view.RunStarted{Status: status})

	go func() {
		summary, err := job(ctx)
		if err != nil {
			summary = "Failed: " + err.Error()
		}

		fyne.Do(func() {
			if id == a.runID {
				a.dispatch(view.RunFinished{Status: summary})
			}
		})
	}()
}

func (a *DetectApp) stopRun() {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.cancelRun != nil {
		a.cancelRun()
		a.cancelRun = nil
	}
}
