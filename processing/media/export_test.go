package media

// UseVideoWriter replaces the ffmpeg backed encoder.
func (e *DirExporter) UseVideoWriter(fn func(path string, width, height int, fps float64) (FrameWriter, error)) {
	e.newVideo = fn
}

type FrameReader = frameReader

func NewVideoSource(video FrameReader, path string) (*VideoSource, error) {
	return newVideoSource(video, path)
}
