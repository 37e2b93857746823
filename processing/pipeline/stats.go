package pipeline

import (
	"fmt"
	"time"
)

// Stats summarises one run.
type Stats struct {
	Frames  int
	Failed  int
	Latency time.Duration // mean detector latency per frame
	FPS     float64       // frames processed per wall-clock second
	Elapsed time.Duration

	started      time.Time
	totalLatency time.Duration
}

func newStats() Stats {
	return Stats{started: time.Now()}
}

func (s *Stats) record(r Result) {
	s.Frames++
	if r.Err != nil {
		s.Failed++
	}
	s.totalLatency += r.Latency
	s.Latency = s.totalLatency / time.Duration(s.Frames)
}

func (s *Stats) finish() {
	s.Elapsed = time.Since(s.started)
	if s.Elapsed > 0 {
		s.FPS = float64(s.Frames) / s.Elapsed.Seconds()
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("%d frames (%d failed), latency %d ms, %.1f FPS",
		s.Frames, s.Failed, s.Latency.Milliseconds(), s.FPS)
}
