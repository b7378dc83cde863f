package acquisition

import (
	"fmt"

	"agbprep/internal/history"
)

// Plot outcomes.
const (
	PlotCompleted = "completed"
	PlotSkipped   = "skipped"
	PlotNoImagery = "no_imagery"
	PlotFailed    = "failed"
)

// Failure is one per-unit failure reported at the end of a run. Band is empty
// when the whole plot failed.
type Failure struct {
	Plot   string
	Band   string
	Reason string
}

func (f Failure) String() string {
	if f.Band == "" {
		return fmt.Sprintf("%s: %s", f.Plot, f.Reason)
	}
	return fmt.Sprintf("%s/%s: %s", f.Plot, f.Band, f.Reason)
}

// Summary aggregates the outcome of a run.
type Summary struct {
	PlotsProcessed  int
	PlotsCompleted  int
	PlotsSkipped    int
	PlotsNoImagery  int
	PlotsFailed     int
	BandsDownloaded int
	BandsSkipped    int
	BandsFailed     int
	BytesDownloaded int64
	Failures        []Failure
}

// Counts converts the summary to ledger counts.
func (s Summary) Counts() history.Counts {
	return history.Counts{
		PlotsProcessed:  s.PlotsProcessed,
		PlotsCompleted:  s.PlotsCompleted,
		PlotsSkipped:    s.PlotsSkipped,
		PlotsNoImagery:  s.PlotsNoImagery,
		PlotsFailed:     s.PlotsFailed,
		BandsDownloaded: s.BandsDownloaded,
		BandsFailed:     s.BandsFailed,
	}
}

// HasFailures reports whether any plot ended without all of its bands.
func (s Summary) HasFailures() bool {
	return s.PlotsFailed > 0 || s.BandsFailed > 0
}

func (s *Summary) addPlot(outcome string) {
	s.PlotsProcessed++
	switch outcome {
	case PlotCompleted:
		s.PlotsCompleted++
	case PlotSkipped:
		s.PlotsSkipped++
	case PlotNoImagery:
		s.PlotsNoImagery++
	case PlotFailed:
		s.PlotsFailed++
	}
}
