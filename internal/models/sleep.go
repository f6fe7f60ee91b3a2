package models

import "time"

// StageSpan is one contiguous run of a single sleep stage.
type StageSpan struct {
	Stage    string
	Start    time.Time
	Duration time.Duration
}

// End returns the instant the span finishes.
func (s StageSpan) End() time.Time {
	return s.Start.Add(s.Duration)
}

// StageSummary aggregates one stage across a session.
type StageSummary struct {
	Count    int
	Duration time.Duration
}

// Sleep is one normalized sleep session.
type Sleep struct {
	// Timestamp anchors the session to a calendar date for filtering.
	Timestamp time.Time

	Start    time.Time
	Stop     time.Time
	Duration time.Duration

	// Stages holds the session's spans in chronological order.
	Stages []StageSpan

	// Summary aggregates spans per canonical stage name.
	Summary map[string]StageSummary

	// WASO is the wake time after first falling asleep.
	WASO time.Duration

	// Efficiency is a percentage in [0,100].
	Efficiency float64

	// Inconsistent marks sessions whose reported stop time disagrees with
	// the stage data by more than one second. Kept, but flagged.
	Inconsistent bool
}

// Onset returns the instant of the first non-wake span, or the session
// start when the session never leaves wake.
func (s *Sleep) Onset() time.Time {
	for _, span := range s.Stages {
		if span.Stage != StageWake {
			return span.Start
		}
	}
	return s.Start
}

// Awakenings returns the session's wake span count from the stage summary.
func (s *Sleep) Awakenings() int {
	return s.Summary[StageWake].Count
}

// StageDuration returns the summed duration for one canonical stage.
func (s *Sleep) StageDuration(stage string) time.Duration {
	return s.Summary[stage].Duration
}
