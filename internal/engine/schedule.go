package engine

import (
	"github.com/aristath/dca-lab/internal/domain"
)

// Schedule gates investments to every interval-th bar. The last-invested
// marker starts at "never"; the first eligible bar is always due. Missed
// investments are never made up: the marker advances on skipped rounds too.
type Schedule struct {
	interval int
	lastBar  int
}

// NewSchedule creates a schedule firing every interval bars
func NewSchedule(interval int) (*Schedule, error) {
	if interval < 1 {
		return nil, domain.NewConfigError("interval", "must be at least 1")
	}
	return &Schedule{interval: interval, lastBar: -1}, nil
}

// Interval returns the configured bar spacing
func (s *Schedule) Interval() int { return s.interval }

// Due reports whether the given bar index is an investment bar
func (s *Schedule) Due(bar int) bool {
	if s.lastBar < 0 {
		return true
	}
	return bar-s.lastBar >= s.interval
}

// Mark records a decision at the given bar, scheduled or skipped alike
func (s *Schedule) Mark(bar int) {
	s.lastBar = bar
}

// Reset returns the schedule to its initial never-invested state
func (s *Schedule) Reset() {
	s.lastBar = -1
}
