package config

import (
	"fmt"
	"time"
)

// SeasonWindow returns the acquisition date window as a half-open interval
// [start, end). The end day is inclusive in configuration, so end is the
// midnight after it. An end on or before the start falls in the following
// year, which covers a dry season that spans the new year.
func (c *Config) SeasonWindow() (time.Time, time.Time, error) {
	startMonth, startDay, err := parseMonthDay(c.Imagery.SeasonStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("imagery.season_start: %w", err)
	}
	endMonth, endDay, err := parseMonthDay(c.Imagery.SeasonEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("imagery.season_end: %w", err)
	}
	year := c.Imagery.Year
	start := time.Date(year, startMonth, startDay, 0, 0, 0, 0, time.UTC)
	endYear := year
	if endMonth < startMonth || (endMonth == startMonth && endDay <= startDay) {
		endYear++
	}
	end := time.Date(endYear, endMonth, endDay, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return start, end, nil
}

func parseMonthDay(value string) (time.Month, int, error) {
	parsed, err := time.Parse("01-02", value)
	if err != nil {
		return 0, 0, fmt.Errorf("expected MM-DD, got %q", value)
	}
	return parsed.Month(), parsed.Day(), nil
}
