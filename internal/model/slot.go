package model

import (
	"fmt"
	"strings"
	"time"
)

// TimeSlot is a derived candidate window. It is never persisted.
type TimeSlot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
	// Labels in the provider's zone, e.g. "9:00 AM".
	Label    string `json:"time"`
	EndLabel string `json:"end_time"`
}

func (s TimeSlot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

type DayPart string

const (
	DayPartMorning   DayPart = "morning"
	DayPartAfternoon DayPart = "afternoon"
	DayPartEvening   DayPart = "evening"
)

// ParseDayPart accepts an empty string as "whole day".
func ParseDayPart(s string) (DayPart, error) {
	switch p := DayPart(strings.ToLower(strings.TrimSpace(s))); p {
	case "", DayPartMorning, DayPartAfternoon, DayPartEvening:
		return p, nil
	default:
		return "", fmt.Errorf("unknown day part %q", s)
	}
}

// Contains classifies by the local hour a slot starts at.
func (p DayPart) Contains(hour int) bool {
	switch p {
	case DayPartMorning:
		return hour < 12
	case DayPartAfternoon:
		return hour >= 12 && hour < 17
	case DayPartEvening:
		return hour >= 17
	default:
		return true
	}
}
