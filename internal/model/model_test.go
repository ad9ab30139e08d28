package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalOverlapsHalfOpen(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }
	booked := Interval{Start: at(10, 0), End: at(10, 45)}

	assert.True(t, Interval{Start: at(10, 0), End: at(10, 45)}.Overlaps(booked))
	assert.True(t, Interval{Start: at(10, 30), End: at(11, 15)}.Overlaps(booked))
	assert.False(t, Interval{Start: at(10, 45), End: at(11, 30)}.Overlaps(booked))
	assert.False(t, Interval{Start: at(9, 15), End: at(10, 0)}.Overlaps(booked))
}

func TestIntervalOverlapsAcrossZones(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*3600)
	a := Interval{Start: time.Date(2026, 3, 2, 13, 0, 0, 0, nairobi), End: time.Date(2026, 3, 2, 13, 45, 0, 0, nairobi)}
	b := Interval{Start: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), End: time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)}
	assert.True(t, a.Overlaps(b))
}

func TestIntervalValid(t *testing.T) {
	now := time.Now()
	assert.True(t, Interval{Start: now, End: now.Add(time.Minute)}.Valid())
	assert.False(t, Interval{Start: now, End: now}.Valid())
	assert.False(t, Interval{End: now}.Valid())
}

func TestParseDayPart(t *testing.T) {
	p, err := ParseDayPart("Evening")
	require.NoError(t, err)
	assert.Equal(t, DayPartEvening, p)
	assert.True(t, p.Contains(17))
	assert.False(t, p.Contains(16))

	p, err = ParseDayPart("")
	require.NoError(t, err)
	assert.True(t, p.Contains(3))

	_, err = ParseDayPart("night")
	assert.Error(t, err)
}

func TestProposedSlotsScanValue(t *testing.T) {
	c := 0.5
	slots := ProposedSlots{
		{Start: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 3, 2, 9, 45, 0, 0, time.UTC), Confidence: &c},
		{Start: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), End: time.Date(2026, 3, 2, 10, 45, 0, 0, time.UTC)},
	}
	v, err := slots.Value()
	require.NoError(t, err)

	var back ProposedSlots
	require.NoError(t, back.Scan(v))
	require.Len(t, back, 2)
	assert.Equal(t, 0.5, back[0].ConfidenceOrDefault())
	assert.Equal(t, DefaultSlotConfidence, back[1].ConfidenceOrDefault())

	require.NoError(t, back.Scan(nil))
	assert.Empty(t, back)
	assert.Error(t, back.Scan(42))
}

func TestExternalBusyIntervalParse(t *testing.T) {
	e := ExternalBusyInterval{StartRaw: "2026-03-02T10:00:00+03:00", EndRaw: "2026-03-02T11:00:00+03:00"}
	iv, err := e.Parse()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, iv.Duration())

	_, err = ExternalBusyInterval{StartRaw: "tomorrow", EndRaw: "later"}.Parse()
	assert.Error(t, err)
}
