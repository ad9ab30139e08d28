package availability

import (
	"time"

	"github.com/jwalitptl/scheduling-api/internal/model"
)

// LabelLayout renders slot bounds for display, e.g. "9:00 AM".
const LabelLayout = "3:04 PM"

// BusinessHours describes the bookable grid of a day. Start and End are
// offsets from local midnight in Location.
type BusinessHours struct {
	Location *time.Location
	Start    time.Duration
	End      time.Duration
	Session  time.Duration
	Step     time.Duration
}

// DefaultBusinessHours is 09:00 to 19:00 with 45 minute sessions starting
// every hour.
func DefaultBusinessHours(loc *time.Location) BusinessHours {
	if loc == nil {
		loc = time.UTC
	}
	return BusinessHours{
		Location: loc,
		Start:    9 * time.Hour,
		End:      19 * time.Hour,
		Session:  45 * time.Minute,
		Step:     time.Hour,
	}
}

// DayStart returns local midnight of the calendar date of day.
func (h BusinessHours) DayStart(day time.Time) time.Time {
	y, m, d := day.In(h.location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, h.location())
}

func (h BusinessHours) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// at resolves an offset on the wall clock so DST shifts do not move slots.
func (h BusinessHours) at(day time.Time, offset time.Duration) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, int(offset/time.Minute), 0, 0, h.location())
}

// GenerateSlots lays out every session window that fits inside business
// hours on the given local date, keeping only those whose start hour falls in
// part. An empty part keeps the whole day. The result may be empty.
func GenerateSlots(day time.Time, part model.DayPart, hours BusinessHours) []model.TimeSlot {
	if hours.Session <= 0 || hours.Step <= 0 || hours.End <= hours.Start {
		return nil
	}

	local := hours.DayStart(day)
	var slots []model.TimeSlot
	for offset := hours.Start; offset+hours.Session <= hours.End; offset += hours.Step {
		start := hours.at(local, offset)
		end := hours.at(local, offset+hours.Session)
		if !part.Contains(start.Hour()) {
			continue
		}
		slots = append(slots, model.TimeSlot{
			Start:     start,
			End:       end,
			Available: true,
			Label:     start.Format(LabelLayout),
			EndLabel:  end.Format(LabelLayout),
		})
	}
	return slots
}
