package availability

import (
	"fmt"

	"github.com/jwalitptl/scheduling-api/internal/model"
)

const (
	SourceAppointment = "appointment"
	SourceOverlay     = "calendar_overlay"
)

// DataWarning reports a busy interval that could not be used.
type DataWarning struct {
	Source    string `json:"source"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// Resolve marks every slot that overlaps a blocking appointment or an overlay
// entry as unavailable. Cancelled appointments never block. The input is not
// modified and the output keeps its order. Malformed intervals are skipped and
// reported.
func Resolve(slots []model.TimeSlot, booked []*model.Appointment, overlay []model.ExternalBusyInterval) ([]model.TimeSlot, []DataWarning) {
	busy, warnings := busyIntervals(booked, overlay)

	out := make([]model.TimeSlot, len(slots))
	for i, slot := range slots {
		slot.Available = true
		for _, iv := range busy {
			if slot.Interval().Overlaps(iv) {
				slot.Available = false
				break
			}
		}
		out[i] = slot
	}
	return out, warnings
}

// Free is Resolve for a single interval.
func Free(candidate model.Interval, booked []*model.Appointment, overlay []model.ExternalBusyInterval) (bool, []DataWarning) {
	resolved, warnings := Resolve([]model.TimeSlot{{Start: candidate.Start, End: candidate.End}}, booked, overlay)
	return resolved[0].Available, warnings
}

// OnlyAvailable filters resolved slots down to the free ones.
func OnlyAvailable(slots []model.TimeSlot) []model.TimeSlot {
	out := make([]model.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

func busyIntervals(booked []*model.Appointment, overlay []model.ExternalBusyInterval) ([]model.Interval, []DataWarning) {
	var (
		busy     []model.Interval
		warnings []DataWarning
	)

	for _, a := range booked {
		if a == nil || !a.Status.Blocks() {
			continue
		}
		iv := a.Interval()
		if !iv.Valid() {
			warnings = append(warnings, DataWarning{
				Source:    SourceAppointment,
				Reference: a.ID.String(),
				Reason:    fmt.Sprintf("invalid interval %s - %s", a.StartTime, a.EndTime),
			})
			continue
		}
		busy = append(busy, iv)
	}

	for _, e := range overlay {
		iv, err := e.Parse()
		if err != nil {
			warnings = append(warnings, DataWarning{
				Source:    SourceOverlay,
				Reference: e.ID.String(),
				Reason:    fmt.Sprintf("unparseable bounds: %v", err),
			})
			continue
		}
		if !iv.Valid() {
			warnings = append(warnings, DataWarning{
				Source:    SourceOverlay,
				Reference: e.ID.String(),
				Reason:    fmt.Sprintf("end %s is not after start %s", e.EndRaw, e.StartRaw),
			})
			continue
		}
		busy = append(busy, iv)
	}

	return busy, warnings
}
