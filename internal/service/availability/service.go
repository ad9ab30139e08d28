package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/repository"
	"github.com/jwalitptl/scheduling-api/pkg/logger"
	"github.com/jwalitptl/scheduling-api/pkg/metrics"
)

type Service struct {
	appointments repository.AppointmentRepository
	overlay      repository.CalendarOverlayRepository
	hours        BusinessHours
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

// NewService builds the availability service. overlay may be nil when no
// external calendar feed is configured.
func NewService(
	appointments repository.AppointmentRepository,
	overlay repository.CalendarOverlayRepository,
	hours BusinessHours,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		appointments: appointments,
		overlay:      overlay,
		hours:        hours,
		logger:       logger,
		metrics:      metrics,
	}
}

func (s *Service) Hours() BusinessHours { return s.hours }

// ForDay returns the provider's slot grid for day, each slot marked free or
// taken.
func (s *Service) ForDay(ctx context.Context, providerID uuid.UUID, day time.Time, part model.DayPart) ([]model.TimeSlot, error) {
	slots := GenerateSlots(day, part, s.hours)
	if len(slots) == 0 {
		return slots, nil
	}

	dayStart := s.hours.DayStart(day)
	booked, err := s.appointments.ListInWindow(ctx, providerID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to load provider appointments: %w", err)
	}

	overlay, err := s.loadOverlay(ctx, providerID, dayStart)
	if err != nil {
		return nil, err
	}

	resolved, warnings := Resolve(slots, booked, overlay)
	s.report(providerID, warnings)
	return resolved, nil
}

// IsFree re-checks one interval against committed appointments and the
// overlay at the moment of the call.
func (s *Service) IsFree(ctx context.Context, providerID uuid.UUID, candidate model.Interval) (bool, error) {
	booked, err := s.appointments.ListInWindow(ctx, providerID, candidate.Start, candidate.End)
	if err != nil {
		return false, fmt.Errorf("failed to load provider appointments: %w", err)
	}

	overlay, err := s.loadOverlay(ctx, providerID, s.hours.DayStart(candidate.Start))
	if err != nil {
		return false, err
	}

	free, warnings := Free(candidate, booked, overlay)
	s.report(providerID, warnings)
	return free, nil
}

func (s *Service) loadOverlay(ctx context.Context, providerID uuid.UUID, dayStart time.Time) ([]model.ExternalBusyInterval, error) {
	if s.overlay == nil {
		return nil, nil
	}
	entries, err := s.overlay.ListForDay(ctx, providerID, dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar overlay: %w", err)
	}
	return entries, nil
}

func (s *Service) report(providerID uuid.UUID, warnings []DataWarning) {
	for _, w := range warnings {
		s.metrics.DataQualityIssues.Inc()
		s.logger.Warn("skipped malformed busy interval",
			"provider_id", providerID.String(),
			"source", w.Source,
			"reference", w.Reference,
			"reason", w.Reason)
	}
}
