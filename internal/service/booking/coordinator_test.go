package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/repository"
	"github.com/jwalitptl/scheduling-api/internal/repository/memory"
	"github.com/jwalitptl/scheduling-api/internal/service/availability"
	"github.com/jwalitptl/scheduling-api/internal/service/event"
	"github.com/jwalitptl/scheduling-api/internal/service/meeting"
	apperrors "github.com/jwalitptl/scheduling-api/pkg/errors"
	"github.com/jwalitptl/scheduling-api/pkg/logger"
	"github.com/jwalitptl/scheduling-api/pkg/metrics"
)

var clock = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }

type fixture struct {
	store   *memory.Store
	repos   *repository.Repositories
	avail   *availability.Service
	coord   *Coordinator
	metrics *metrics.Metrics
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	rooms RoomProvisioner
	check AvailabilityChecker
}

func withRooms(r RoomProvisioner) fixtureOption        { return func(c *fixtureConfig) { c.rooms = r } }
func withChecker(a AvailabilityChecker) fixtureOption { return func(c *fixtureConfig) { c.check = a } }

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	m := metrics.NewNop()
	avail := availability.NewService(repos.Appointments, repos.Overlay, availability.DefaultBusinessHours(time.UTC), logger.Nop(), m)

	cfg := fixtureConfig{
		rooms: meeting.NewProvisioner(repos.Rooms, nil, meeting.Config{FallbackBaseURL: "https://meet.example.com"}, logger.Nop(), m),
		check: avail,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	coord := NewCoordinator(repos.Appointments, cfg.check, cfg.rooms, event.NewEventService(repos.Outbox), logger.Nop(), m).
		WithClock(func() time.Time { return clock })
	return &fixture{store: store, repos: repos, avail: avail, coord: coord, metrics: m}
}

func (f *fixture) all(t *testing.T) []*model.Appointment {
	t.Helper()
	list, err := f.repos.Appointments.List(context.Background(), nil)
	require.NoError(t, err)
	return list
}

type failingRooms struct{ err error }

func (r failingRooms) Provision(context.Context, uuid.UUID, model.Principal) (*model.MeetingRoom, error) {
	return nil, r.err
}

// detachedRooms hands out a room that was never stored.
type detachedRooms struct{}

func (detachedRooms) Provision(_ context.Context, appointmentID uuid.UUID, _ model.Principal) (*model.MeetingRoom, error) {
	return &model.MeetingRoom{Base: model.Base{ID: uuid.New()}, AppointmentID: appointmentID, JoinURL: "https://x"}, nil
}

type alwaysFree struct{}

func (alwaysFree) IsFree(context.Context, uuid.UUID, model.Interval) (bool, error) { return true, nil }

func request(provider uuid.UUID, start, end time.Time) Request {
	return Request{ProviderID: provider, ClientID: uuid.New(), Start: start, End: end, Price: 60}
}

func TestBookCreatesAppointmentWithRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.coord.Book(ctx, request(uuid.New(), at(10, 0), at(10, 45)))
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.True(t, res.RoomReady())
	assert.Equal(t, model.AppointmentStatusPending, res.Appointment.Status)
	assert.Equal(t, model.MeetingProviderFallbackLink, res.Room.Provider)

	stored, err := f.repos.Appointments.Get(ctx, res.Appointment.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.MeetingRoomID)
	assert.Equal(t, res.Room.ID, *stored.MeetingRoomID)
	assert.Equal(t, res.Room.JoinURL, *stored.JoinURL)

	events := f.store.Outbox()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAppointmentCreated, events[0].EventType)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BookingsCreated))
}

func TestBookRejectsTakenSlotWithoutWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	provider := uuid.New()

	_, err := f.coord.Book(ctx, request(provider, at(10, 0), at(10, 45)))
	require.NoError(t, err)
	before := len(f.store.Outbox())

	_, err = f.coord.Book(ctx, request(provider, at(10, 30), at(11, 15)))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSlotNoLongerAvailable))
	assert.Len(t, f.all(t), 1)
	assert.Len(t, f.store.Outbox(), before)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BookingConflicts.WithLabelValues("precheck")))
}

func TestBookTreatsConstraintViolationAsTaken(t *testing.T) {
	f := newFixture(t, withChecker(alwaysFree{}))
	ctx := context.Background()
	provider := uuid.New()

	_, err := f.coord.Book(ctx, request(provider, at(10, 0), at(10, 45)))
	require.NoError(t, err)

	_, err = f.coord.Book(ctx, request(provider, at(10, 0), at(10, 45)))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSlotNoLongerAvailable))
	assert.Len(t, f.all(t), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BookingConflicts.WithLabelValues("commit")))
}

func TestBookKeepsAppointmentWhenProvisioningFails(t *testing.T) {
	f := newFixture(t, withRooms(failingRooms{err: errors.New("vendor outage")}))
	ctx := context.Background()

	res, err := f.coord.Book(ctx, request(uuid.New(), at(14, 0), at(14, 45)))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, model.WarningDependencyDegraded, res.Warnings[0].Code)
	assert.Equal(t, res.Appointment.ID.String(), res.Warnings[0].Reference)
	assert.False(t, res.RoomReady())

	stored, err := f.repos.Appointments.Get(ctx, res.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, stored.Status)
	assert.Nil(t, stored.MeetingRoomID)
}

func TestBookNeverAttachesMissingRoom(t *testing.T) {
	f := newFixture(t, withRooms(detachedRooms{}))
	ctx := context.Background()

	res, err := f.coord.Book(ctx, request(uuid.New(), at(14, 0), at(14, 45)))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Nil(t, res.Room)

	stored, err := f.repos.Appointments.Get(ctx, res.Appointment.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.MeetingRoomID)
	assert.Nil(t, stored.JoinURL)
}

func TestBookValidation(t *testing.T) {
	f := newFixture(t)
	provider := uuid.New()

	tests := []struct {
		name string
		req  Request
	}{
		{"missing provider", Request{ClientID: uuid.New(), Start: at(9, 0), End: at(9, 45)}},
		{"missing client", Request{ProviderID: provider, Start: at(9, 0), End: at(9, 45)}},
		{"self booking", Request{ProviderID: provider, ClientID: provider, Start: at(9, 0), End: at(9, 45)}},
		{"inverted", request(provider, at(9, 45), at(9, 0))},
		{"empty", request(provider, at(9, 0), at(9, 0))},
		{"in the past", request(provider, clock.Add(-time.Hour), clock)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.coord.Book(context.Background(), tt.req)
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.KindValidation, appErr.Kind)
		})
	}
	assert.Empty(t, f.all(t))
}

func TestBookIdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := request(uuid.New(), at(11, 0), at(11, 45))
	req.IdempotencyKey = "booking-attempt-7"

	first, err := f.coord.Book(ctx, req)
	require.NoError(t, err)
	second, err := f.coord.Book(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Appointment.ID, second.Appointment.ID)
	assert.Len(t, f.all(t), 1)
}

func TestBookIdempotencyKeyRejectsDifferentBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := request(uuid.New(), at(11, 0), at(11, 45))
	req.IdempotencyKey = "booking-attempt-8"

	_, err := f.coord.Book(ctx, req)
	require.NoError(t, err)

	moved := req
	moved.Start, moved.End = at(15, 0), at(15, 45)
	_, err = f.coord.Book(ctx, moved)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	other := req
	other.ProviderID = uuid.New()
	_, err = f.coord.Book(ctx, other)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
	assert.Len(t, f.all(t), 1)
}

// exclusionFirstAppointments reports a duplicate key as an interval
// conflict, the order PostgreSQL may check its constraints in, and hides the
// earlier attempt from the first key lookup.
type exclusionFirstAppointments struct {
	repository.AppointmentRepository
	hidden int
}

func (r *exclusionFirstAppointments) GetByIdempotencyKey(ctx context.Context, clientID uuid.UUID, key string) (*model.Appointment, error) {
	if r.hidden > 0 {
		r.hidden--
		return nil, repository.ErrNotFound
	}
	return r.AppointmentRepository.GetByIdempotencyKey(ctx, clientID, key)
}

func (r *exclusionFirstAppointments) Create(ctx context.Context, a *model.Appointment) error {
	err := r.AppointmentRepository.Create(ctx, a)
	if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
		return fmt.Errorf("insert: %w", repository.ErrIntervalTaken)
	}
	return err
}

func TestBookReplaysRetryThatHitsExclusion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := request(uuid.New(), at(11, 0), at(11, 45))
	req.IdempotencyKey = "booking-attempt-9"

	first, err := f.coord.Book(ctx, req)
	require.NoError(t, err)

	appts := &exclusionFirstAppointments{AppointmentRepository: f.repos.Appointments, hidden: 1}
	rooms := meeting.NewProvisioner(f.repos.Rooms, nil, meeting.Config{}, logger.Nop(), f.metrics)
	coord := NewCoordinator(appts, alwaysFree{}, rooms, event.NewEventService(f.repos.Outbox), logger.Nop(), f.metrics).
		WithClock(func() time.Time { return clock })

	second, err := coord.Book(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Appointment.ID, second.Appointment.ID)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.BookingConflicts.WithLabelValues("commit")))
}

func TestCancellationFreesCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := request(uuid.New(), at(14, 0), at(14, 45))

	res, err := f.coord.Book(ctx, req)
	require.NoError(t, err)

	slots, err := f.avail.ForDay(ctx, req.ProviderID, at(0, 0), model.DayPart(""))
	require.NoError(t, err)
	assert.False(t, slotAt(t, slots, 14).Available)

	client := model.Principal{AccountID: req.ClientID, Role: model.RoleClient}
	_, err = f.coord.UpdateStatus(ctx, client, res.Appointment.ID, model.AppointmentStatusCancelled)
	require.NoError(t, err)

	slots, err = f.avail.ForDay(ctx, req.ProviderID, at(0, 0), model.DayPart(""))
	require.NoError(t, err)
	assert.True(t, slotAt(t, slots, 14).Available)

	_, err = f.coord.Book(ctx, request(req.ProviderID, at(14, 0), at(14, 45)))
	assert.NoError(t, err)
}

func slotAt(t *testing.T, slots []model.TimeSlot, hour int) model.TimeSlot {
	t.Helper()
	for _, s := range slots {
		if s.Start.Hour() == hour {
			return s
		}
	}
	t.Fatalf("no slot at %d:00", hour)
	return model.TimeSlot{}
}

// Random concurrent bookings against one provider must never leave two
// blocking appointments overlapping.
func TestConcurrentBookingsNeverOverlap(t *testing.T) {
	for _, checker := range []string{"resolver", "store only"} {
		t.Run(checker, func(t *testing.T) {
			var f *fixture
			if checker == "resolver" {
				f = newFixture(t)
			} else {
				f = newFixture(t, withChecker(alwaysFree{}))
			}
			provider := uuid.New()
			rng := rand.New(rand.NewSource(42))

			var wg sync.WaitGroup
			for i := 0; i < 64; i++ {
				start := at(9, 0).Add(time.Duration(rng.Intn(40)) * 15 * time.Minute)
				length := time.Duration(1+rng.Intn(4)) * 15 * time.Minute
				wg.Add(1)
				go func(req Request) {
					defer wg.Done()
					_, err := f.coord.Book(context.Background(), req)
					if err != nil {
						assert.True(t, apperrors.HasCode(err, apperrors.CodeSlotNoLongerAvailable), err.Error())
					}
				}(request(provider, start, start.Add(length)))
			}
			wg.Wait()

			booked := f.all(t)
			require.NotEmpty(t, booked)
			for i, a := range booked {
				for _, b := range booked[i+1:] {
					assert.False(t, a.Interval().Overlaps(b.Interval()),
						fmt.Sprintf("%s overlaps %s", a.StartTime.Format(time.Kitchen), b.StartTime.Format(time.Kitchen)))
				}
			}
		})
	}
}
