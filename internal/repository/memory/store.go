// Package memory is an in-process store that enforces the same constraints
// as the PostgreSQL schema. It backs the "memory" database driver and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/repository"
)

type Store struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]model.Appointment
	rooms        map[uuid.UUID]model.MeetingRoom
	proposals    map[uuid.UUID]model.SlotProposal
	outbox       []model.OutboxEvent
	accounts     map[uuid.UUID]model.Account
	overlay      []model.ExternalBusyInterval
	credentials  map[string]model.OrganizerCredential
	now          func() time.Time
}

func NewStore() *Store {
	return &Store{
		appointments: make(map[uuid.UUID]model.Appointment),
		rooms:        make(map[uuid.UUID]model.MeetingRoom),
		proposals:    make(map[uuid.UUID]model.SlotProposal),
		accounts:     make(map[uuid.UUID]model.Account),
		credentials:  make(map[string]model.OrganizerCredential),
		now:          time.Now,
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Appointments: &appointmentRepo{s},
		Rooms:        &roomRepo{s},
		Proposals:    &proposalRepo{s},
		Outbox:       &outboxRepo{s},
		Accounts:     &accountRepo{s},
		Overlay:      &overlayRepo{s},
		Credentials:  &credentialRepo{s},
		Ping:         func(context.Context) error { return nil },
		Close:        func() error { return nil },
	}
}

// PutAccount seeds a profile.
func (s *Store) PutAccount(a model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
}

// PutBusy seeds an external calendar entry.
func (s *Store) PutBusy(e model.ExternalBusyInterval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	s.overlay = append(s.overlay, e)
}

// Outbox returns a snapshot of every outbox event in insertion order.
func (s *Store) Outbox() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OutboxEvent, len(s.outbox))
	copy(out, s.outbox)
	return out
}

type appointmentRepo struct{ s *Store }

func (r *appointmentRepo) Create(_ context.Context, a *model.Appointment) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.IdempotencyKey != nil {
		for _, existing := range s.appointments {
			if existing.ClientID == a.ClientID && existing.IdempotencyKey != nil && *existing.IdempotencyKey == *a.IdempotencyKey {
				return repository.ErrDuplicateIdempotencyKey
			}
		}
	}
	if a.Status.Blocks() {
		for _, existing := range s.appointments {
			if existing.ProviderID == a.ProviderID && existing.Status.Blocks() && existing.Interval().Overlaps(a.Interval()) {
				return repository.ErrIntervalTaken
			}
		}
	}

	a.Touch(s.now())
	s.appointments[a.ID] = *a
	return nil
}

func (r *appointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *appointmentRepo) GetByIdempotencyKey(_ context.Context, clientID uuid.UUID, key string) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.appointments {
		if a.ClientID == clientID && a.IdempotencyKey != nil && *a.IdempotencyKey == key {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *appointmentRepo) List(_ context.Context, f *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.Appointment
	for _, a := range r.s.appointments {
		a := a
		if f != nil {
			if f.ProviderID != uuid.Nil && a.ProviderID != f.ProviderID {
				continue
			}
			if f.ClientID != uuid.Nil && a.ClientID != f.ClientID {
				continue
			}
			if f.ParticipantID != uuid.Nil && !a.IsParticipant(f.ParticipantID) {
				continue
			}
			if f.Status != "" && a.Status != f.Status {
				continue
			}
			if !f.From.IsZero() && !a.EndTime.After(f.From) {
				continue
			}
			if !f.To.IsZero() && !a.StartTime.Before(f.To) {
				continue
			}
		}
		out = append(out, &a)
	}
	sortByStart(out)
	return out, nil
}

func (r *appointmentRepo) ListInWindow(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	window := model.Interval{Start: from, End: to}
	var out []*model.Appointment
	for _, a := range r.s.appointments {
		a := a
		if a.ProviderID == providerID && a.Interval().Overlaps(window) {
			out = append(out, &a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *appointmentRepo) ListByProposal(_ context.Context, proposalID uuid.UUID) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.Appointment
	for _, a := range r.s.appointments {
		a := a
		if a.ProposalID != nil && *a.ProposalID == proposalID {
			out = append(out, &a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *appointmentRepo) AttachRoom(_ context.Context, id, roomID uuid.UUID, joinURL string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.rooms[roomID]; !ok {
		return repository.ErrNotFound
	}
	a.MeetingRoomID = &roomID
	a.JoinURL = &joinURL
	a.UpdatedAt = s.now()
	s.appointments[id] = a
	return nil
}

func (r *appointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.AppointmentStatus) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if a.Status != from {
		return repository.ErrStaleState
	}
	if !from.Blocks() && to.Blocks() {
		for _, other := range s.appointments {
			if other.ID != id && other.ProviderID == a.ProviderID && other.Status.Blocks() && other.Interval().Overlaps(a.Interval()) {
				return repository.ErrIntervalTaken
			}
		}
	}
	a.Status = to
	a.UpdatedAt = s.now()
	s.appointments[id] = a
	return nil
}

func sortByStart(list []*model.Appointment) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].ID.String() < list[j].ID.String()
		}
		return list[i].StartTime.Before(list[j].StartTime)
	})
}

type roomRepo struct{ s *Store }

func (r *roomRepo) Create(_ context.Context, room *model.MeetingRoom) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rooms {
		if existing.AppointmentID == room.AppointmentID {
			return repository.ErrRoomExists
		}
	}
	room.Touch(s.now())
	s.rooms[room.ID] = *room
	return nil
}

func (r *roomRepo) Get(_ context.Context, id uuid.UUID) (*model.MeetingRoom, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &room, nil
}

func (r *roomRepo) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*model.MeetingRoom, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, room := range r.s.rooms {
		if room.AppointmentID == appointmentID {
			return &room, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *roomRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.RoomStatus, at time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return repository.ErrNotFound
	}
	if room.Status != from {
		return repository.ErrStaleState
	}
	room.Status = to
	switch to {
	case model.RoomStatusActive:
		room.StartedAt = &at
	case model.RoomStatusEnded:
		room.EndedAt = &at
	}
	room.UpdatedAt = s.now()
	s.rooms[id] = room
	return nil
}

type proposalRepo struct{ s *Store }

func (r *proposalRepo) Create(_ context.Context, p *model.SlotProposal) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Touch(s.now())
	s.proposals[p.ID] = copyProposal(*p)
	return nil
}

func (r *proposalRepo) Get(_ context.Context, id uuid.UUID) (*model.SlotProposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.proposals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = copyProposal(p)
	return &p, nil
}

func (r *proposalRepo) UpdateDraft(_ context.Context, p *model.SlotProposal) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.proposals[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if existing.Status != model.ProposalStatusDraft {
		return repository.ErrStaleState
	}
	existing.Slots = p.Slots
	existing.Price = p.Price
	existing.Notes = p.Notes
	existing.UpdatedAt = s.now()
	s.proposals[p.ID] = copyProposal(existing)
	p.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r *proposalRepo) MarkSent(_ context.Context, id uuid.UUID, sentAt, expiresAt time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Status != model.ProposalStatusDraft {
		return repository.ErrStaleState
	}
	p.Status = model.ProposalStatusSent
	p.SentAt = &sentAt
	p.ExpiresAt = &expiresAt
	p.UpdatedAt = s.now()
	s.proposals[id] = p
	return nil
}

func (r *proposalRepo) MarkExpired(_ context.Context, id uuid.UUID) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Status != model.ProposalStatusSent {
		return repository.ErrStaleState
	}
	p.Status = model.ProposalStatusExpired
	p.UpdatedAt = s.now()
	s.proposals[id] = p
	return nil
}

func (r *proposalRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]*model.SlotProposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.SlotProposal
	for _, p := range r.s.proposals {
		if p.Status == model.ProposalStatusSent && p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
			p := copyProposal(p)
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyProposal(p model.SlotProposal) model.SlotProposal {
	if p.Slots != nil {
		slots := make(model.ProposedSlots, len(p.Slots))
		copy(slots, p.Slots)
		p.Slots = slots
	}
	return p
}

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Status = model.OutboxStatusPending
	e.CreatedAt = now
	e.UpdatedAt = now
	s.outbox = append(s.outbox, *e)
	return nil
}

// ProcessPending holds the store lock for the whole batch, which stands in
// for row locks.
func (r *outboxRepo) ProcessPending(ctx context.Context, limit int, fn repository.OutboxHandler) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	claimed := 0
	for i := range s.outbox {
		if limit > 0 && claimed >= limit {
			break
		}
		e := &s.outbox[i]
		if e.Status != model.OutboxStatusPending {
			continue
		}
		claimed++

		evt := *e
		now := s.now()
		if err := fn(ctx, &evt); err != nil {
			msg := err.Error()
			e.Status = model.OutboxStatusFailed
			e.ErrorMessage = &msg
			e.RetryCount++
		} else {
			e.Status = model.OutboxStatusProcessed
			e.ProcessedAt = &now
		}
		e.UpdatedAt = now
	}
	return claimed, nil
}

func (r *outboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.outbox[:0]
	var deleted int64
	for _, e := range s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.outbox = kept
	return deleted, nil
}

type accountRepo struct{ s *Store }

func (r *accountRepo) Get(_ context.Context, id uuid.UUID) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

type overlayRepo struct{ s *Store }

func (r *overlayRepo) ListForDay(_ context.Context, providerID uuid.UUID, day time.Time) ([]model.ExternalBusyInterval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	today := dateOnly(day)
	yesterday := today.AddDate(0, 0, -1)
	var out []model.ExternalBusyInterval
	for _, e := range r.s.overlay {
		if e.ProviderID != providerID {
			continue
		}
		d := dateOnly(e.StartsOn)
		if d.Equal(today) || d.Equal(yesterday) {
			out = append(out, e)
		}
	}
	return out, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type credentialRepo struct{ s *Store }

func credentialKey(accountID uuid.UUID, vendor string) string {
	return accountID.String() + "/" + vendor
}

func (r *credentialRepo) Get(_ context.Context, accountID uuid.UUID, vendor string) (*model.OrganizerCredential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.credentials[credentialKey(accountID, vendor)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *credentialRepo) Upsert(_ context.Context, c *model.OrganizerCredential) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.UpdatedAt = r.s.now()
	r.s.credentials[credentialKey(c.AccountID, c.Vendor)] = *c
	return nil
}
