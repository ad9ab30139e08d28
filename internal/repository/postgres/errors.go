package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/jwalitptl/scheduling-api/internal/repository"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeExclusionViolation  = "23P01"

	constraintIdempotencyKey = "appointments_client_idempotency_key"
	constraintRoomPerAppt    = "meeting_rooms_appointment_id_key"
)

// translate maps driver errors onto repository sentinels. Anything it does
// not recognise is returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case codeExclusionViolation:
		return repository.ErrIntervalTaken
	case codeUniqueViolation:
		switch pqErr.Constraint {
		case constraintIdempotencyKey:
			return repository.ErrDuplicateIdempotencyKey
		case constraintRoomPerAppt:
			return repository.ErrRoomExists
		}
	case codeForeignKeyViolation:
		return repository.ErrNotFound
	}
	return err
}
