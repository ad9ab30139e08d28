package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/middleware"
	"github.com/jwalitptl/scheduling-api/internal/model"
	apperrors "github.com/jwalitptl/scheduling-api/pkg/errors"
	pkgvalidator "github.com/jwalitptl/scheduling-api/pkg/validator"
)

// Binder decodes and validates request bodies for every handler package.
type Binder struct {
	validate *validator.Validate
}

func NewBinder() *Binder {
	return &Binder{validate: pkgvalidator.New()}
}

// BindJSON decodes the body into dst and runs its validate tags. A failed
// clock rule is reported as INVALID_TIME_FORMAT.
func (b *Binder) BindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperrors.Validation("malformed request body", err)
	}
	return b.Struct(dst)
}

func (b *Binder) Struct(dst interface{}) error {
	if err := b.validate.Struct(dst); err != nil {
		if pkgvalidator.IsClockError(err) {
			return apperrors.InvalidTimeFormat(pkgvalidator.Describe(err), err)
		}
		return apperrors.Validation(pkgvalidator.Describe(err), err)
	}
	return nil
}

// Caller returns the authenticated principal.
func Caller(c *gin.Context) (model.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return model.Principal{}, apperrors.Unauthenticated(errors.New("no principal on request"))
	}
	return p, nil
}

// IDParam parses a uuid path parameter.
func IDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.Validation(fmt.Sprintf("invalid %s", name), err)
	}
	return id, nil
}

// ParseDate reads YYYY-MM-DD as local midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(pkgvalidator.DateLayout, value, loc)
	if err != nil {
		return time.Time{}, apperrors.InvalidTimeFormat(value, err)
	}
	return d, nil
}

// At combines a local date with a "3:04 PM" wall clock in loc.
func At(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	t, err := pkgvalidator.ParseClock(clock)
	if err != nil {
		return time.Time{}, apperrors.InvalidTimeFormat(clock, err)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc), nil
}
