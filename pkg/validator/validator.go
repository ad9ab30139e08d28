package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "3:04 PM"
)

// Register installs the json tag name function and the custom tags used by
// request DTOs on v. It is safe to call more than once.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(DateLayout, fl.Field().String())
		return err == nil
	}); err != nil {
		return fmt.Errorf("failed to register ymd: %w", err)
	}

	if err := v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := ParseClock(fl.Field().String())
		return err == nil
	}); err != nil {
		return fmt.Errorf("failed to register clock: %w", err)
	}
	return nil
}

// New returns a validator with Register already applied.
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// ParseClock accepts "h:mm AM" and "hh:mm AM" in either letter case.
func ParseClock(s string) (time.Time, error) {
	return time.Parse(ClockLayout, strings.ToUpper(strings.TrimSpace(s)))
}

// Describe renders validation errors as "field: rule" pairs.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", e.Field()))
		case "ymd":
			parts = append(parts, fmt.Sprintf("%s must be YYYY-MM-DD", e.Field()))
		case "clock":
			parts = append(parts, fmt.Sprintf("%s must look like 9:00 AM", e.Field()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", e.Field(), e.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", e.Field(), e.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// IsClockError reports whether err contains a failed clock constraint.
func IsClockError(err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, e := range verrs {
		if e.Tag() == "clock" {
			return true
		}
	}
	return false
}
