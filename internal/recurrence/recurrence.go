// Package recurrence derives the next instance of a recurring request.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/favor-exchange-api/internal/models"
	"gorm.io/datatypes"
)

var (
	ErrNotRecurring          = errors.New("request is not recurring")
	ErrInvalidRecurrenceType = errors.New("invalid recurrence type")
	ErrInvalidInterval       = errors.New("custom recurrence interval must be at least 1 day")
)

// Fixed intervals in days. MONTHLY is a flat 30 days, not a calendar month.
const (
	WeeklyDays   = 7
	BiweeklyDays = 14
	MonthlyDays  = 30
)

// IntervalDays resolves the number of days between two instances.
func IntervalDays(recurrenceType models.RecurrenceType, customInterval *int) (int, error) {
	switch recurrenceType {
	case models.RecurrenceWeekly:
		return WeeklyDays, nil
	case models.RecurrenceBiweekly:
		return BiweeklyDays, nil
	case models.RecurrenceMonthly:
		return MonthlyDays, nil
	case models.RecurrenceCustom:
		if customInterval == nil || *customInterval < 1 {
			return 0, ErrInvalidInterval
		}
		return *customInterval, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRecurrenceType, recurrenceType)
	}
}

// Validate checks the recurrence descriptor of a request before it is stored.
func Validate(r *models.Request) error {
	if !r.IsRecurring {
		return nil
	}
	if r.RecurrenceType == nil {
		return fmt.Errorf("%w: missing", ErrInvalidRecurrenceType)
	}
	_, err := IntervalDays(*r.RecurrenceType, r.RecurrenceInterval)
	return err
}

// GenerateNext builds the successor of a recurring request. It returns nil
// without error when the series has ended at now. The draft is not persisted.
func GenerateNext(original *models.Request, now time.Time) (*models.Request, error) {
	if original == nil || !original.IsRecurring {
		return nil, ErrNotRecurring
	}
	if original.RecurrenceEndDate != nil && original.RecurrenceEndDate.Before(now) {
		return nil, nil
	}
	if original.RecurrenceType == nil {
		return nil, fmt.Errorf("%w: missing", ErrInvalidRecurrenceType)
	}

	days, err := IntervalDays(*original.RecurrenceType, original.RecurrenceInterval)
	if err != nil {
		return nil, err
	}

	rootID := original.ID
	if original.ParentRequestID != nil {
		rootID = *original.ParentRequestID
	}

	next := &models.Request{
		OwnerID:            original.OwnerID,
		Title:              original.Title,
		Description:        original.Description,
		Category:           original.Category,
		Urgency:            original.Urgency,
		Status:             models.RequestStatusOpen,
		LocationDisplay:    original.LocationDisplay,
		Requirements:       copyStrings(original.Requirements),
		Attachments:        copyStrings(original.Attachments),
		EstimatedDuration:  original.EstimatedDuration,
		MaxPerformers:      original.MaxPerformers,
		PointValue:         original.PointValue,
		IsRecurring:        true,
		RecurrenceType:     copyPtr(original.RecurrenceType),
		RecurrenceInterval: copyPtr(original.RecurrenceInterval),
		RecurrenceEndDate:  copyPtr(original.RecurrenceEndDate),
		ParentRequestID:    &rootID,
	}

	if original.TimeWindowStart != nil {
		start := original.TimeWindowStart.AddDate(0, 0, days)
		next.TimeWindowStart = &start
	}
	if original.TimeWindowEnd != nil {
		end := original.TimeWindowEnd.AddDate(0, 0, days)
		next.TimeWindowEnd = &end
	}

	return next, nil
}

func copyStrings(src datatypes.JSONSlice[string]) datatypes.JSONSlice[string] {
	dst := make([]string, len(src))
	copy(dst, src)
	return datatypes.NewJSONSlice(dst)
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
