package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"coffee-fleet-backend/internal/metrics"
	"coffee-fleet-backend/internal/model"
	"coffee-fleet-backend/internal/store"
)

// Recorder stamps maintenance events on the current calendar day.
type Recorder struct {
	store   store.Store
	loc     *time.Location
	now     func() time.Time
	metrics *metrics.Metrics
}

// NewRecorder creates a recorder whose "today" follows the given IANA timezone.
func NewRecorder(s store.Store, timezone string, m *metrics.Metrics) (*Recorder, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	return &Recorder{store: s, loc: loc, now: time.Now, metrics: m}, nil
}

// Today returns the current calendar date in the recorder's timezone, as a
// midnight UTC value suitable for a date column.
func (r *Recorder) Today() time.Time {
	y, m, d := r.now().In(r.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MarkToday records that field was done today on the machine. Repeated calls
// on the same day rewrite the same date and add one more log row each.
func (r *Recorder) MarkToday(ctx context.Context, machineID, actorID int64, field model.StatusField) error {
	if _, ok := field.Column(); !ok {
		return fmt.Errorf("%w: unknown status field %q", ErrInvalidInput, field)
	}

	day := r.Today()
	if err := r.store.SetStatusDate(ctx, machineID, actorID, field, day); err != nil {
		r.metrics.ObserveMaintenance(string(field), "error")
		if errors.Is(err, store.ErrMachineNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	log.Printf("Marked %s on machine %d for %s by %d", field, machineID, day.Format("2006-01-02"), actorID)
	r.metrics.ObserveMaintenance(string(field), "committed")
	return nil
}
