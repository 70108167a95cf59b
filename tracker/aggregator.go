package tracker

import (
	"context"
	"errors"
	"time"

	"cdr.dev/slog/v3"
	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"

	"exercisetracker/common"
	"exercisetracker/storage"
)

// maxAppendRetries bounds how often a conflicting append is retried.
const maxAppendRetries = 5

// ExerciseInput is an exercise as submitted, before its date is resolved.
type ExerciseInput struct {
	Description     string
	DurationMinutes int
	// Date is optional. Empty means the current day.
	Date string
}

// EnrichedExercise is a freshly recorded entry together with its owner.
type EnrichedExercise struct {
	UserID          string
	Name            string
	Description     string
	DurationMinutes int
	Date            string
}

// LogQuery narrows a log read. From and To are inclusive and optional; a
// Limit of zero or less returns every matching entry.
type LogQuery struct {
	From  string
	To    string
	Limit int
}

// LogView is the filtered log of one user, ready for output.
type LogView struct {
	UserID string
	Name   string
	// Count is the number of entries in Log, after filtering.
	Count int
	Log   []common.Exercise
}

// Aggregator appends exercises to per-user logs and answers log queries.
//
// Logs are keyed by the owner's name rather than the user id, so users that
// share a name share a log.
type Aggregator struct {
	registry *Registry
	store    storage.Store
	logger   slog.Logger
	metrics  *Metrics
	clock    quartz.Clock
	backOff  func() backoff.BackOff
}

// NewAggregator returns an Aggregator that resolves users through registry.
func NewAggregator(registry *Registry, store storage.Store, opts Options) *Aggregator {
	opts = opts.withDefaults()
	return &Aggregator{
		registry: registry,
		store:    store,
		logger:   opts.Logger.Named("aggregator"),
		metrics:  opts.Metrics,
		clock:    opts.Clock,
		backOff:  opts.BackOff,
	}
}

// RecordExercise appends an entry to the log of the user's name, creating the
// log on first use. The read and write of the log happen in one transaction,
// and appends that lose a race to a concurrent first write are retried.
func (a *Aggregator) RecordExercise(ctx context.Context, userID string, in ExerciseInput) (EnrichedExercise, error) {
	user, err := a.registry.FindByID(ctx, userID)
	if err != nil {
		return EnrichedExercise{}, err
	}

	date, err := a.entryDate(in.Date)
	if err != nil {
		return EnrichedExercise{}, err
	}
	entry := common.Exercise{
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		Date:            date,
	}

	op := func() error {
		err := a.store.InTx(ctx, func(tx storage.Tx) error {
			return appendEntry(ctx, tx, user.Name, entry)
		})
		if errors.Is(err, storage.ErrConflict) {
			a.metrics.WriteConflicts.Inc()
			a.logger.Debug(ctx, "retrying log append", slog.F("username", user.Name), slog.Error(err))
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(a.backOff(), maxAppendRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return EnrichedExercise{}, &PersistenceError{Op: "record exercise", Err: err}
	}
	a.metrics.ExercisesRecorded.Inc()

	return EnrichedExercise{
		UserID:          user.ID,
		Name:            user.Name,
		Description:     entry.Description,
		DurationMinutes: entry.DurationMinutes,
		Date:            common.FormatDate(entry.Date),
	}, nil
}

func appendEntry(ctx context.Context, tx storage.Tx, username string, entry common.Exercise) error {
	log, err := tx.LockLog(ctx, username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return tx.InsertLog(ctx, common.NewExerciseLog(username, entry))
	case err != nil:
		return err
	}
	log.Append(entry)
	return tx.AppendEntry(ctx, username, log.Count, entry)
}

func (a *Aggregator) entryDate(raw string) (time.Time, error) {
	if raw == "" {
		// UTC, like millisecond timestamps and every stored date.
		return common.Day(a.clock.Now().UTC()), nil
	}
	date, err := common.ParseDate(raw)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Value: raw, Reason: err.Error()}
	}
	return date, nil
}

// QueryLog returns the user's log filtered to [From, To] and cut to Limit.
func (a *Aggregator) QueryLog(ctx context.Context, userID string, q LogQuery) (LogView, error) {
	user, err := a.registry.FindByID(ctx, userID)
	if err != nil {
		return LogView{}, err
	}

	log, err := a.store.LogByUsername(ctx, user.Name)
	if errors.Is(err, storage.ErrNotFound) {
		return LogView{}, &NotFoundError{Kind: "log", Key: user.Name}
	}
	if err != nil {
		return LogView{}, &PersistenceError{Op: "load log", Err: err}
	}

	from, err := bound("from", q.From)
	if err != nil {
		return LogView{}, err
	}
	to, err := bound("to", q.To)
	if err != nil {
		return LogView{}, err
	}

	entries := log.Between(from, to)
	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}
	return LogView{
		UserID: user.ID,
		Name:   user.Name,
		Count:  len(entries),
		Log:    entries,
	}, nil
}

// bound parses an optional date filter. Empty yields the zero time.
func bound(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	date, err := common.ParseDate(raw)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Value: raw, Reason: err.Error()}
	}
	return date, nil
}
