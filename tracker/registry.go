// Package tracker keeps the registry of users and their exercise logs.
package tracker

import (
	"context"
	"errors"
	"time"

	"cdr.dev/slog/v3"
	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"exercisetracker/common"
	"exercisetracker/storage"
)

// Options configures a Registry and an Aggregator. Zero values get defaults.
type Options struct {
	Logger  slog.Logger
	Metrics *Metrics
	// Clock decides what "today" is for exercises submitted without a date.
	Clock quartz.Clock
	// BackOff paces retries of a log append that lost a write race.
	BackOff func() backoff.BackOff
}

func (o Options) withDefaults() Options {
	if o.Metrics == nil {
		o.Metrics = NewMetrics(nil)
	}
	if o.Clock == nil {
		o.Clock = quartz.NewReal()
	}
	if o.BackOff == nil {
		o.BackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 10 * time.Millisecond
			b.MaxInterval = 250 * time.Millisecond
			return b
		}
	}
	return o
}

// Registry creates and resolves user identities.
type Registry struct {
	store   storage.Store
	logger  slog.Logger
	metrics *Metrics
}

// NewRegistry returns a Registry backed by store.
func NewRegistry(store storage.Store, opts Options) *Registry {
	opts = opts.withDefaults()
	return &Registry{
		store:   store,
		logger:  opts.Logger.Named("registry"),
		metrics: opts.Metrics,
	}
}

// Register always creates a new user, even when the name is already taken.
func (r *Registry) Register(ctx context.Context, name string) (common.User, error) {
	user := common.User{ID: uuid.NewString(), Name: name}
	if err := r.store.CreateUser(ctx, user); err != nil {
		return common.User{}, &PersistenceError{Op: "register user", Err: err}
	}
	r.metrics.UsersRegistered.Inc()
	r.logger.Debug(ctx, "registered user", slog.F("user_id", user.ID), slog.F("username", name))
	return user, nil
}

// ListAll returns every user in registration order.
func (r *Registry) ListAll(ctx context.Context) ([]common.User, error) {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list users", Err: err}
	}
	return users, nil
}

// FindByID resolves a user id. Unknown ids yield a NotFoundError.
func (r *Registry) FindByID(ctx context.Context, id string) (common.User, error) {
	user, err := r.store.UserByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return common.User{}, &NotFoundError{Kind: "user", Key: id}
	}
	if err != nil {
		return common.User{}, &PersistenceError{Op: "find user", Err: err}
	}
	return user, nil
}
