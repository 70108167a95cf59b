// Package storage persists users and exercise logs in a SQL database.
package storage

import (
	"context"

	"golang.org/x/xerrors"

	"exercisetracker/common"
)

//go:generate mockgen -destination ./storagemock/storagemock.go -package storagemock exercisetracker/storage Store,Tx

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = xerrors.New("not found")
	// ErrConflict is returned when a write lost a race with a concurrent
	// writer. The whole transaction can be retried.
	ErrConflict = xerrors.New("conflicting write")
)

// Store is the durable home of users and exercise logs.
type Store interface {
	CreateUser(ctx context.Context, user common.User) error
	// ListUsers returns every user in registration order.
	ListUsers(ctx context.Context) ([]common.User, error)
	UserByID(ctx context.Context, id string) (common.User, error)
	LogByUsername(ctx context.Context, username string) (common.ExerciseLog, error)
	// InTx runs fn in a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
}

// Tx is the write side of an exercise log, scoped to one transaction.
type Tx interface {
	// LockLog loads the log for username and holds it against concurrent
	// appends until the transaction ends.
	LockLog(ctx context.Context, username string) (common.ExerciseLog, error)
	InsertLog(ctx context.Context, log common.ExerciseLog) error
	// AppendEntry stores ex as the last entry of the log and sets the entry
	// counter to count.
	AppendEntry(ctx context.Context, username string, count int, ex common.Exercise) error
}
