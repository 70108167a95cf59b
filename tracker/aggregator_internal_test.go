package tracker

import (
	"context"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3/sloggers/slogtest"

	"exercisetracker/common"
	"exercisetracker/storage"
	"exercisetracker/storage/storagemock"
)

func newMocked(t *testing.T) (*storagemock.MockStore, *storagemock.MockTx, *Aggregator) {
	t.Helper()

	ctrl := gomock.NewController(t)
	store := storagemock.NewMockStore(ctrl)
	tx := storagemock.NewMockTx(ctrl)
	store.EXPECT().InTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, fn func(storage.Tx) error) error {
			return fn(tx)
		}).AnyTimes()

	opts := Options{
		Logger:  slogtest.Make(t, &slogtest.Options{IgnoreErrors: true}),
		BackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}
	return store, tx, NewAggregator(NewRegistry(store, opts), store, opts)
}

var alice = common.User{ID: "a-1", Name: "alice"}

func TestRegisterStoreFailure(t *testing.T) {
	t.Parallel()

	store, _, agg := newMocked(t)
	store.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(xerrors.New("disk full"))

	_, err := agg.registry.Register(context.Background(), "alice")
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorContains(t, err, "disk full")
}

func TestListAllStoreFailure(t *testing.T) {
	t.Parallel()

	store, _, agg := newMocked(t)
	store.EXPECT().ListUsers(gomock.Any()).Return(nil, xerrors.New("timeout"))

	_, err := agg.registry.ListAll(context.Background())
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
}

func TestFindByIDStoreFailureIsNotNotFound(t *testing.T) {
	t.Parallel()

	store, _, agg := newMocked(t)
	store.EXPECT().UserByID(gomock.Any(), "a-1").Return(common.User{}, xerrors.New("broken pipe"))

	_, err := agg.registry.FindByID(context.Background(), "a-1")
	var nf *NotFoundError
	assert.False(t, xerrors.As(err, &nf))
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
}

func TestRecordCreatesLogOnFirstEntry(t *testing.T) {
	t.Parallel()

	store, tx, agg := newMocked(t)
	store.EXPECT().UserByID(gomock.Any(), alice.ID).Return(alice, nil)
	tx.EXPECT().LockLog(gomock.Any(), "alice").Return(common.ExerciseLog{}, storage.ErrNotFound)
	tx.EXPECT().InsertLog(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, log common.ExerciseLog) error {
			assert.Equal(t, "alice", log.Username)
			assert.Equal(t, 1, log.Count)
			require.Len(t, log.Entries, 1)
			assert.Equal(t, "run", log.Entries[0].Description)
			return nil
		})

	_, err := agg.RecordExercise(context.Background(), alice.ID, ExerciseInput{
		Description: "run", DurationMinutes: 30, Date: "2024-01-01",
	})
	require.NoError(t, err)
}

func TestRecordIncrementsEntryCount(t *testing.T) {
	t.Parallel()

	existing := common.NewExerciseLog("alice", common.Exercise{Description: "run"})
	existing.Append(common.Exercise{Description: "swim"})

	store, tx, agg := newMocked(t)
	store.EXPECT().UserByID(gomock.Any(), alice.ID).Return(alice, nil)
	tx.EXPECT().LockLog(gomock.Any(), "alice").Return(existing, nil)
	tx.EXPECT().AppendEntry(gomock.Any(), "alice", 3, gomock.Any()).Return(nil)

	_, err := agg.RecordExercise(context.Background(), alice.ID, ExerciseInput{
		Description: "bike", DurationMinutes: 45, Date: "2024-01-02",
	})
	require.NoError(t, err)
}

func TestRecordRetriesConflicts(t *testing.T) {
	t.Parallel()

	store, tx, agg := newMocked(t)
	store.EXPECT().UserByID(gomock.Any(), alice.ID).Return(alice, nil)
	gomock.InOrder(
		tx.EXPECT().LockLog(gomock.Any(), "alice").Return(common.ExerciseLog{}, storage.ErrNotFound),
		tx.EXPECT().InsertLog(gomock.Any(), gomock.Any()).Return(xerrors.Errorf("insert log: %w", storage.ErrConflict)),
		tx.EXPECT().LockLog(gomock.Any(), "alice").Return(common.NewExerciseLog("alice", common.Exercise{}), nil),
		tx.EXPECT().AppendEntry(gomock.Any(), "alice", 2, gomock.Any()).Return(nil),
	)

	_, err := agg.RecordExercise(context.Background(), alice.ID, ExerciseInput{
		Description: "run", DurationMinutes: 30, Date: "2024-01-01",
	})
	require.NoError(t, err)
}

func TestRecordGivesUpAfterRepeatedConflicts(t *testing.T) {
	t.Parallel()

	store, tx, agg := newMocked(t)
	store.EXPECT().UserByID(gomock.Any(), alice.ID).Return(alice, nil)
	tx.EXPECT().LockLog(gomock.Any(), "alice").Return(common.ExerciseLog{}, storage.ErrConflict).Times(maxAppendRetries + 1)

	_, err := agg.RecordExercise(context.Background(), alice.ID, ExerciseInput{Description: "run"})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestRecordDoesNotRetryOtherFailures(t *testing.T) {
	t.Parallel()

	store, tx, agg := newMocked(t)
	store.EXPECT().UserByID(gomock.Any(), alice.ID).Return(alice, nil)
	tx.EXPECT().LockLog(gomock.Any(), "alice").Return(common.ExerciseLog{}, xerrors.New("read only")).Times(1)

	_, err := agg.RecordExercise(context.Background(), alice.ID, ExerciseInput{Description: "run"})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorContains(t, err, "read only")
}

func TestQueryLogStoreFailure(t *testing.T) {
	t.Parallel()

	store, _, agg := newMocked(t)
	store.EXPECT().UserByID(gomock.Any(), alice.ID).Return(alice, nil)
	store.EXPECT().LogByUsername(gomock.Any(), "alice").Return(common.ExerciseLog{}, xerrors.New("gone"))

	_, err := agg.QueryLog(context.Background(), alice.ID, LogQuery{})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
}
