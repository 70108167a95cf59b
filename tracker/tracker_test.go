package tracker_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cdr.dev/slog/v3/sloggers/slogtest"

	"exercisetracker/common"
	"exercisetracker/storage"
	"exercisetracker/tracker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	clock      *quartz.Mock
	registry   *tracker.Registry
	aggregator *tracker.Aggregator
}

func setup(t *testing.T) fixture {
	t.Helper()

	store, err := storage.Open(context.Background(), storage.DriverSQLite,
		filepath.Join(t.TempDir(), "tracker.db"), storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := quartz.NewMock(t)
	clock.Set(time.Date(2024, time.March, 15, 18, 30, 0, 0, time.UTC))
	opts := tracker.Options{
		Logger: slogtest.Make(t, nil),
		Clock:  clock,
	}
	registry := tracker.NewRegistry(store, opts)
	return fixture{
		clock:      clock,
		registry:   registry,
		aggregator: tracker.NewAggregator(registry, store, opts),
	}
}

func TestRegisterThenFind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t)

	for _, name := range []string{"alice", "bob", "", "Zoë"} {
		user, err := f.registry.Register(ctx, name)
		require.NoError(t, err)
		require.NotEmpty(t, user.ID)

		found, err := f.registry.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, name, found.Name)
	}
}

func TestRegisterSameNameTwice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t)

	first, err := f.registry.Register(ctx, "alice")
	require.NoError(t, err)
	second, err := f.registry.Register(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	users, err := f.registry.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.User{first, second}, users)
}

func TestFindUnknownUser(t *testing.T) {
	t.Parallel()

	f := setup(t)
	_, err := f.registry.FindByID(context.Background(), "nope")

	var nf *tracker.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "user", nf.Kind)
}

func TestRecordExerciseUnknownUser(t *testing.T) {
	t.Parallel()

	f := setup(t)
	_, err := f.aggregator.RecordExercise(context.Background(), "nope", tracker.ExerciseInput{
		Description: "run", DurationMinutes: 10,
	})

	var nf *tracker.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestRecordExercise(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t)
	alice, err := f.registry.Register(ctx, "alice")
	require.NoError(t, err)

	got, err := f.aggregator.RecordExercise(ctx, alice.ID, tracker.ExerciseInput{
		Description: "run", DurationMinutes: 30, Date: "2024-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, tracker.EnrichedExercise{
		UserID:          alice.ID,
		Name:            "alice",
		Description:     "run",
		DurationMinutes: 30,
		Date:            "Mon Jan 01 2024",
	}, got)

	t.Run("DefaultsToToday", func(t *testing.T) {
		got, err := f.aggregator.RecordExercise(ctx, alice.ID, tracker.ExerciseInput{
			Description: "stretch", DurationMinutes: 5,
		})
		require.NoError(t, err)
		assert.Equal(t, "Fri Mar 15 2024", got.Date)
	})

	t.Run("TodayIsUTC", func(t *testing.T) {
		// Already Saturday in Tokyo, still Friday in UTC.
		f := setup(t)
		f.clock.Set(time.Date(2024, time.March, 16, 8, 30, 0, 0, time.FixedZone("JST", 9*60*60)))
		bob, err := f.registry.Register(ctx, "bob")
		require.NoError(t, err)

		got, err := f.aggregator.RecordExercise(ctx, bob.ID, tracker.ExerciseInput{
			Description: "walk", DurationMinutes: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, "Fri Mar 15 2024", got.Date)
	})

	t.Run("RejectsBadDate", func(t *testing.T) {
		_, err := f.aggregator.RecordExercise(ctx, alice.ID, tracker.ExerciseInput{
			Description: "swim", DurationMinutes: 20, Date: "someday",
		})
		var ve *tracker.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "date", ve.Field)
	})
}

func TestQueryLogWithoutEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t)
	bob, err := f.registry.Register(ctx, "bob")
	require.NoError(t, err)

	_, err = f.aggregator.QueryLog(ctx, bob.ID, tracker.LogQuery{})
	var nf *tracker.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "log", nf.Kind)

	_, err = f.aggregator.QueryLog(ctx, "nope", tracker.LogQuery{})
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "user", nf.Kind)
}

func TestQueryLogKeepsSubmissionOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t)
	carol, err := f.registry.Register(ctx, "carol")
	require.NoError(t, err)

	dates := []string{"2024-02-10", "2024-01-03", "2024-02-01", "2024-01-20", "2024-01-03"}
	for i, d := range dates {
		_, err := f.aggregator.RecordExercise(ctx, carol.ID, tracker.ExerciseInput{
			Description: "set", DurationMinutes: i + 1, Date: d,
		})
		require.NoError(t, err)
	}

	view, err := f.aggregator.QueryLog(ctx, carol.ID, tracker.LogQuery{})
	require.NoError(t, err)
	assert.Equal(t, carol.ID, view.UserID)
	assert.Equal(t, "carol", view.Name)
	assert.Equal(t, len(dates), view.Count)
	require.Len(t, view.Log, len(dates))
	for i, ex := range view.Log {
		assert.Equal(t, i+1, ex.DurationMinutes)
	}
}

func TestQueryLogFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t)
	alice, err := f.registry.Register(ctx, "alice")
	require.NoError(t, err)

	record := func(desc string, minutes int, date string) {
		t.Helper()
		_, err := f.aggregator.RecordExercise(ctx, alice.ID, tracker.ExerciseInput{
			Description: desc, DurationMinutes: minutes, Date: date,
		})
		require.NoError(t, err)
	}
	record("run", 30, "2024-01-01")
	record("swim", 20, "2024-01-05")
	record("bike", 60, "2024-01-09")

	descriptions := func(view tracker.LogView) []string {
		out := make([]string, 0, len(view.Log))
		for _, ex := range view.Log {
			out = append(out, ex.Description)
		}
		return out
	}

	cases := []struct {
		name  string
		query tracker.LogQuery
		want  []string
	}{
		{"NoFilter", tracker.LogQuery{}, []string{"run", "swim", "bike"}},
		{"From", tracker.LogQuery{From: "2024-01-02"}, []string{"swim", "bike"}},
		{"FromInclusive", tracker.LogQuery{From: "2024-01-05"}, []string{"swim", "bike"}},
		{"To", tracker.LogQuery{To: "2024-01-05"}, []string{"run", "swim"}},
		{"Range", tracker.LogQuery{From: "2024-01-02", To: "2024-01-08"}, []string{"swim"}},
		{"EmptyRange", tracker.LogQuery{From: "2024-01-06", To: "2024-01-08"}, []string{}},
		{"Limit", tracker.LogQuery{Limit: 2}, []string{"run", "swim"}},
		{"LimitAfterFilter", tracker.LogQuery{From: "2024-01-02", Limit: 1}, []string{"swim"}},
		{"LimitLargerThanLog", tracker.LogQuery{Limit: 10}, []string{"run", "swim", "bike"}},
		{"NonPositiveLimit", tracker.LogQuery{Limit: -1}, []string{"run", "swim", "bike"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			view, err := f.aggregator.QueryLog(ctx, alice.ID, c.query)
			require.NoError(t, err)
			assert.Equal(t, c.want, descriptions(view))
			assert.Equal(t, len(c.want), view.Count)
		})
	}

	t.Run("BadBound", func(t *testing.T) {
		_, err := f.aggregator.QueryLog(ctx, alice.ID, tracker.LogQuery{To: "soon"})
		var ve *tracker.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "to", ve.Field)
	})
}

func TestLogsAreSharedByName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t)
	first, err := f.registry.Register(ctx, "sam")
	require.NoError(t, err)
	second, err := f.registry.Register(ctx, "sam")
	require.NoError(t, err)

	_, err = f.aggregator.RecordExercise(ctx, first.ID, tracker.ExerciseInput{Description: "row", DurationMinutes: 15, Date: "2024-04-01"})
	require.NoError(t, err)

	view, err := f.aggregator.QueryLog(ctx, second.ID, tracker.LogQuery{})
	require.NoError(t, err)
	assert.Equal(t, second.ID, view.UserID)
	assert.Equal(t, 1, view.Count)
}

func TestConcurrentRecordsLoseNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t)
	dave, err := f.registry.Register(ctx, "dave")
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.aggregator.RecordExercise(ctx, dave.ID, tracker.ExerciseInput{
				Description: "pushups", DurationMinutes: 1, Date: "2024-05-01",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := f.aggregator.QueryLog(ctx, dave.ID, tracker.LogQuery{})
	require.NoError(t, err)
	assert.Equal(t, n, view.Count)
	assert.Len(t, view.Log, n)
}
