package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/vishaldhankecha/prodigy-api/internal/config"
	"github.com/vishaldhankecha/prodigy-api/internal/domain"
)

type fakeRegenerator struct {
	single []int64
	all    int
	err    error
}

func (f *fakeRegenerator) Regenerate(_ context.Context, programID int64) (domain.ScheduleDiff, error) {
	f.single = append(f.single, programID)
	return domain.ScheduleDiff{}, f.err
}

func (f *fakeRegenerator) RegenerateAll(context.Context) error {
	f.all++
	return f.err
}

func testApp(fake *fakeRegenerator) *app {
	a := newApp(config.Config{PostgresURL: "postgres://unused"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.connect = func(context.Context, string) (*pgxpool.Pool, error) { return nil, nil }
	a.newRegenerator = func(*pgxpool.Pool) regenerator { return fake }
	return a
}

func execute(a *app, args ...string) error {
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}

func TestRegenerateSingleProgram(t *testing.T) {
	fake := &fakeRegenerator{}
	require.NoError(t, execute(testApp(fake), "regenerate", "--program-id", "7"))
	require.Equal(t, []int64{7}, fake.single)
	require.Zero(t, fake.all)
}

func TestRegenerateAllPrograms(t *testing.T) {
	fake := &fakeRegenerator{}
	require.NoError(t, execute(testApp(fake), "regenerate"))
	require.Empty(t, fake.single)
	require.Equal(t, 1, fake.all)
}

func TestRegenerateSurfacesFailure(t *testing.T) {
	fake := &fakeRegenerator{err: domain.ErrNoDayPlans}
	err := execute(testApp(fake), "regenerate")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegenerateRejectsInvalidProgramID(t *testing.T) {
	fake := &fakeRegenerator{}
	require.Error(t, execute(testApp(fake), "regenerate", "--program-id", "0"))
	require.Error(t, execute(testApp(fake), "regenerate", "--program-id", "abc"))
	require.Empty(t, fake.single)
	require.Zero(t, fake.all)
}

func TestConnectFailureIsReported(t *testing.T) {
	a := testApp(&fakeRegenerator{})
	a.connect = func(context.Context, string) (*pgxpool.Pool, error) { return nil, errors.New("dial tcp: refused") }
	require.ErrorContains(t, execute(a, "regenerate"), "connect to postgres")
}

func TestDLQReplayRejectsInvalidBatchSize(t *testing.T) {
	a := testApp(&fakeRegenerator{})
	connected := false
	a.connect = func(context.Context, string) (*pgxpool.Pool, error) {
		connected = true
		return nil, nil
	}
	require.ErrorContains(t, execute(a, "dlq-replay", "--batch-size", "0"), "--batch-size")
	require.False(t, connected)
}
