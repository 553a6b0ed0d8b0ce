package health

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns a Fetcher that replays results in order, repeating the last.
func scripted(results ...func() (Report, error)) Fetcher {
	i := 0
	return FetcherFunc(func(_ context.Context, _ string) (Report, error) {
		r := results[i]
		if i < len(results)-1 {
			i++
		}
		return r()
	})
}

func ok(r Report) func() (Report, error) {
	return func() (Report, error) { return r, nil }
}

func fail(err error) func() (Report, error) {
	return func() (Report, error) { return Report{}, err }
}

func TestJob_Refresh_AppliesReport(t *testing.T) {
	j := NewJob("build", scripted(ok(Report{
		Builds:  Builds{LastCompleted: 101, LastFailed: 101, LastSuccessful: 100},
		Claimed: true,
	})), true)

	require.NoError(t, j.Refresh(context.Background()))

	assert.Equal(t, "build", j.Name())
	assert.False(t, j.OK(0))
	assert.True(t, j.OK(1))
	assert.True(t, j.Claimed())
	assert.False(t, j.LastBuildOK())
	assert.False(t, j.RefreshedAt().IsZero())
}

func TestJob_Refresh_IncompleteResetsToSafeDefault(t *testing.T) {
	j := NewJob("build", scripted(
		ok(Report{Builds: Builds{LastCompleted: 5, LastFailed: 5, LastSuccessful: 2}, Claimed: true}),
		fail(fmt.Errorf("no lastCompletedBuild: %w", ErrIncomplete)),
	), true)

	require.NoError(t, j.Refresh(context.Background()))
	require.False(t, j.OK(0))

	err := j.Refresh(context.Background())
	require.NoError(t, err, "incomplete data must not surface as an error")
	assert.True(t, j.OK(0))
	assert.False(t, j.Claimed())
	assert.ErrorIs(t, j.LastError(), ErrIncomplete)
}

func TestJob_Refresh_FetchErrorResetsAndReturns(t *testing.T) {
	boom := errors.New("connection refused")
	j := NewJob("deploy", scripted(
		ok(Report{Builds: Builds{LastCompleted: 9, LastFailed: 9, LastSuccessful: 1}, Claimed: true}),
		fail(boom),
	), true)

	require.NoError(t, j.Refresh(context.Background()))

	err := j.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, j.OK(0))
	assert.False(t, j.Claimed())
}

func TestJob_Refresh_ClaimDoesNotLeakIntoNextFailure(t *testing.T) {
	j := NewJob("build", scripted(
		ok(Report{Builds: Builds{LastCompleted: 11, LastFailed: 11, LastSuccessful: 10}, Claimed: true}),
		ok(Report{Builds: Builds{LastCompleted: 12, LastFailed: 11, LastSuccessful: 12}}),
		ok(Report{Builds: Builds{LastCompleted: 13, LastFailed: 13, LastSuccessful: 12}}),
	), true)
	ctx := context.Background()

	require.NoError(t, j.Refresh(ctx))
	assert.True(t, j.Claimed())

	require.NoError(t, j.Refresh(ctx))
	assert.True(t, j.OK(0))

	require.NoError(t, j.Refresh(ctx))
	assert.False(t, j.OK(0))
	assert.False(t, j.Claimed(), "new failure episode must start unclaimed")
}
