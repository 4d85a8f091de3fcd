package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/amirasaad/splitsync/pkg/app"
	"github.com/amirasaad/splitsync/pkg/orchestrator"
	"github.com/amirasaad/splitsync/webapi/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, env *testutils.Env, args ...string) (string, error) {
	t.Helper()
	plain = true
	var out bytes.Buffer
	root := newRootCmd(&out, func(string) (*app.App, error) { return env.App, nil })
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSyncCommand(t *testing.T) {
	env := testutils.NewEnv(t)

	out, err := execute(t, env, "sync", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "completed at")
}

func TestSyncCommandOffline(t *testing.T) {
	env := testutils.NewEnv(t)
	env.Server.SetOffline(true)

	out, err := execute(t, env, "sync")
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrOffline)
	assert.Contains(t, out, "failed")
}

func TestStatusCommand(t *testing.T) {
	env := testutils.NewEnv(t)

	out, err := execute(t, env, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "ENTITY")
}

func TestFailedCommandEmpty(t *testing.T) {
	env := testutils.NewEnv(t)

	out, err := execute(t, env, "failed")
	require.NoError(t, err)
	assert.Contains(t, out, "no failed entity types")
}

func TestFeedCommand(t *testing.T) {
	env := testutils.NewEnv(t)

	out, err := execute(t, env, "feed", "alice", "--mode", "manual")
	require.NoError(t, err)
	assert.Contains(t, out, "refreshed")
	assert.Equal(t, 1, env.Server.FeedCalls())

	_, err = execute(t, env, "feed", "alice", "--mode", "sideways")
	require.Error(t, err)
}

func TestBuildFailureStopsCommand(t *testing.T) {
	var out bytes.Buffer
	boom := errors.New("no config")
	root := newRootCmd(&out, func(string) (*app.App, error) { return nil, boom })
	root.SetArgs([]string{"status"})

	err := root.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, boom)
}
