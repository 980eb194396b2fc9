package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStatus struct {
	texts []string
	err   error
}

func (r *recordingStatus) UpdateWatchingStatus(text string) error {
	r.texts = append(r.texts, text)
	return r.err
}

type recordingSyncer struct {
	calls int
	ctx   context.Context
}

func (r *recordingSyncer) FullSync(ctx context.Context) error {
	r.calls++
	r.ctx = ctx
	return nil
}

func TestPresenceText(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	got := PresenceText(time.Date(2026, 3, 1, 3, 4, 5, 0, time.UTC).In(jst))
	assert.Equal(t, "コムザール行政システム(CAS) 稼働中 | 診断:2026/03/01 12:04:05", got)
}

func TestNew_RejectsInvalidSpec(t *testing.T) {
	_, err := New(Options{PresenceSpec: "not a spec", MemberSyncSpec: "@every 3h"}, &recordingStatus{}, &recordingSyncer{})
	require.Error(t, err)

	_, err = New(Options{PresenceSpec: "@every 30m", MemberSyncSpec: "bogus"}, &recordingStatus{}, &recordingSyncer{})
	require.Error(t, err)
}

func TestRefreshPresence_UsesLocation(t *testing.T) {
	status := &recordingStatus{}
	s, err := New(Options{PresenceSpec: "@every 30m", MemberSyncSpec: "@every 3h", Location: time.FixedZone("JST", 9*60*60)}, status, &recordingSyncer{})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC) }

	s.RefreshPresence()
	status.err = errors.New("gateway closed")
	s.RefreshPresence()

	require.Len(t, status.texts, 2)
	assert.Contains(t, status.texts[0], "診断:2026/03/02 00:00:00")
}

func TestSyncMembers_UsesCancellableContext(t *testing.T) {
	syncer := &recordingSyncer{}
	s, err := New(Options{PresenceSpec: "@every 30m", MemberSyncSpec: "@every 3h"}, &recordingStatus{}, syncer)
	require.NoError(t, err)

	s.syncMembers()
	require.Equal(t, 1, syncer.calls)
	_, hasDeadline := syncer.ctx.Deadline()
	assert.True(t, hasDeadline)

	s.Start()
	s.Stop()
	assert.ErrorIs(t, s.baseCtx.Err(), context.Canceled)
}
