package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalmind/support-platform/internal/compliance"
	"github.com/globalmind/support-platform/internal/privacy"
	"github.com/globalmind/support-platform/internal/store"
)

type fakeMaintStore struct {
	healthErr error
	purgeErr  error
	purgeRes  *store.PurgeResult
	purges    int
	recs      []store.ConversationRecord
}

func (f *fakeMaintStore) Health(ctx context.Context) error { return f.healthErr }

func (f *fakeMaintStore) PurgeExpired(ctx context.Context, cutoff time.Time) (*store.PurgeResult, error) {
	f.purges++
	if f.purgeErr != nil {
		return nil, f.purgeErr
	}
	if f.purgeRes != nil {
		return f.purgeRes, nil
	}
	return &store.PurgeResult{}, nil
}

func (f *fakeMaintStore) ConversationsSince(ctx context.Context, since time.Time, limit int) ([]store.ConversationRecord, error) {
	return f.recs, nil
}

type fakeAudit struct {
	rotations []string
	purges    int
	events    []compliance.AuditEventType
}

func (f *fakeAudit) LogKeyRotated(ctx context.Context, keyID string) error {
	f.rotations = append(f.rotations, keyID)
	return nil
}

func (f *fakeAudit) LogRetentionPurge(ctx context.Context, counts any) error {
	f.purges++
	return nil
}

func (f *fakeAudit) LogEvent(ctx context.Context, eventType compliance.AuditEventType, anonID string, detail any) error {
	f.events = append(f.events, eventType)
	return nil
}

func newTestKeyring(t *testing.T) *privacy.Keyring {
	t.Helper()
	kr, err := privacy.LoadKeyring(filepath.Join(t.TempDir(), "maint.keyring"))
	require.NoError(t, err)
	t.Cleanup(kr.Close)
	return kr
}

func TestSweepRotatesDueKey(t *testing.T) {
	st := &fakeMaintStore{}
	audit := &fakeAudit{}
	kr := newTestKeyring(t)

	m := NewMaintenance(st, kr, audit, nil).WithKeyMaxAge(time.Nanosecond)
	time.Sleep(2 * time.Nanosecond)
	m.Sweep(context.Background())

	require.Len(t, audit.rotations, 1)
	assert.Equal(t, 1, kr.RetiredCount())
}

func TestSweepSkipsFreshKey(t *testing.T) {
	st := &fakeMaintStore{}
	audit := &fakeAudit{}
	kr := newTestKeyring(t)

	m := NewMaintenance(st, kr, audit, nil) // default 30d max age
	m.Sweep(context.Background())

	assert.Empty(t, audit.rotations)
	assert.Equal(t, 0, kr.RetiredCount())
}

func TestSweepPurgesAndAudits(t *testing.T) {
	st := &fakeMaintStore{purgeRes: &store.PurgeResult{Conversations: 12, Sessions: 3}}
	audit := &fakeAudit{}

	m := NewMaintenance(st, newTestKeyring(t), audit, nil).WithRetentionDays(30)
	m.Sweep(context.Background())

	assert.Equal(t, 1, st.purges)
	assert.Equal(t, 1, audit.purges)
}

func TestSweepSkipsPurgeAuditWhenNothingRemoved(t *testing.T) {
	st := &fakeMaintStore{}
	audit := &fakeAudit{}

	m := NewMaintenance(st, newTestKeyring(t), audit, nil)
	m.Sweep(context.Background())

	assert.Equal(t, 0, audit.purges)
}

func TestSweepRetriesPurge(t *testing.T) {
	st := &fakeMaintStore{purgeErr: errors.New("deadlock")}

	m := NewMaintenance(st, newTestKeyring(t), &fakeAudit{}, nil)
	m.Sweep(context.Background())

	assert.Equal(t, 3, st.purges)
}

func TestSweepSkipsWhenUnhealthy(t *testing.T) {
	st := &fakeMaintStore{healthErr: errors.New("no connection")}
	audit := &fakeAudit{}
	kr := newTestKeyring(t)

	m := NewMaintenance(st, kr, audit, nil).WithKeyMaxAge(time.Nanosecond)
	m.Sweep(context.Background())

	assert.Equal(t, 0, st.purges)
	assert.Empty(t, audit.rotations)
}

func TestSweepPrunesRetiredKeys(t *testing.T) {
	st := &fakeMaintStore{}
	audit := &fakeAudit{}
	kr := newTestKeyring(t)
	_, err := kr.Rotate()
	require.NoError(t, err)

	m := NewMaintenance(st, kr, audit, nil).WithRetiredKeyMaxAge(time.Nanosecond)
	time.Sleep(2 * time.Nanosecond)
	m.Sweep(context.Background())

	assert.Equal(t, 0, kr.RetiredCount())
	assert.Contains(t, audit.events, compliance.EventKeysPruned)
}

func TestSweepWritesBackupSnapshot(t *testing.T) {
	st := &fakeMaintStore{recs: []store.ConversationRecord{{AnonID: "anon_abc"}}}
	audit := &fakeAudit{}
	fake := &fakeS3{}
	b := store.NewBackup(fake, "gm-backups", nil)

	m := NewMaintenance(st, newTestKeyring(t), audit, nil).WithBackup(b, time.Hour)
	m.Sweep(context.Background())

	assert.Equal(t, 1, fake.puts)
	assert.Contains(t, audit.events, compliance.EventBackupWritten)

	// A second sweep inside the backup interval does not write again.
	m.Sweep(context.Background())
	assert.Equal(t, 1, fake.puts)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	st := &fakeMaintStore{}
	m := NewMaintenance(st, newTestKeyring(t), &fakeAudit{}, nil).WithInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	assert.GreaterOrEqual(t, st.purges, 1)
}
