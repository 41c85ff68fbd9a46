// Package worker runs the periodic maintenance loop: key rotation, retention
// purge, retired key pruning, and backup snapshots.
package worker

import (
	"context"
	"time"

	"github.com/globalmind/support-platform/internal/compliance"
	"github.com/globalmind/support-platform/internal/observability/metrics"
	"github.com/globalmind/support-platform/internal/privacy"
	"github.com/globalmind/support-platform/internal/store"
	"github.com/globalmind/support-platform/pkg/logging"
)

type maintenanceStore interface {
	Health(ctx context.Context) error
	PurgeExpired(ctx context.Context, cutoff time.Time) (*store.PurgeResult, error)
	ConversationsSince(ctx context.Context, since time.Time, limit int) ([]store.ConversationRecord, error)
}

type auditLogger interface {
	LogKeyRotated(ctx context.Context, keyID string) error
	LogRetentionPurge(ctx context.Context, counts any) error
	LogEvent(ctx context.Context, eventType compliance.AuditEventType, anonID string, detail any) error
}

// Maintenance owns the recurring privacy upkeep tasks.
type Maintenance struct {
	store    maintenanceStore
	keyring  *privacy.Keyring
	audit    auditLogger
	backup   *store.Backup
	metrics  *metrics.PipelineMetrics
	logger   *logging.Logger
	interval time.Duration

	retentionDays  int
	keyMaxAge      time.Duration
	retiredMaxAge  time.Duration
	purgeRetries   int
	backupInterval time.Duration
	lastBackup     time.Time
}

func NewMaintenance(st maintenanceStore, kr *privacy.Keyring, audit auditLogger, logger *logging.Logger) *Maintenance {
	if logger == nil {
		logger = logging.Default()
	}
	return &Maintenance{
		store:          st,
		keyring:        kr,
		audit:          audit,
		logger:         logger.Component("maintenance"),
		interval:       1 * time.Hour,
		retentionDays:  365,
		keyMaxAge:      30 * 24 * time.Hour,
		retiredMaxAge:  90 * 24 * time.Hour,
		purgeRetries:   3,
		backupInterval: 24 * time.Hour,
	}
}

func (m *Maintenance) WithInterval(d time.Duration) *Maintenance {
	if d > 0 {
		m.interval = d
	}
	return m
}

func (m *Maintenance) WithRetentionDays(n int) *Maintenance {
	if n > 0 {
		m.retentionDays = n
	}
	return m
}

func (m *Maintenance) WithKeyMaxAge(d time.Duration) *Maintenance {
	if d > 0 {
		m.keyMaxAge = d
	}
	return m
}

func (m *Maintenance) WithRetiredKeyMaxAge(d time.Duration) *Maintenance {
	if d > 0 {
		m.retiredMaxAge = d
	}
	return m
}

func (m *Maintenance) WithBackup(b *store.Backup, every time.Duration) *Maintenance {
	m.backup = b
	if every > 0 {
		m.backupInterval = every
	}
	return m
}

func (m *Maintenance) WithMetrics(pm *metrics.PipelineMetrics) *Maintenance {
	m.metrics = pm
	return m
}

// Run executes one sweep immediately, then on every tick until ctx is done.
func (m *Maintenance) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one maintenance pass. Each task is independent: a failing purge
// must not block key rotation and vice versa.
func (m *Maintenance) Sweep(ctx context.Context) {
	if err := m.store.Health(ctx); err != nil {
		m.logger.Error("skipping sweep, database unhealthy", "error", err)
		return
	}

	m.rotateKeys(ctx)
	m.purge(ctx)
	m.pruneKeys(ctx)
	m.snapshot(ctx)
}

func (m *Maintenance) snapshot(ctx context.Context) {
	if !m.backup.Enabled() {
		return
	}
	now := time.Now().UTC()
	if !m.lastBackup.IsZero() && now.Sub(m.lastBackup) < m.backupInterval {
		return
	}
	since := m.lastBackup
	if since.IsZero() {
		since = now.Add(-m.backupInterval)
	}

	recs, err := m.store.ConversationsSince(ctx, since, 10000)
	if err != nil {
		m.logger.Error("backup snapshot query failed", "error", err)
		return
	}
	key, err := m.backup.Write(ctx, &store.Snapshot{TakenAt: now, Conversations: recs})
	if err != nil {
		m.logger.Error("backup snapshot write failed", "error", err)
		return
	}
	m.lastBackup = now
	if m.audit != nil && key != "" {
		if err := m.audit.LogEvent(ctx, compliance.EventBackupWritten, "", map[string]any{
			"s3_key": key, "conversations": len(recs),
		}); err != nil {
			m.logger.Error("backup audit failed", "error", err)
		}
	}
}

func (m *Maintenance) rotateKeys(ctx context.Context) {
	if m.keyring == nil {
		return
	}
	keyID, err := m.keyring.RotateIfDue(m.keyMaxAge)
	if err != nil {
		m.logger.Error("key rotation failed", "error", err)
		return
	}
	if keyID == "" {
		return
	}
	m.metrics.ObserveKeyRotation()
	m.logger.Info("encryption key rotated", "key_id", keyID)
	if m.audit != nil {
		if err := m.audit.LogKeyRotated(ctx, keyID); err != nil {
			m.logger.Error("key rotation audit failed", "error", err)
		}
	}
}

func (m *Maintenance) purge(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -m.retentionDays)

	var res *store.PurgeResult
	var err error
	for attempt := 0; attempt < m.purgeRetries; attempt++ {
		res, err = m.store.PurgeExpired(ctx, cutoff)
		if err == nil {
			break
		}
		m.logger.Warn("retention purge attempt failed", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	if err != nil {
		m.logger.Error("retention purge failed", "error", err, "cutoff", cutoff)
		return
	}

	total := res.Conversations + res.Progress + res.Feedback + res.Sessions + res.AuditEvents
	if total == 0 {
		return
	}
	m.metrics.ObservePurgedRows("conversations", res.Conversations)
	m.metrics.ObservePurgedRows("progress", res.Progress)
	m.metrics.ObservePurgedRows("feedback", res.Feedback)
	m.metrics.ObservePurgedRows("sessions", res.Sessions)
	m.metrics.ObservePurgedRows("audit_events", res.AuditEvents)
	m.logger.Info("retention purge complete",
		"cutoff", cutoff,
		"conversations", res.Conversations,
		"progress", res.Progress,
		"feedback", res.Feedback,
		"sessions", res.Sessions,
	)
	if m.audit != nil {
		if err := m.audit.LogRetentionPurge(ctx, res); err != nil {
			m.logger.Error("purge audit failed", "error", err)
		}
	}
}

func (m *Maintenance) pruneKeys(ctx context.Context) {
	if m.keyring == nil {
		return
	}
	pruned, err := m.keyring.PruneRetired(m.retiredMaxAge)
	if err != nil {
		m.logger.Error("retired key prune failed", "error", err)
		return
	}
	if pruned == 0 {
		return
	}
	m.logger.Info("retired keys pruned", "count", pruned)
	if m.audit != nil {
		if err := m.audit.LogEvent(ctx, compliance.EventKeysPruned, "", map[string]int{"pruned": pruned}); err != nil {
			m.logger.Error("key prune audit failed", "error", err)
		}
	}
}
