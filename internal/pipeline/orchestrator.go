// Package pipeline orchestrates one support request end to end: cultural
// resolution, crisis scoring, response synthesis, anonymization, encryption,
// and persistence.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/globalmind/support-platform/internal/crisis"
	"github.com/globalmind/support-platform/internal/culture"
	"github.com/globalmind/support-platform/internal/fault"
	"github.com/globalmind/support-platform/internal/notify"
	"github.com/globalmind/support-platform/internal/observability/metrics"
	"github.com/globalmind/support-platform/internal/respond"
	"github.com/globalmind/support-platform/internal/session"
	"github.com/globalmind/support-platform/internal/store"
	"github.com/globalmind/support-platform/pkg/logging"
)

var pipelineTracer = otel.Tracer("globalmind/pipeline")

// Request states, logged as the request moves through the pipeline.
const (
	StateReceived        = "received"
	StateContextResolved = "context_resolved"
	StateRiskScored      = "risk_scored"
	StateResponded       = "responded"
	StateLogged          = "logged"
	StateComplete        = "complete"
	StateFailed          = "failed"
)

// Branch labels for metrics.
const (
	BranchCrisis  = "crisis"
	BranchRegular = "regular"
)

// Request is one inbound support message.
type Request struct {
	UserID    string           `json:"user_id"`
	SessionID uuid.UUID        `json:"session_id"`
	Text      string           `json:"text"`
	Language  string           `json:"language"`
	Profile   *culture.Profile `json:"profile,omitempty"`
}

// Result is the pipeline outcome returned to the caller.
type Result struct {
	AnonID             string             `json:"anon_id"`
	SessionID          uuid.UUID          `json:"session_id"`
	Message            string             `json:"message"`
	CrisisDetected     bool               `json:"crisis_detected"`
	Urgency            string             `json:"urgency"`
	CulturalContext    culture.Context    `json:"cultural_context"`
	EmergencyResources []respond.Resource `json:"emergency_resources,omitempty"`
}

// Guard is the privacy surface the pipeline needs.
type Guard interface {
	Anonymize(userID string) string
	Scrub(text string) string
	Encrypt(plaintext []byte) (string, error)
}

// Scorer evaluates crisis risk.
type Scorer interface {
	Score(ctx context.Context, message, region string) (*crisis.Assessment, error)
}

// Synthesizer produces replies.
type Synthesizer interface {
	Synthesize(cctx culture.Context, message string, priorThemes []string) string
	SynthesizeCrisis(cctx culture.Context) string
}

// Auditor records privacy audit events.
type Auditor interface {
	LogCrisisDetected(ctx context.Context, anonID string, score float64, urgency string) error
}

// Alerter notifies the on-call contact about crisis events.
type Alerter interface {
	Alert(ctx context.Context, alert notify.CrisisAlert) error
}

// History keeps short-lived session context.
type History interface {
	Append(ctx context.Context, sessionID string, turn session.Turn) error
	Load(ctx context.Context, sessionID string) ([]session.Turn, error)
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	logger      *logging.Logger
	resolver    *culture.Resolver
	scorer      Scorer
	synthesizer Synthesizer
	guard       Guard
	store       *store.Store
	history     History
	audit       Auditor
	alerter     Alerter
	metrics     *metrics.PipelineMetrics
	threshold   float64
	now         func() time.Time
}

// Config wires orchestrator dependencies. History, Audit, Alerter, and
// Metrics are optional; the rest are required.
type Config struct {
	Logger      *logging.Logger
	Resolver    *culture.Resolver
	Scorer      Scorer
	Synthesizer Synthesizer
	Guard       Guard
	Store       *store.Store
	History     History
	Audit       Auditor
	Alerter     Alerter
	Metrics     *metrics.PipelineMetrics
	Threshold   float64
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Resolver == nil || cfg.Scorer == nil || cfg.Synthesizer == nil || cfg.Guard == nil || cfg.Store == nil {
		return nil, fault.New(fault.KindConfiguration, fault.CodeConfigMissingRules,
			"pipeline: resolver, scorer, synthesizer, guard, and store are required")
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return nil, fault.New(fault.KindConfiguration, fault.CodeConfigInvalidValue,
			"pipeline: crisis threshold must be in (0,1]")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		logger:      logger.Component("pipeline"),
		resolver:    cfg.Resolver,
		scorer:      cfg.Scorer,
		synthesizer: cfg.Synthesizer,
		guard:       cfg.Guard,
		store:       cfg.Store,
		history:     cfg.History,
		audit:       cfg.Audit,
		alerter:     cfg.Alerter,
		metrics:     cfg.Metrics,
		threshold:   cfg.Threshold,
		now:         time.Now,
	}, nil
}

// Process runs one request through the pipeline. When crisis scoring itself
// fails, the caller still receives a safe high-risk reply with emergency
// resources alongside the classified error; the failure must never degrade
// into a silent zero score.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	ctx, span := pipelineTracer.Start(ctx, "pipeline.process")
	defer span.End()
	start := o.now()

	if req.SessionID == uuid.Nil {
		req.SessionID = uuid.New()
	}
	anonID := o.guard.Anonymize(req.UserID)
	o.transition(anonID, StateReceived)

	cctx := o.resolver.Resolve(req.Language, req.Profile)
	o.transition(anonID, StateContextResolved)

	assessment, err := o.scorer.Score(ctx, req.Text, cctx.Region)
	if err != nil {
		o.transition(anonID, StateFailed)
		o.observe(BranchCrisis, "scorer_failed", start)
		o.logger.Error("crisis scoring failed, returning safe high-risk reply",
			"error", err, "anon_id", anonID)
		return &Result{
			AnonID:             anonID,
			SessionID:          req.SessionID,
			Message:            respond.SafeCrisisFallback(),
			CrisisDetected:     true,
			Urgency:            crisis.UrgencyImmediate,
			CulturalContext:    cctx,
			EmergencyResources: respond.EmergencyResources(),
		}, fault.Wrap(fault.KindCrisisDetection, fault.CodeCrisisScorer, "pipeline: score request", err)
	}
	o.transition(anonID, StateRiskScored)
	o.metrics.ObserveScore(assessment.Score)
	span.SetAttributes(
		attribute.Float64("pipeline.score", assessment.Score),
		attribute.String("pipeline.urgency", assessment.Urgency),
	)

	isCrisis := assessment.Score > o.threshold
	branch := BranchRegular
	var reply string
	if isCrisis {
		branch = BranchCrisis
		reply = o.synthesizer.SynthesizeCrisis(cctx)
		o.metrics.ObserveCrisis(assessment.Urgency, cctx.Region)
		if o.audit != nil {
			if err := o.audit.LogCrisisDetected(ctx, anonID, assessment.Score, assessment.Urgency); err != nil {
				o.logger.Error("crisis audit log failed", "error", err, "anon_id", anonID)
			}
		}
		if o.alerter != nil {
			_ = o.alerter.Alert(ctx, notify.CrisisAlert{
				AnonID:   anonID,
				Score:    assessment.Score,
				Urgency:  assessment.Urgency,
				Region:   cctx.Region,
				Language: cctx.Language,
				At:       o.now().UTC(),
			})
		}
	} else {
		reply = o.synthesizer.Synthesize(cctx, req.Text, o.priorThemes(ctx, req.SessionID.String()))
	}
	o.transition(anonID, StateResponded)

	if err := o.persist(ctx, req, cctx, assessment, anonID, reply, isCrisis); err != nil {
		o.transition(anonID, StateFailed)
		o.observe(branch, "persist_failed", start)
		return nil, err
	}
	o.transition(anonID, StateLogged)

	if o.history != nil {
		themes := respond.AnalyzeThemes(req.Text)
		turn := session.Turn{Role: "user", Theme: themes[0], Urgency: assessment.Urgency}
		if err := o.history.Append(ctx, req.SessionID.String(), turn); err != nil {
			// History is working memory, not the record of truth.
			o.logger.Warn("session history append failed", "error", err)
		}
	}

	o.transition(anonID, StateComplete)
	o.observe(branch, "ok", start)

	res := &Result{
		AnonID:          anonID,
		SessionID:       req.SessionID,
		Message:         reply,
		CrisisDetected:  isCrisis,
		Urgency:         assessment.Urgency,
		CulturalContext: cctx,
	}
	if isCrisis {
		res.EmergencyResources = respond.EmergencyResources()
	}
	return res, nil
}

// persist writes the user, session, and conversation rows in order inside one
// transaction. The message is scrubbed of emails and phone numbers, then both
// payloads are encrypted before touching the store.
func (o *Orchestrator) persist(ctx context.Context, req Request, cctx culture.Context, a *crisis.Assessment, anonID, reply string, isCrisis bool) error {
	msgBlob, err := o.guard.Encrypt([]byte(o.guard.Scrub(req.Text)))
	if err != nil {
		return err
	}
	replyBlob, err := o.guard.Encrypt([]byte(reply))
	if err != nil {
		return err
	}

	tx, err := o.store.Begin(ctx)
	if err != nil {
		return fault.Wrap(fault.KindDatabase, fault.CodeDatabaseUnavailable, "pipeline: begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	preferred := ""
	if req.Profile != nil {
		preferred = req.Profile.PreferredApproach
	}
	if err := o.store.UpsertUser(ctx, tx, store.UserRecord{
		AnonID:            anonID,
		Language:          cctx.Language,
		CulturalRegion:    cctx.Region,
		PreferredApproach: preferred,
	}); err != nil {
		return err
	}
	if err := o.store.EnsureSession(ctx, tx, store.SessionRecord{
		ID:     req.SessionID,
		AnonID: anonID,
	}); err != nil {
		return err
	}
	if err := o.store.AppendConversation(ctx, tx, store.ConversationRecord{
		SessionID:         req.SessionID,
		AnonID:            anonID,
		MessageEncrypted:  msgBlob,
		ResponseEncrypted: replyBlob,
		CrisisScore:       a.Score,
		CrisisDetected:    isCrisis,
		Urgency:           a.Urgency,
		Language:          cctx.Language,
		CulturalRegion:    cctx.Region,
		Approach:          cctx.Approach,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "pipeline: commit", err)
	}
	return nil
}

// priorThemes returns the themes of the session's earlier turns. History is
// optional and best-effort; a load failure means synthesis just sees a fresh
// session.
func (o *Orchestrator) priorThemes(ctx context.Context, sessionID string) []string {
	if o.history == nil {
		return nil
	}
	turns, err := o.history.Load(ctx, sessionID)
	if err != nil {
		o.logger.Warn("session history load failed", "error", err)
		return nil
	}
	themes := make([]string, 0, len(turns))
	for _, t := range turns {
		themes = append(themes, t.Theme)
	}
	return themes
}

func (o *Orchestrator) transition(anonID, state string) {
	o.logger.Debug("pipeline state", "anon_id", anonID, "state", state)
}

func (o *Orchestrator) observe(branch, status string, start time.Time) {
	o.metrics.ObserveRequest(branch, status, o.now().Sub(start).Seconds())
}
