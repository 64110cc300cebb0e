// Package engine drives documents through the processing pipeline, from
// discovery in a source backend to a terminal outcome in the ledger, the
// review queue, or the dead letter store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/monitor"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
	"github.com/atikulmunna/visual-invoice-processor/internal/validate"
)

// Engine orchestrates the pipeline. Cross-worker safety comes entirely from
// the claim store; the engine itself keeps no shared mutable state between
// documents.
type Engine struct {
	store     service.Store
	ingestor  service.Ingestor
	extractor service.Extractor
	ledger    service.Ledger
	scorer    *validate.Scorer
	retry     service.RetryPolicy
	workers   int
	workerID  string
}

// Config holds the orchestration settings.
type Config struct {
	Retry    service.RetryPolicy
	Workers  int
	WorkerID string
}

// New creates an engine with the given adapters. Zero config fields fall
// back to defaults; an empty worker id gets a generated one.
func New(store service.Store, ingestor service.Ingestor, extractor service.Extractor, ledger service.Ledger, scorer *validate.Scorer, cfg Config) *Engine {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = service.DefaultRetryPolicy()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = DefaultWorkerID()
	}
	return &Engine{
		store:     store,
		ingestor:  ingestor,
		extractor: extractor,
		ledger:    ledger,
		scorer:    scorer,
		retry:     cfg.Retry,
		workers:   cfg.Workers,
		workerID:  cfg.WorkerID,
	}
}

// DefaultWorkerID builds a worker identity unique across hosts and restarts.
func DefaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// PollOnce runs one sweep: list candidates, claim each new document, and
// drive it to a terminal state. Per-document failures are absorbed into the
// summary; only a failure to list candidates aborts the sweep.
func (e *Engine) PollOnce(ctx context.Context) (*service.PollSummary, error) {
	start := time.Now()

	lctx, cancel := e.attemptCtx(ctx)
	refs, err := e.ingestor.List(lctx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	slog.Info("found candidate documents",
		"count", len(refs),
		"source", e.ingestor.Name(),
		"worker", e.workerID)

	summary := &service.PollSummary{Discovered: len(refs)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, ref := range refs {
		// Stop scheduling new documents once cancellation hits; in-flight
		// documents finish or abandon on their own.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			claimed, outcome := e.processDocument(gctx, ref)

			mu.Lock()
			defer mu.Unlock()
			if !claimed {
				summary.Skipped++
				return nil
			}
			summary.Claimed++
			switch outcome {
			case model.OutcomeStored:
				summary.Stored++
			case model.OutcomeNeedsReview:
				summary.NeedsReview++
			case model.OutcomeDeadLetter:
				summary.DeadLetter++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.updateBacklogGauge(ctx)

	summary.Duration = time.Since(start)
	slog.Info("poll complete",
		"discovered", summary.Discovered,
		"claimed", summary.Claimed,
		"skipped", summary.Skipped,
		"stored", summary.Stored,
		"needs_review", summary.NeedsReview,
		"dead_letter", summary.DeadLetter,
		"duration", summary.Duration)

	return summary, nil
}

// processDocument takes one candidate from discovery to a terminal state.
// The boolean reports whether this worker claimed the document; the outcome
// is meaningful only for claimed documents.
func (e *Engine) processDocument(ctx context.Context, ref model.FileRef) (bool, model.ClaimOutcome) {
	data, err := e.fetchCandidate(ctx, ref)
	if err != nil {
		// No bytes means no fingerprint, so the document has no identity to
		// claim or dead letter yet. It stays in the inbox for the next sweep.
		slog.Warn("failed to fetch candidate",
			"source_id", ref.SourceID,
			"name", ref.Name,
			"error", err)
		monitor.DocumentsTotal.WithLabelValues(monitor.OutcomeLabelSkipped).Inc()
		return false, ""
	}

	fp := model.NewFingerprint(ref.SourceID, data)
	now := time.Now().UTC()

	if err := e.store.RecordDiscovery(ctx, ref, fp, now); err != nil {
		slog.Warn("failed to record discovery", "fingerprint", fp, "error", err)
	}

	processed, err := e.store.IsProcessed(ctx, fp)
	if err != nil {
		slog.Error("failed to check processed state", "fingerprint", fp, "error", err)
		return false, ""
	}
	if processed {
		slog.Debug("document already processed, skipping", "fingerprint", fp)
		monitor.DocumentsTotal.WithLabelValues(monitor.OutcomeLabelSkipped).Inc()
		return false, ""
	}

	claim, err := e.store.TryClaim(ctx, fp, e.workerID)
	if err != nil {
		slog.Error("failed to claim document", "fingerprint", fp, "error", err)
		return false, ""
	}
	switch claim.Status {
	case model.ClaimHeld:
		slog.Debug("document claimed by another worker",
			"fingerprint", fp,
			"owner", claim.Owner)
		monitor.DocumentsTotal.WithLabelValues(monitor.OutcomeLabelSkipped).Inc()
		return false, ""
	case model.ClaimProcessed:
		slog.Debug("document already processed, skipping", "fingerprint", fp)
		monitor.DocumentsTotal.WithLabelValues(monitor.OutcomeLabelSkipped).Inc()
		return false, ""
	}

	doc := &model.Document{
		Fingerprint:  fp,
		Ref:          ref,
		State:        model.StateDiscovered,
		History:      []model.StageEvent{{State: model.StateDiscovered, At: now}},
		DiscoveredAt: now,
	}

	outcome := e.runClaimed(ctx, doc, runOptions{data: data, actor: model.ActorSystem})
	e.release(ctx, claim.Claim.ID, outcome)
	return true, outcome
}

// runOptions carries the per-run inputs for a claimed document. data holds
// bytes already fetched during the sweep; seed is a payload recorded on a
// dead letter, which replaces the model call on replay.
type runOptions struct {
	data      []byte
	seed      *model.InvoicePayload
	actor     model.Actor
	claimNote string
}

// runClaimed drives a claimed document through the pipeline stages and
// returns the outcome to release the claim with.
func (e *Engine) runClaimed(ctx context.Context, doc *model.Document, opts runOptions) model.ClaimOutcome {
	if err := e.advance(ctx, doc, model.StateClaimed, opts.actor, opts.claimNote); err != nil {
		return e.fail(ctx, doc, model.StageDiscover, err, model.StateDiscovered, "", opts.actor)
	}

	if err := e.advance(ctx, doc, model.StateDownloading, opts.actor, ""); err != nil {
		return e.fail(ctx, doc, model.StageDownload, err, model.StateDiscovered, "", opts.actor)
	}
	data, err := e.download(ctx, doc, opts.data)
	if err != nil {
		if abandoned(ctx, err) {
			return e.abandon(doc, err)
		}
		return e.fail(ctx, doc, model.StageDownload, err, model.StateDiscovered, "", opts.actor)
	}

	if err := e.advance(ctx, doc, model.StateExtracting, opts.actor, ""); err != nil {
		return e.fail(ctx, doc, model.StageExtract, err, model.StateExtracting, "", opts.actor)
	}
	provider := ""
	if opts.seed != nil {
		doc.Payload = opts.seed
		slog.Info("reusing recorded payload", "fingerprint", doc.Fingerprint)
	} else {
		res, err := e.extract(ctx, doc, data)
		if err != nil {
			if abandoned(ctx, err) {
				return e.abandon(doc, err)
			}
			return e.fail(ctx, doc, model.StageExtract, err, model.StateExtracting, "", opts.actor)
		}
		doc.Payload = res.Payload
		provider = res.Provider
	}

	if err := e.advance(ctx, doc, model.StateValidating, opts.actor, ""); err != nil {
		return e.fail(ctx, doc, model.StageValidate, err, model.StateExtracting, provider, opts.actor)
	}
	vstart := time.Now()
	doc.Verdict = e.scorer.Score(doc.Payload)
	monitor.StageLatency.WithLabelValues(string(model.StageValidate)).Observe(time.Since(vstart).Seconds())

	if !doc.Verdict.Passed() {
		if err := e.routeToReview(ctx, doc, opts.actor); err != nil {
			if abandoned(ctx, err) {
				return e.abandon(doc, err)
			}
			return e.fail(ctx, doc, model.StageStore, err, model.StateExtracting, provider, opts.actor)
		}
		return model.OutcomeNeedsReview
	}

	rowRef, err := e.persist(ctx, doc)
	if err != nil {
		if abandoned(ctx, err) {
			return e.abandon(doc, err)
		}
		return e.fail(ctx, doc, model.StageStore, err, model.StateExtracting, provider, opts.actor)
	}
	if err := e.advance(ctx, doc, model.StateStored, opts.actor, "ledger "+rowRef); err != nil {
		// The ledger row is written; a broken audit trail must not trigger a
		// duplicate write.
		slog.Error("failed to audit stored transition",
			"fingerprint", doc.Fingerprint,
			"error", err)
	}
	monitor.DocumentsTotal.WithLabelValues(monitor.OutcomeLabelStored).Inc()
	slog.Info("document stored",
		"fingerprint", doc.Fingerprint,
		"ledger_ref", rowRef,
		"provider", provider,
		"confidence", doc.Verdict.Confidence)

	e.archive(ctx, doc)

	return model.OutcomeStored
}

// fetchCandidate downloads a candidate's bytes ahead of claiming: the
// fingerprint needs a content hash, and hashing needs the bytes in hand.
func (e *Engine) fetchCandidate(ctx context.Context, ref model.FileRef) ([]byte, error) {
	start := time.Now()
	defer func() {
		monitor.StageLatency.WithLabelValues(string(model.StageDiscover)).Observe(time.Since(start).Seconds())
	}()

	var data []byte
	err := common.WithRetry(ctx, func() error {
		actx, cancel := e.attemptCtx(ctx)
		defer cancel()
		var ferr error
		data, ferr = e.ingestor.Fetch(actx, ref)
		return ferr
	}, e.retry)
	return data, err
}

// download stages the document bytes. A replayed document arrives without
// bytes in hand, so fetch again; either way the content must still match the
// claimed fingerprint.
func (e *Engine) download(ctx context.Context, doc *model.Document, data []byte) ([]byte, error) {
	start := time.Now()
	defer func() {
		monitor.StageLatency.WithLabelValues(string(model.StageDownload)).Observe(time.Since(start).Seconds())
	}()

	if data == nil {
		err := common.WithRetry(ctx, func() error {
			doc.RecordAttempt(model.StageDownload)
			actx, cancel := e.attemptCtx(ctx)
			defer cancel()
			var ferr error
			data, ferr = e.ingestor.Fetch(actx, doc.Ref)
			return ferr
		}, e.retry)
		if err != nil {
			return nil, err
		}
	}

	if got := model.NewFingerprint(doc.Ref.SourceID, data); got.ContentHash != doc.Fingerprint.ContentHash {
		return nil, fmt.Errorf("content changed since discovery for %s", doc.Ref.SourceID)
	}
	return data, nil
}

// extract runs the provider chain under the retry policy.
func (e *Engine) extract(ctx context.Context, doc *model.Document, data []byte) (*service.ExtractionResult, error) {
	start := time.Now()
	defer func() {
		monitor.StageLatency.WithLabelValues(string(model.StageExtract)).Observe(time.Since(start).Seconds())
	}()

	var res *service.ExtractionResult
	err := common.WithRetry(ctx, func() error {
		doc.RecordAttempt(model.StageExtract)
		monitor.ExtractionAttempts.WithLabelValues(e.extractor.Name()).Inc()
		actx, cancel := e.attemptCtx(ctx)
		defer cancel()
		var xerr error
		res, xerr = e.extractor.Extract(actx, doc.Ref, data)
		if xerr != nil {
			monitor.ExtractionFailures.WithLabelValues(e.extractor.Name(), string(common.FailureKindOf(xerr))).Inc()
		}
		return xerr
	}, e.retry)
	if err != nil {
		return nil, err
	}

	slog.Info("extracted document",
		"fingerprint", doc.Fingerprint,
		"provider", res.Provider,
		"corrected", res.Corrected,
		"model_confidence", res.Payload.ModelConfidence)
	return res, nil
}

// persist appends the validated payload to the ledger under the retry policy.
func (e *Engine) persist(ctx context.Context, doc *model.Document) (string, error) {
	start := time.Now()
	defer func() {
		monitor.StageLatency.WithLabelValues(string(model.StageStore)).Observe(time.Since(start).Seconds())
	}()

	var rowRef string
	err := common.WithRetry(ctx, func() error {
		doc.RecordAttempt(model.StageStore)
		actx, cancel := e.attemptCtx(ctx)
		defer cancel()
		var serr error
		rowRef, serr = e.ledger.Append(actx, doc.Fingerprint, doc.Payload)
		return serr
	}, e.retry)
	return rowRef, err
}

// archive moves a stored document out of the inbox. Archive failures do not
// undo the stored outcome; the next sweep skips the fingerprint anyway.
func (e *Engine) archive(ctx context.Context, doc *model.Document) {
	actx, cancel := e.attemptCtx(ctx)
	defer cancel()

	if err := e.ingestor.Archive(actx, doc.Ref); err != nil {
		slog.Warn("failed to archive stored document",
			"fingerprint", doc.Fingerprint,
			"source_id", doc.Ref.SourceID,
			"error", err)
	}
}

// advance validates the move, applies it, and audits it. The transition
// check runs before any side effect of entering the new state.
func (e *Engine) advance(ctx context.Context, doc *model.Document, next model.State, actor model.Actor, note string) error {
	if err := Transition(doc.State, next); err != nil {
		return err
	}

	from := doc.State
	at := time.Now().UTC()
	doc.Advance(next, at)

	entry := &model.AuditEntry{
		Fingerprint: doc.Fingerprint,
		FromState:   from,
		ToState:     next,
		Actor:       actor,
		Note:        note,
		At:          at,
	}
	if err := e.store.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("failed to audit transition %s -> %s: %w", from, next, err)
	}
	return nil
}

// fail captures a terminally failed document into the dead letter store.
// Stages with a declared FAILED edge route through it; the store stage has
// none, so its capture audits straight to DEAD_LETTER.
func (e *Engine) fail(ctx context.Context, doc *model.Document, stage model.Stage, cause error, resume model.State, provider string, actor model.Actor) model.ClaimOutcome {
	kind := common.FailureKindOf(cause)
	slog.Error("document failed terminally",
		"fingerprint", doc.Fingerprint,
		"stage", stage,
		"kind", kind,
		"state", doc.State,
		"error", cause)

	if CanTransition(doc.State, model.StateFailed) {
		if err := e.advance(ctx, doc, model.StateFailed, actor, auditNote(cause)); err != nil {
			slog.Error("failed to audit failure", "fingerprint", doc.Fingerprint, "error", err)
		}
		if err := e.advance(ctx, doc, model.StateDeadLetter, actor, "retries exhausted"); err != nil {
			slog.Error("failed to audit dead letter", "fingerprint", doc.Fingerprint, "error", err)
		}
	} else {
		e.capture(ctx, doc, actor, auditNote(cause))
	}

	entry := &model.DeadLetterEntry{
		Fingerprint: doc.Fingerprint,
		Stage:       stage,
		Kind:        kind,
		Context: model.DeadLetterContext{
			Ref:         doc.Ref,
			ResumeState: resume,
			Payload:     doc.Payload,
			Provider:    provider,
			Error:       cause.Error(),
		},
		RetryCount: doc.Retries[stage],
	}
	if _, err := e.store.AddDeadLetter(ctx, entry); err != nil {
		slog.Error("failed to record dead letter", "fingerprint", doc.Fingerprint, "error", err)
	}

	monitor.DocumentsTotal.WithLabelValues(monitor.OutcomeLabelDeadLetter).Inc()
	return model.OutcomeDeadLetter
}

// capture records a dead letter move outside the automatic table. This is
// the record path for states with no FAILED route and for integrity faults.
func (e *Engine) capture(ctx context.Context, doc *model.Document, actor model.Actor, note string) {
	from := doc.State
	at := time.Now().UTC()
	doc.Advance(model.StateDeadLetter, at)

	entry := &model.AuditEntry{
		Fingerprint: doc.Fingerprint,
		FromState:   from,
		ToState:     model.StateDeadLetter,
		Actor:       actor,
		Note:        note,
		At:          at,
	}
	if err := e.store.AppendAudit(ctx, entry); err != nil {
		slog.Error("failed to audit dead letter capture",
			"fingerprint", doc.Fingerprint,
			"error", err)
	}
}

// attemptCtx bounds a single adapter call with the policy's attempt timeout.
// An expired attempt fails with a retryable deadline error; the parent
// context still governs shutdown. A zero timeout leaves the call unbounded.
func (e *Engine) attemptCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.retry.AttemptTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.retry.AttemptTimeout)
}

// release finishes the claim with its outcome. The write runs on a detached
// context so a shutdown cannot strand the claim in the active state.
func (e *Engine) release(ctx context.Context, claimID string, outcome model.ClaimOutcome) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := e.store.Release(rctx, claimID, outcome); err != nil {
		slog.Error("failed to release claim",
			"claim_id", claimID,
			"outcome", outcome,
			"error", err)
	}
}

// updateBacklogGauge refreshes the backlog metric after a sweep. Failures
// only cost the metric, not the sweep.
func (e *Engine) updateBacklogGauge(ctx context.Context) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		slog.Warn("failed to refresh backlog gauge", "error", err)
		return
	}
	monitor.BacklogSize.Set(float64(stats.Backlog))
}

// abandoned reports whether the failure is the shutdown, not the document.
func abandoned(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

func (e *Engine) abandon(doc *model.Document, cause error) model.ClaimOutcome {
	slog.Info("abandoning document on shutdown",
		"fingerprint", doc.Fingerprint,
		"state", doc.State,
		"error", cause)
	return model.OutcomeAbandoned
}

// auditNote trims an error down to a single short line for the audit trail.
func auditNote(err error) string {
	s := err.Error()
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
