package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

// Replay re-submits dead letter entries with the given status through the
// full pipeline. Each entry claims its document afresh, so a concurrent
// sweep and a replay can never double-process the same fingerprint.
func (e *Engine) Replay(ctx context.Context, status model.ReplayStatus) (*service.ReplaySummary, error) {
	entries, err := e.store.ListDeadLetters(ctx, status, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	slog.Info("replaying dead letters",
		"count", len(entries),
		"status", status,
		"worker", e.workerID)

	summary := &service.ReplaySummary{}
	for i := range entries {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		e.replayEntry(ctx, &entries[i], summary)
	}

	slog.Info("replay complete",
		"queued", summary.Queued,
		"skipped_processed", summary.SkippedProcessed,
		"skipped_invalid", summary.SkippedInvalid)

	return summary, nil
}

// ReplayOne re-submits a single dead letter entry by id.
func (e *Engine) ReplayOne(ctx context.Context, id int64) (*service.ReplaySummary, error) {
	entry, err := e.store.GetDeadLetter(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load dead letter %d: %w", id, err)
	}

	summary := &service.ReplaySummary{}
	e.replayEntry(ctx, entry, summary)
	return summary, nil
}

// replayEntry drives one dead letter back through the pipeline. Entries
// whose document was stored in the meantime resolve without rerunning; an
// entry with a recorded payload skips the model call but still refetches
// and verifies the source bytes.
func (e *Engine) replayEntry(ctx context.Context, entry *model.DeadLetterEntry, summary *service.ReplaySummary) {
	if entry.Fingerprint.Zero() || entry.Context.Ref.SourceID == "" {
		e.recordDecision(ctx, entry, model.StateDeadLetter, "replay skipped: entry missing source ref")
		slog.Warn("dead letter entry missing document identity, skipping",
			"dead_letter_id", entry.ID)
		summary.SkippedInvalid++
		return
	}

	processed, err := e.store.IsProcessed(ctx, entry.Fingerprint)
	if err != nil {
		slog.Error("failed to check processed state",
			"dead_letter_id", entry.ID,
			"fingerprint", entry.Fingerprint,
			"error", err)
		summary.SkippedInvalid++
		return
	}
	if processed {
		e.resolve(ctx, entry.ID)
		e.recordDecision(ctx, entry, model.StateStored,
			fmt.Sprintf("replay skipped: document already stored, dead letter %d resolved", entry.ID))
		slog.Info("document stored since capture, resolving dead letter",
			"dead_letter_id", entry.ID,
			"fingerprint", entry.Fingerprint)
		summary.SkippedProcessed++
		return
	}

	claim, err := e.store.TryClaim(ctx, entry.Fingerprint, e.workerID)
	if err != nil {
		slog.Error("failed to claim document for replay",
			"dead_letter_id", entry.ID,
			"fingerprint", entry.Fingerprint,
			"error", err)
		summary.SkippedInvalid++
		return
	}
	switch claim.Status {
	case model.ClaimHeld:
		e.recordDecision(ctx, entry, model.StateDeadLetter,
			fmt.Sprintf("replay skipped: claim held by %s", claim.Owner))
		slog.Warn("document claimed by another worker, leaving entry pending",
			"dead_letter_id", entry.ID,
			"fingerprint", entry.Fingerprint,
			"owner", claim.Owner)
		summary.SkippedInvalid++
		return
	case model.ClaimProcessed:
		e.resolve(ctx, entry.ID)
		e.recordDecision(ctx, entry, model.StateStored,
			fmt.Sprintf("replay skipped: document already stored, dead letter %d resolved", entry.ID))
		summary.SkippedProcessed++
		return
	}

	now := time.Now().UTC()
	doc := &model.Document{
		Fingerprint:  entry.Fingerprint,
		Ref:          entry.Context.Ref,
		State:        model.StateDiscovered,
		History:      []model.StageEvent{{State: model.StateDiscovered, At: now}},
		DiscoveredAt: now,
	}

	opts := runOptions{
		actor:     model.ActorReplay,
		claimNote: fmt.Sprintf("replay of dead letter %d", entry.ID),
	}
	if entry.Context.ResumeState == model.StateExtracting && entry.Context.Payload != nil {
		opts.seed = entry.Context.Payload
	}

	outcome := e.runClaimed(ctx, doc, opts)
	e.release(ctx, claim.Claim.ID, outcome)

	if outcome == model.OutcomeAbandoned {
		// Shutdown interrupted the run; the entry stays pending for the
		// next replay pass.
		return
	}

	e.resolve(ctx, entry.ID)
	summary.Queued++
	slog.Info("dead letter replayed",
		"dead_letter_id", entry.ID,
		"fingerprint", entry.Fingerprint,
		"outcome", outcome)
}

// Abandon closes a dead letter entry without reprocessing it. The document
// stays in DEAD_LETTER; the entry drops out of the pending queue and can
// still be replayed later from the abandoned queue.
func (e *Engine) Abandon(ctx context.Context, id int64) error {
	entry, err := e.store.GetDeadLetter(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load dead letter %d: %w", id, err)
	}

	if err := e.store.ResolveDeadLetter(ctx, id, model.ReplayAbandoned); err != nil {
		return fmt.Errorf("failed to abandon dead letter %d: %w", id, err)
	}

	if !entry.Fingerprint.Zero() {
		audit := &model.AuditEntry{
			Fingerprint: entry.Fingerprint,
			FromState:   model.StateDeadLetter,
			ToState:     model.StateDeadLetter,
			Actor:       model.ActorManual,
			Note:        fmt.Sprintf("dead letter %d abandoned", id),
		}
		if auditErr := e.store.AppendAudit(ctx, audit); auditErr != nil {
			slog.Warn("failed to record abandonment",
				"dead_letter_id", id,
				"error", auditErr)
		}
	}

	slog.Info("dead letter abandoned",
		"dead_letter_id", id,
		"fingerprint", entry.Fingerprint)
	return nil
}

// resolve marks a dead letter entry replayed. The pipeline outcome stands
// even if the bookkeeping write fails.
func (e *Engine) resolve(ctx context.Context, id int64) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := e.store.ResolveDeadLetter(rctx, id, model.ReplayReplayed); err != nil {
		slog.Error("failed to resolve dead letter", "dead_letter_id", id, "error", err)
	}
}

// recordDecision audits a replay skip against the document trail. Queued
// replays are audited by the pipeline walk itself, starting with the claim
// transition note.
func (e *Engine) recordDecision(ctx context.Context, entry *model.DeadLetterEntry, observed model.State, note string) {
	if entry.Fingerprint.Zero() {
		return
	}
	audit := &model.AuditEntry{
		Fingerprint: entry.Fingerprint,
		FromState:   model.StateDeadLetter,
		ToState:     observed,
		Actor:       model.ActorReplay,
		Note:        note,
	}
	if err := e.store.AppendAudit(ctx, audit); err != nil {
		slog.Warn("failed to record replay decision",
			"dead_letter_id", entry.ID,
			"error", err)
	}
}
