package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/monitor"
)

// routeToReview diverts a document that failed validation to the review
// area of the ledger. The ledger write is the only step that can fail the
// routing; everything after it degrades to log lines so a review row is
// never written twice.
func (e *Engine) routeToReview(ctx context.Context, doc *model.Document, actor model.Actor) error {
	start := time.Now()
	defer func() {
		monitor.StageLatency.WithLabelValues(string(model.StageStore)).Observe(time.Since(start).Seconds())
	}()

	reason := doc.Verdict.ReviewReason()

	var rowRef string
	err := common.WithRetry(ctx, func() error {
		doc.RecordAttempt(model.StageStore)
		actx, cancel := e.attemptCtx(ctx)
		defer cancel()
		var werr error
		rowRef, werr = e.ledger.MarkForReview(actx, doc.Fingerprint, doc.Payload, reason)
		return werr
	}, e.retry)
	if err != nil {
		return err
	}

	if err := e.advance(ctx, doc, model.StateNeedsReview, actor, string(reason)); err != nil {
		slog.Error("failed to audit review transition",
			"fingerprint", doc.Fingerprint,
			"error", err)
	}

	record := &model.ReviewRecord{
		Fingerprint: doc.Fingerprint,
		Reason:      reason,
		Codes:       doc.Verdict.Violations,
		Confidence:  doc.Verdict.Confidence,
		LedgerRef:   rowRef,
	}
	if _, err := e.store.AddReview(ctx, record); err != nil {
		slog.Error("failed to record review entry",
			"fingerprint", doc.Fingerprint,
			"error", err)
	}

	mctx, cancel := e.attemptCtx(ctx)
	defer cancel()
	if err := e.ingestor.MoveToReview(mctx, doc.Ref); err != nil {
		slog.Warn("failed to move document to review folder",
			"fingerprint", doc.Fingerprint,
			"source_id", doc.Ref.SourceID,
			"error", err)
	}

	monitor.DocumentsTotal.WithLabelValues(monitor.OutcomeLabelReview).Inc()
	slog.Info("document routed to review",
		"fingerprint", doc.Fingerprint,
		"reason", reason,
		"violations", len(doc.Verdict.Violations),
		"confidence", doc.Verdict.Confidence,
		"ledger_ref", rowRef)

	return nil
}
