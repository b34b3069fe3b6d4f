package pipeline

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/spigell/scout-responder/internal/ai"
	"github.com/spigell/scout-responder/internal/bizreach"
	"github.com/spigell/scout-responder/internal/ledger"
	"github.com/spigell/scout-responder/internal/logger"
	"github.com/spigell/scout-responder/internal/scout"
	"github.com/spigell/scout-responder/internal/surface"
	"github.com/spigell/scout-responder/internal/utils"
	"go.uber.org/zap"
)

const profileLogLength = 200

// processCandidate handles one row and always tries to close the detail
// view afterwards, whatever happened before.
func (r *Runner) processCandidate(ctx context.Context, page surface.Page, mode bizreach.Mode, row surface.Ref, log *zap.Logger) Result {
	res := r.handleCandidate(ctx, page, mode, row, log)

	res.Closed = r.deps.Extractor.Close(ctx, page)
	if res.Opened && !res.Closed {
		log.Warn("close control not visible after candidate")
	}
	if err := utils.WaitFor(ctx, r.cfg.Timing.PostCandidate); err != nil {
		log.Debug("post candidate delay interrupted", zap.Error(err))
	}

	return res
}

func (r *Runner) handleCandidate(ctx context.Context, page surface.Page, mode bizreach.Mode, row surface.Ref, log *zap.Logger) Result {
	res := Result{Decision: ai.DecisionError}

	if err := r.deps.Extractor.Open(ctx, page, row, mode); err != nil {
		if errors.Is(err, bizreach.ErrNoLink) {
			r.deps.Dumper.Dump(ctx, page, "debug_candidate_error")
		}
		res.Err = fmt.Errorf("opening candidate: %w", err)
		log.Error("skipping candidate", zap.Error(res.Err))
		return res
	}
	res.Opened = true

	res.URL = r.deps.Extractor.Identity(ctx, page)
	log = log.With(zap.String(logger.FieldCandidateURL, res.URL))

	profile, err := r.deps.Extractor.Profile(ctx, page)
	if err != nil {
		res.Err = err
		log.Error("skipping candidate", zap.Error(err))
		return res
	}
	log.Debug("extracted profile",
		zap.Int("chars", utf8.RuneCountInString(profile)),
		zap.String("profile", utils.TruncateForLog(profile, profileLogLength)),
	)

	ev, err := r.deps.Oracle.Evaluate(ctx, profile)
	if err != nil {
		res.Err = err
		log.Error("evaluation failed, skipping candidate", zap.Error(err))
		return res
	}
	res.Evaluation = ev
	res.Decision = ev.Decision()

	log.Info("evaluated candidate",
		zap.String("rank", string(ev.Rank)),
		zap.String("level", string(ev.Level)),
		zap.String("decision", string(res.Decision)),
		zap.String("reason", ev.Reason),
	)

	title, body := scout.Skipped()
	res.Status = scout.StatusSkipped

	if res.Decision == ai.DecisionScout {
		title, body = r.deps.Composer.Title(ev), r.deps.Composer.Body(ev)
		log.Info("composed scout", zap.String("title", title))

		sub := r.deps.Submitter.Submit(ctx, page, mode, scout.Draft{Title: title, Body: body})
		res.Submission = sub
		res.Status = sub.State.Status()
		r.deps.Metrics.Submission(string(mode), string(sub.State))

		if sub.State == scout.StateSent {
			r.deps.Ledger.ScoutSent(ctx, res.URL, ev.ClassLabel(), r.now())
		}
		log.Info("scout finished", zap.String("state", string(sub.State)), zap.String("status", res.Status))
	}

	r.deps.Ledger.Record(ctx, ledger.NewRecord(res.URL, ev, res.Status, title, body, profile, r.now()))
	return res
}

// rejectRankC marks a skipped unrated candidate as rank C on the platform.
// The row is looked up again by index because closing the detail view may
// re-render the list.
func (r *Runner) rejectRankC(ctx context.Context, page surface.Page, index int, log *zap.Logger) bool {
	row, ok, err := r.deps.List.Row(ctx, page, index)
	if err != nil || !ok {
		log.Warn("candidate row gone before rank C", zap.Error(err))
		return false
	}

	control, ok := r.deps.Extractor.RankC(ctx, page, row)
	if !ok {
		log.Warn("rank C control not found for this candidate row")
		return false
	}

	if r.cfg.DryRun {
		log.Info("dry run, skipping rank C click")
		return false
	}

	if err := page.Click(ctx, control); err != nil {
		log.Warn("clicking rank C control", zap.Error(err))
		return false
	}
	log.Info("marked candidate as rank C")

	if err := utils.WaitFor(ctx, r.cfg.Timing.RankCSettle); err != nil {
		log.Debug("rank C settle interrupted", zap.Error(err))
	}
	return true
}
