// Package pipeline drives candidates through open, evaluate, submit, record
// and close, one at a time, on a single page per mode.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/scout-responder/internal/ai"
	"github.com/spigell/scout-responder/internal/bizreach"
	"github.com/spigell/scout-responder/internal/ledger"
	"github.com/spigell/scout-responder/internal/logger"
	"github.com/spigell/scout-responder/internal/metrics"
	"github.com/spigell/scout-responder/internal/scout"
	"github.com/spigell/scout-responder/internal/surface"
	"github.com/spigell/scout-responder/internal/utils"
	"go.uber.org/zap"
)

// Timing holds the settle delays between pipeline steps.
type Timing struct {
	PostCandidate time.Duration `mapstructure:"post-candidate"`
	RankCSettle   time.Duration `mapstructure:"rank-c-settle"`
	ModeSwitch    time.Duration `mapstructure:"mode-switch"`
	Final         time.Duration `mapstructure:"final"`
}

func DefaultTiming() Timing {
	return Timing{
		PostCandidate: time.Second,
		RankCSettle:   time.Second,
		ModeSwitch:    5 * time.Second,
		Final:         2 * time.Second,
	}
}

type Config struct {
	Site   bizreach.Site
	Timing Timing
	DryRun bool
}

// Deps aggregates the components shared by every mode run. Metrics and
// Dumper may be nil.
type Deps struct {
	Browser   surface.Browser
	Gate      *bizreach.Gate
	List      *bizreach.List
	Extractor *bizreach.Extractor
	Oracle    ai.Oracle
	Composer  *scout.Composer
	Submitter *scout.Submitter
	Ledger    *ledger.Ledger
	Metrics   *metrics.Run
	Dumper    *surface.Dumper
	Logger    *zap.Logger
}

func (d Deps) validate() error {
	var missing []string
	for _, dep := range []struct {
		name string
		ok   bool
	}{
		{"browser", d.Browser != nil},
		{"gate", d.Gate != nil},
		{"list", d.List != nil},
		{"extractor", d.Extractor != nil},
		{"oracle", d.Oracle != nil},
		{"composer", d.Composer != nil},
		{"submitter", d.Submitter != nil},
		{"ledger", d.Ledger != nil},
	} {
		if !dep.ok {
			missing = append(missing, dep.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing pipeline dependencies: %s", strings.Join(missing, ", "))
	}
	return nil
}

type Runner struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

func New(cfg Config, deps Deps) (*Runner, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, deps: deps, logger: deps.Logger, now: time.Now}, nil
}

// Run executes mode. Each mode gets a fresh page from the browser. The
// returned error is non-nil only when the run cannot go on at all, such as
// an invalid session; mode failures are reported in the Report.
func (r *Runner) Run(ctx context.Context, mode bizreach.Mode) (*Report, error) {
	report := &Report{}

	var err error
	switch mode {
	case bizreach.ModePickup, bizreach.ModeUnrated:
		err = r.runOnNewPage(ctx, report, mode, "error_dump")
	case bizreach.ModeAll:
		err = r.runAll(ctx, report)
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	for _, mr := range report.Modes {
		fields := []zap.Field{
			zap.String(logger.FieldMode, string(mr.Mode)),
			zap.Int("scout", mr.Count(ai.DecisionScout)),
			zap.Int("skip", mr.Count(ai.DecisionSkip)),
			zap.Duration("took", mr.Duration),
		}
		if mr.Err != nil {
			fields = append(fields, zap.Error(mr.Err))
		}
		r.logger.Info(mr.Summary(), fields...)
	}

	if waitErr := utils.WaitFor(ctx, r.cfg.Timing.Final); waitErr != nil {
		r.logger.Debug("final settle interrupted", zap.Error(waitErr))
	}
	return report, err
}

// runAll runs pickup then unrated on separate pages. A pickup failure is
// logged and unrated still runs; only an invalid session stops both.
func (r *Runner) runAll(ctx context.Context, report *Report) error {
	r.logger.Info("starting pickup and unrated modes")

	if err := r.runOnNewPage(ctx, report, bizreach.ModePickup, "error_dump"); err != nil {
		return err
	}
	if mr := report.Mode(bizreach.ModePickup); mr != nil && mr.Err != nil {
		r.logger.Info("continuing with unrated mode after pickup failure")
	}

	if err := utils.WaitFor(ctx, r.cfg.Timing.ModeSwitch); err != nil {
		return err
	}

	return r.runOnNewPage(ctx, report, bizreach.ModeUnrated, "unrated_error_dump")
}

// runOnNewPage returns only errors that end the whole run: an invalid
// session or a browser that cannot open pages. Other mode errors are
// dumped and left in the mode report.
func (r *Runner) runOnNewPage(ctx context.Context, report *Report, mode bizreach.Mode, dumpName string) error {
	page, err := r.deps.Browser.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("opening page for %s mode: %w", mode, err)
	}
	defer func() {
		if err := page.Close(ctx); err != nil {
			r.logger.Warn("closing page", zap.String(logger.FieldMode, string(mode)), zap.Error(err))
		}
	}()

	mr := r.runMode(ctx, page, mode)
	report.Modes = append(report.Modes, mr)

	switch {
	case mr.Err == nil:
		return nil
	case errors.Is(mr.Err, bizreach.ErrSessionInvalid):
		return mr.Err
	default:
		r.logger.Error("mode stopped", zap.String(logger.FieldMode, string(mode)), zap.Error(mr.Err))
		r.deps.Dumper.Dump(ctx, page, dumpName)
		return nil
	}
}

func (r *Runner) runMode(ctx context.Context, page surface.Page, mode bizreach.Mode) *ModeReport {
	start := r.now()
	mr := &ModeReport{Mode: mode}
	defer func() {
		mr.Duration = r.now().Sub(start)
		r.deps.Metrics.ModeDuration(string(mode), mr.Duration)
	}()

	modeLog := r.logger.With(zap.String(logger.FieldMode, string(mode)))
	url := r.cfg.Site.ListURL(mode)
	modeLog.Info("opening candidate list", zap.String("url", url))

	if err := page.Navigate(ctx, url); err != nil {
		mr.Err = fmt.Errorf("opening %s list: %w", mode, err)
		return mr
	}
	if mode == bizreach.ModeUnrated && r.cfg.DryRun {
		r.deps.Dumper.Dump(ctx, page, "unrated_search_start")
	}

	if err := r.deps.Gate.Ensure(ctx, page); err != nil {
		mr.Err = err
		return mr
	}

	found, err := r.deps.List.Locate(ctx, page, mode)
	if err != nil {
		mr.Err = err
		return mr
	}
	mr.ListFound = found
	if !found {
		if mode != bizreach.ModeUnrated {
			modeLog.Info("no candidate list, nothing to do")
			return mr
		}
		modeLog.Warn("unrated list not visible, looking for rows anyway")
		r.deps.Dumper.Dump(ctx, page, "debug_unrated_no_list")
	}

	rows, err := r.deps.List.Rows(ctx, page)
	if err != nil {
		mr.Err = err
		return mr
	}
	mr.Total = len(rows)
	modeLog.Info("found candidates", zap.Int("count", mr.Total))

	for i := 0; i < mr.Total; i++ {
		if err := ctx.Err(); err != nil {
			mr.Err = err
			return mr
		}

		row, ok, err := r.deps.List.Row(ctx, page, i)
		if err != nil {
			mr.Err = err
			return mr
		}
		if !ok {
			modeLog.Info("candidate list shrank, stopping", zap.Int("index", i))
			break
		}

		candidateLog := logger.WithCandidate(r.logger, string(mode), i)
		candidateLog.Info(fmt.Sprintf("processing candidate %d/%d", i+1, mr.Total))

		res := r.processCandidate(ctx, page, mode, row, candidateLog)
		res.Index = i

		if mode == bizreach.ModeUnrated && res.Decision == ai.DecisionSkip && res.Err == nil {
			res.RankC = r.rejectRankC(ctx, page, i, candidateLog)
		}

		r.deps.Metrics.Candidate(string(mode), outcome(res))
		mr.Results = append(mr.Results, res)
	}

	return mr
}

func outcome(res Result) string {
	if res.Err != nil {
		return "error"
	}
	switch res.Decision {
	case ai.DecisionScout:
		return "scout"
	case ai.DecisionSkip:
		return "skip"
	default:
		return "error"
	}
}
