package scout

import (
	"context"
	"fmt"
	"time"

	"github.com/spigell/scout-responder/internal/bizreach"
	"github.com/spigell/scout-responder/internal/surface"
	"github.com/spigell/scout-responder/internal/utils"
	"go.uber.org/zap"
)

const DefaultTemplateID = "1225955"

var (
	Trigger          = surface.CSS("scout trigger", "a.freescoutbutton").Or(surface.Strategy{CSS: "a.btnPrimary", Text: "スカウト送信"})
	Subject          = surface.CSS("message subject", "#jsi_message_subject")
	Body             = surface.CSS("message body", "#jsi_message_body")
	TemplateSelector = surface.CSS("message template", "#jsi_message_template_selector")

	Confirm = surface.Locator{Name: "confirm", Strategies: []surface.Strategy{
		{CSS: `input[value="内容を確認"]`},
		{CSS: "button", Text: "内容を確認"},
		{CSS: "a", Text: "内容を確認"},
	}}
	Send = surface.Locator{Name: "send", Strategies: []surface.Strategy{
		{CSS: "a", Text: "プラチナスカウト送信"},
		{CSS: "button", Text: "プラチナスカウト送信"},
		{CSS: `input[value*="送信"]`},
	}}
)

// Timing bounds the waits of the submission flow.
type Timing struct {
	JobModalTimeout time.Duration     `mapstructure:"job-modal-timeout"`
	JobSearchSettle time.Duration     `mapstructure:"job-search-settle"`
	JobRetry        utils.RetryPolicy `mapstructure:"job-retry"`
	FormTimeout     time.Duration     `mapstructure:"form-timeout"`
	TemplateSettle  time.Duration     `mapstructure:"template-settle"`
	SendTimeout     time.Duration     `mapstructure:"send-timeout"`
	SubmitSettle    time.Duration     `mapstructure:"submit-settle"`
}

func DefaultTiming() Timing {
	return Timing{
		JobModalTimeout: 10 * time.Second,
		JobSearchSettle: 2 * time.Second,
		JobRetry:        utils.RetryPolicy{Attempts: 10, Delay: time.Second},
		FormTimeout:     10 * time.Second,
		TemplateSettle:  time.Second,
		SendTimeout:     10 * time.Second,
		SubmitSettle:    3 * time.Second,
	}
}

// Config parameterizes the submission flow.
type Config struct {
	TargetJob  string `mapstructure:"target-job" validate:"required"`
	JobPartial string `mapstructure:"job-partial"`
	TemplateID string `mapstructure:"template-id"`
	DryRun     bool   `mapstructure:"-"`
	Timing     Timing `mapstructure:"timing"`
}

func DefaultConfig() Config {
	return Config{
		TargetJob:  DefaultTargetJob,
		JobPartial: DefaultJobPartial,
		TemplateID: DefaultTemplateID,
		Timing:     DefaultTiming(),
	}
}

// Submitter drives the scout form of an open candidate detail view.
type Submitter struct {
	cfg    Config
	dumper *surface.Dumper
	logger *zap.Logger
}

func NewSubmitter(cfg Config, dumper *surface.Dumper, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{cfg: cfg, dumper: dumper, logger: logger}
}

// Submit runs the flow to a terminal state. Failures are reported in the
// returned Submission and never returned as errors: the caller only has to
// look at State.
func (s *Submitter) Submit(ctx context.Context, page surface.Page, mode bizreach.Mode, draft Draft) *Submission {
	sub := newSubmission()

	trigger, ok := surface.FindVisible(ctx, page, surface.Ref{}, Trigger, 0)
	if !ok {
		s.logger.Info("scout button not found, treating candidate as already scouted")
		sub.Dump = s.dumper.Dump(ctx, page, "debug_missing_scout_button")
		sub.advance(StateAlreadyScouted)
		return sub
	}

	if err := s.clickTrigger(ctx, page, trigger); err != nil {
		s.failed(ctx, page, sub, "debug_scout_form_error", err)
		return sub
	}
	sub.advance(StateTriggered)

	if mode == bizreach.ModePickup {
		sub.advance(StateJobSelecting)
		job, err := s.selectJob(ctx, page)
		if err != nil {
			s.failed(ctx, page, sub, "debug_job_selection", err)
			return sub
		}
		sub.Job = job
	}

	if _, err := page.WaitVisible(ctx, surface.Ref{}, Subject, s.cfg.Timing.FormTimeout); err != nil {
		s.failed(ctx, page, sub, "debug_scout_form_error", fmt.Errorf("waiting for message form: %w", err))
		return sub
	}
	sub.advance(StateFormReady)

	if err := s.fill(ctx, page, draft); err != nil {
		s.failed(ctx, page, sub, "debug_scout_form_error", err)
		return sub
	}
	sub.advance(StateFilled)

	confirm, ok := surface.FindVisible(ctx, page, surface.Ref{}, Confirm, 0)
	err := fmt.Errorf("%s: %w", Confirm.Name, surface.ErrNotFound)
	if ok {
		err = page.Click(ctx, confirm)
	}
	if err != nil {
		s.failed(ctx, page, sub, "debug_scout_form_error", fmt.Errorf("confirming message: %w", err))
		return sub
	}
	sub.advance(StateConfirmed)

	send, err := page.WaitVisible(ctx, surface.Ref{}, Send, s.cfg.Timing.SendTimeout)
	if err != nil {
		s.failed(ctx, page, sub, "debug_scout_form_error", fmt.Errorf("waiting for send button: %w", err))
		return sub
	}

	if s.cfg.DryRun {
		s.logger.Info("dry run, skipping send")
		sub.advance(StateDrafted)
		return sub
	}

	if err := page.Click(ctx, send); err != nil {
		s.failed(ctx, page, sub, "debug_scout_form_error", fmt.Errorf("clicking send: %w", err))
		return sub
	}
	if err := utils.WaitFor(ctx, s.cfg.Timing.SubmitSettle); err != nil {
		s.logger.Debug("submit settle interrupted", zap.Error(err))
	}

	s.logger.Info("scout sent")
	sub.advance(StateSent)
	return sub
}

func (s *Submitter) clickTrigger(ctx context.Context, page surface.Page, trigger surface.Ref) error {
	err := page.Click(ctx, trigger)
	if err == nil {
		return nil
	}

	s.logger.Info("standard click on scout button failed, trying script click", zap.Error(err))
	if err := page.ClickScript(ctx, trigger); err != nil {
		return fmt.Errorf("clicking scout button: %w", err)
	}
	return nil
}

func (s *Submitter) fill(ctx context.Context, page surface.Page, draft Draft) error {
	if ref, ok := surface.FindVisible(ctx, page, surface.Ref{}, TemplateSelector, 0); ok && s.cfg.TemplateID != "" {
		if err := page.SelectOption(ctx, ref, s.cfg.TemplateID); err != nil {
			s.logger.Warn("selecting message template", zap.String("template", s.cfg.TemplateID), zap.Error(err))
		} else if err := utils.WaitFor(ctx, s.cfg.Timing.TemplateSettle); err != nil {
			return err
		}
	} else {
		s.logger.Warn("template selector not found")
	}

	for _, field := range []struct {
		loc   surface.Locator
		value string
	}{
		{Subject, draft.Title},
		{Body, draft.Body},
	} {
		ref, err := page.Locate(ctx, surface.Ref{}, field.loc)
		if err != nil {
			return fmt.Errorf("locating %s: %w", field.loc.Name, err)
		}
		if err := page.Fill(ctx, ref, field.value); err != nil {
			return fmt.Errorf("filling %s: %w", field.loc.Name, err)
		}
	}
	return nil
}

func (s *Submitter) failed(ctx context.Context, page surface.Page, sub *Submission, dump string, err error) {
	s.logger.Error("scout submission failed",
		zap.String("state", string(sub.State)),
		zap.Error(err),
	)
	sub.Dump = s.dumper.Dump(ctx, page, dump)
	sub.fail(err)
}
