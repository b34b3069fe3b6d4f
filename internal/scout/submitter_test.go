package scout

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spigell/scout-responder/internal/bizreach"
	"github.com/spigell/scout-responder/internal/surface"
	"github.com/spigell/scout-responder/internal/surface/fake"
	"github.com/spigell/scout-responder/internal/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type scoutFixture struct {
	page  *fake.Page
	modal *fake.Node
	table *fake.Node
	form  *fake.Node
	send  *fake.Node
	// job is added to the table when the search button is clicked.
	job *fake.Node
}

func newScoutFixture(mode bizreach.Mode) *scoutFixture {
	f := &scoutFixture{page: fake.NewPage("https://cr-support.jp/mypage/")}

	f.send = fake.NewNode("send", "a").WithText("プラチナスカウト送信").Hide()
	f.form = fake.NewNode("form", "#jsi_message_form").Hide().Add(
		fake.NewNode("template", "#jsi_message_template_selector"),
		fake.NewNode("subject", "#jsi_message_subject"),
		fake.NewNode("body", "#jsi_message_body"),
		fake.NewNode("confirm", `input[value="内容を確認"]`).OnClickDo(func(*fake.Page) error {
			f.send.Hidden = false
			return nil
		}),
		f.send,
	)
	f.form.Children()[0].Options = []string{"", DefaultTemplateID}

	f.table = fake.NewNode("table", "#jsi_list_table")
	f.job = fake.NewNode("job", jobRowSelector).WithText("PM001 " + DefaultTargetJob + " 公開中").OnClickDo(f.showForm)
	f.modal = fake.NewNode("modal", "#jsiLightbox.ns-modal-scout-job-selector").Hide().Add(
		fake.NewNode("search form", "#jsi_job_search_form").Add(
			fake.NewNode("keyword", `#jsi_job_search_form input[name="kw"]`),
		),
		fake.NewNode("search", ".ns-modal-scout-job-selector-searcher-submit .btnAccept").OnClickDo(func(*fake.Page) error {
			if f.job != nil {
				f.table.Add(f.job)
			}
			return nil
		}),
		f.table,
	)

	trigger := fake.NewNode("trigger", "a.freescoutbutton").WithText("スカウト")
	if mode == bizreach.ModePickup {
		trigger.OnClickDo(func(*fake.Page) error {
			f.modal.Hidden = false
			return nil
		})
	} else {
		trigger.OnClickDo(f.showForm)
	}

	f.page.Root.Add(fake.NewNode("detail", "#jsi_resume_detail").Add(trigger), f.modal, f.form)
	return f
}

func (f *scoutFixture) showForm(*fake.Page) error {
	f.modal.Hidden = true
	f.form.Hidden = false
	return nil
}

func testConfig(dryRun bool) Config {
	cfg := DefaultConfig()
	cfg.DryRun = dryRun
	cfg.Timing = Timing{JobRetry: utils.RetryPolicy{Attempts: 3}}
	return cfg
}

func newTestSubmitter(t *testing.T, cfg Config, logger *zap.Logger) (*Submitter, string) {
	t.Helper()
	dir := t.TempDir()
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewSubmitter(cfg, surface.NewDumper(dir, logger), logger), dir
}

var draft = Draft{Title: "【UX設計を一任】" + DefaultJobSuffix, Body: "body text"}

func TestSubmitUnratedLive(t *testing.T) {
	f := newScoutFixture(bizreach.ModeUnrated)
	s, _ := newTestSubmitter(t, testConfig(false), nil)

	sub := s.Submit(context.Background(), f.page, bizreach.ModeUnrated, draft)

	if sub.State != StateSent || sub.Err != nil {
		t.Fatalf("expected sent, got %s (%v)", sub.State, sub.Err)
	}
	want := []State{StateIdle, StateTriggered, StateFormReady, StateFilled, StateConfirmed, StateSent}
	if !reflect.DeepEqual(sub.History, want) {
		t.Fatalf("unexpected history %v", sub.History)
	}
	if f.page.Count("click", "send") != 1 {
		t.Fatalf("expected exactly one send click")
	}
	if f.page.Count("select", "template") != 1 || f.page.Find("template").Value != DefaultTemplateID {
		t.Fatalf("expected template %s to be selected", DefaultTemplateID)
	}
	if f.page.Find("subject").Value != draft.Title || f.page.Find("body").Value != draft.Body {
		t.Fatalf("expected draft to be filled")
	}
	if f.page.Count("click", "job") != 0 {
		t.Fatalf("unrated flow must not select a job")
	}
}

func TestSubmitPickupDryRunNeverSends(t *testing.T) {
	f := newScoutFixture(bizreach.ModePickup)
	s, _ := newTestSubmitter(t, testConfig(true), nil)

	sub := s.Submit(context.Background(), f.page, bizreach.ModePickup, draft)

	if sub.State != StateDrafted {
		t.Fatalf("expected drafted, got %s (%v)", sub.State, sub.Err)
	}
	want := []State{StateIdle, StateTriggered, StateJobSelecting, StateFormReady, StateFilled, StateConfirmed, StateDrafted}
	if !reflect.DeepEqual(sub.History, want) {
		t.Fatalf("unexpected history %v", sub.History)
	}
	if f.page.Count("click", "send") != 0 {
		t.Fatalf("dry run must not click send")
	}
	if sub.Job != "title" {
		t.Fatalf("expected job matched by title, got %q", sub.Job)
	}
	if f.page.Find("keyword").Value != DefaultTargetJob {
		t.Fatalf("expected job search keyword to be filled")
	}
}

func TestSubmitJobMatchFallbacks(t *testing.T) {
	cases := []struct {
		name string
		job  *fake.Node
		want string
	}{
		{
			name: "data attribute",
			job: fake.NewNode("job", `#jsi_list_table tr[data-position="`+DefaultTargetJob+`"]`).
				WithAttr("data-position", DefaultTargetJob),
			want: "data-position",
		},
		{
			name: "partial title",
			job:  fake.NewNode("job", jobRowSelector).WithText("【別キーワード】サプライチェーンの未来を創るPdM"),
			want: "partial title",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newScoutFixture(bizreach.ModePickup)
			f.job = tc.job.OnClickDo(f.showForm)
			s, _ := newTestSubmitter(t, testConfig(true), nil)

			sub := s.Submit(context.Background(), f.page, bizreach.ModePickup, draft)
			if sub.State != StateDrafted {
				t.Fatalf("expected drafted, got %s (%v)", sub.State, sub.Err)
			}
			if sub.Job != tc.want {
				t.Fatalf("expected match by %s, got %q", tc.want, sub.Job)
			}
		})
	}
}

func TestSubmitJobSelectionExhausted(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newScoutFixture(bizreach.ModePickup)
	f.job = nil
	f.page.HTML = `<table id="jsi_list_table"><tr class="jsc_job_list"><td>PM002</td><td>別の求人</td></tr></table>`
	s, dir := newTestSubmitter(t, testConfig(false), zap.New(core))

	sub := s.Submit(context.Background(), f.page, bizreach.ModePickup, draft)

	if sub.State != StateFailed || sub.Err == nil {
		t.Fatalf("expected failure, got %s (%v)", sub.State, sub.Err)
	}
	if !errors.Is(sub.Err, utils.ErrRetriesExhausted) {
		t.Fatalf("expected exhausted retries, got %v", sub.Err)
	}
	if sub.Dump != filepath.Join(dir, "debug_job_selection.html") {
		t.Fatalf("unexpected dump path %q", sub.Dump)
	}
	if _, err := os.Stat(sub.Dump); err != nil {
		t.Fatalf("expected dump file: %v", err)
	}
	if f.page.Count("click", "send") != 0 {
		t.Fatalf("failed flow must not send")
	}

	entries := logs.FilterMessage("available job rows").All()
	if len(entries) != 1 {
		t.Fatalf("expected available job rows to be logged")
	}
}

func TestSubmitAlreadyScouted(t *testing.T) {
	page := fake.NewPage("https://cr-support.jp/mypage/")
	page.Root.Add(fake.NewNode("detail", "#jsi_resume_detail").WithText("profile"))
	s, dir := newTestSubmitter(t, testConfig(false), nil)

	sub := s.Submit(context.Background(), page, bizreach.ModeUnrated, draft)

	if sub.State != StateAlreadyScouted || sub.Err != nil {
		t.Fatalf("expected already scouted, got %s (%v)", sub.State, sub.Err)
	}
	if !reflect.DeepEqual(sub.History, []State{StateIdle, StateAlreadyScouted}) {
		t.Fatalf("unexpected history %v", sub.History)
	}
	if sub.Dump != filepath.Join(dir, "debug_missing_scout_button.html") {
		t.Fatalf("unexpected dump %q", sub.Dump)
	}
	for _, a := range page.Actions {
		if a.Op == "click" || a.Op == "script-click" {
			t.Fatalf("expected no clicks, got %+v", page.Actions)
		}
	}
}

func TestSubmitTriggerFallsBackToScriptClick(t *testing.T) {
	f := newScoutFixture(bizreach.ModeUnrated)
	f.page.Find("trigger").ClickErr = errors.New("element intercepted by overlay")
	s, _ := newTestSubmitter(t, testConfig(false), nil)

	sub := s.Submit(context.Background(), f.page, bizreach.ModeUnrated, draft)

	if sub.State != StateSent {
		t.Fatalf("expected sent, got %s (%v)", sub.State, sub.Err)
	}
	if f.page.Count("script-click", "trigger") != 1 {
		t.Fatalf("expected script click fallback, got %+v", f.page.Actions)
	}
}

func TestSubmitSkipsHiddenHigherRankedControls(t *testing.T) {
	f := newScoutFixture(bizreach.ModeUnrated)
	f.page.Find("trigger").Hidden = true
	f.page.Find("detail").Add(fake.NewNode("primary trigger", "a.btnPrimary").WithText("スカウト送信").OnClickDo(f.showForm))
	f.page.Find("confirm").Hidden = true
	f.form.Add(fake.NewNode("confirm button", "button").WithText("内容を確認").OnClickDo(func(*fake.Page) error {
		f.send.Hidden = false
		return nil
	}))
	s, _ := newTestSubmitter(t, testConfig(false), nil)

	sub := s.Submit(context.Background(), f.page, bizreach.ModeUnrated, draft)

	if sub.State != StateSent || sub.Err != nil {
		t.Fatalf("expected sent, got %s (%v) history %v", sub.State, sub.Err, sub.History)
	}
	if f.page.Count("click", "primary trigger") != 1 || f.page.Count("click", "trigger") != 0 {
		t.Fatalf("expected the visible fallback trigger to be clicked, got %+v", f.page.Actions)
	}
	if f.page.Count("click", "confirm button") != 1 || f.page.Count("click", "confirm") != 0 {
		t.Fatalf("expected the visible confirm button to be clicked, got %+v", f.page.Actions)
	}
}

func TestSubmitMissingTemplateWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newScoutFixture(bizreach.ModeUnrated)
	f.page.Find("template").Remove()
	s, _ := newTestSubmitter(t, testConfig(true), zap.New(core))

	sub := s.Submit(context.Background(), f.page, bizreach.ModeUnrated, draft)

	if sub.State != StateDrafted {
		t.Fatalf("expected drafted, got %s (%v)", sub.State, sub.Err)
	}
	if logs.FilterMessage("template selector not found").Len() != 1 {
		t.Fatalf("expected template warning")
	}
}

func TestSubmitFormTimeoutFails(t *testing.T) {
	f := newScoutFixture(bizreach.ModeUnrated)
	f.page.Find("trigger").OnClick = nil
	s, _ := newTestSubmitter(t, testConfig(false), nil)

	sub := s.Submit(context.Background(), f.page, bizreach.ModeUnrated, draft)

	if sub.State != StateFailed {
		t.Fatalf("expected failure, got %s", sub.State)
	}
	if !reflect.DeepEqual(sub.History, []State{StateIdle, StateTriggered, StateFailed}) {
		t.Fatalf("unexpected history %v", sub.History)
	}
	if !errors.Is(sub.Err, surface.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", sub.Err)
	}
}

func TestTransitions(t *testing.T) {
	if !CanTransition(StateTriggered, StateJobSelecting) || !CanTransition(StateTriggered, StateFormReady) {
		t.Fatalf("expected both branches from triggered")
	}
	if CanTransition(StateSent, StateFailed) {
		t.Fatalf("terminal states must not transition")
	}
	if CanTransition(StateIdle, StateSent) {
		t.Fatalf("idle must not jump to sent")
	}
	for _, s := range []State{StateSent, StateDrafted, StateFailed, StateAlreadyScouted} {
		if !s.Terminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	if StateSent.Status() != StatusSent || StateDrafted.Status() != StatusDrafted ||
		StateAlreadyScouted.Status() != StatusAlreadyScouted || StateFailed.Status() != StatusFailed {
		t.Fatalf("unexpected status labels")
	}
}
