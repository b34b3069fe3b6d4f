package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spigell/scout-responder/internal/ai"
	"github.com/spigell/scout-responder/internal/bizreach"
	"github.com/spigell/scout-responder/internal/ledger"
	"github.com/spigell/scout-responder/internal/metrics"
	"github.com/spigell/scout-responder/internal/scout"
	"github.com/spigell/scout-responder/internal/surface"
	"github.com/spigell/scout-responder/internal/surface/fake"
	"github.com/spigell/scout-responder/internal/utils"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// row describes one candidate of a fake list and the failure it injects.
type row struct {
	id         string
	eval       *ai.Evaluation
	noLink     bool
	noDetail   bool
	noTrigger  bool
	triggerErr bool
	noRankC    bool
}

func evaluation(rank ai.Rank) *ai.Evaluation {
	ev := &ai.Evaluation{Level: ai.LevelMiddle, Rank: rank, Reason: "reason " + string(rank), InterestLevel: ai.InterestB}
	if ai.Decide(rank) == ai.DecisionScout {
		ev.ScoutTitle = "UX設計を一任"
		ev.TitleKeyword = "UX"
		ev.ScoutMessage = "ご経験に惹かれました。"
	}
	return ev
}

func rowsOf(prefix string, ranks ...ai.Rank) []row {
	rows := make([]row, len(ranks))
	for i, r := range ranks {
		rows[i] = row{id: fmt.Sprintf("%s%d", prefix, i), eval: evaluation(r)}
	}
	return rows
}

// site is a fake candidate list page with a shared detail view, job picker
// and message form.
type site struct {
	mode bizreach.Mode
	page *fake.Page
	rows []row

	list    *fake.Node
	detail  *fake.Node
	copyURL *fake.Node
	trigger *fake.Node
	modal   *fake.Node
	form    *fake.Node
	send    *fake.Node

	current int
	opens   int
	sent    []string

	rerenderOnClose bool
	onClose         func(s *site)
}

func newSite(mode bizreach.Mode, rows ...row) *site {
	s := &site{mode: mode, rows: rows, page: fake.NewPage("about:blank")}

	s.list = fake.NewNode("list", "#jsi_resume_block")
	for i, r := range rows {
		item := fake.NewNode(fmt.Sprintf("row-%d", i), "#jsi_resume_block > li.md-carditem", "#jsi_resume_block > li").WithText(r.id)
		if !r.noLink {
			item.Add(fake.NewNode("link", "a.name", ".linkPseudo").WithText(r.id).OnClickDo(func(*fake.Page) error {
				return s.open(i)
			}))
		}
		if !r.noRankC {
			item.Add(fake.NewNode(fmt.Sprintf("rankc-%d", i), "label").WithText("C評価"))
		}
		s.list.Add(item)
	}

	s.copyURL = fake.NewNode("copy url", "#jsi_lap_url_copy")
	s.trigger = fake.NewNode("trigger", "a.freescoutbutton").WithText("スカウト").OnClickDo(s.triggered)
	s.detail = fake.NewNode("detail", "#jsi_resume_detail").Hide().Add(
		s.copyURL,
		s.trigger,
		fake.NewNode("close", "#jsi_btnClose").OnClickDo(s.close),
	)

	s.send = fake.NewNode("send", "a").WithText("プラチナスカウト送信").Hide().OnClickDo(func(*fake.Page) error {
		s.sent = append(s.sent, s.rows[s.current].id)
		return nil
	})
	s.form = fake.NewNode("form", "#jsi_message_form").Hide().Add(
		fake.NewNode("template", "#jsi_message_template_selector"),
		fake.NewNode("subject", "#jsi_message_subject"),
		fake.NewNode("body", "#jsi_message_body"),
		fake.NewNode("confirm", `input[value="内容を確認"]`).OnClickDo(func(*fake.Page) error {
			s.send.Hidden = false
			return nil
		}),
		s.send,
	)

	s.modal = fake.NewNode("modal", "#jsiLightbox.ns-modal-scout-job-selector").Hide().Add(
		fake.NewNode("jobs", "#jsi_list_table").Add(
			fake.NewNode("job", "#jsi_list_table tr.jsc_job_list").WithText(scout.DefaultTargetJob).OnClickDo(func(*fake.Page) error {
				s.modal.Hidden = true
				s.form.Hidden = false
				return nil
			}),
		),
	)

	s.page.Root.Add(s.list, s.detail, s.modal, s.form)
	return s
}

func (s *site) url(i int) string {
	return "https://cr-support.jp/resume/" + s.rows[i].id
}

func (s *site) open(i int) error {
	if s.rows[i].noDetail {
		return nil
	}
	s.current = i
	s.opens++
	s.detail.Hidden = false
	s.detail.Text = "profile " + s.rows[i].id
	s.copyURL.WithAttr("data-clipboard-text", s.url(i))
	s.trigger.Hidden = s.rows[i].noTrigger
	return nil
}

func (s *site) triggered(*fake.Page) error {
	if s.rows[s.current].triggerErr {
		return errors.New("click intercepted by overlay")
	}
	if s.mode == bizreach.ModePickup {
		s.modal.Hidden = false
	} else {
		s.form.Hidden = false
	}
	return nil
}

func (s *site) close(p *fake.Page) error {
	s.detail.Hidden = true
	s.modal.Hidden = true
	s.form.Hidden = true
	s.send.Hidden = true
	if s.onClose != nil {
		s.onClose(s)
	}
	if s.rerenderOnClose {
		p.Rerender()
	}
	return nil
}

func (s *site) closes() int { return s.page.Count("click", "close") }

// oracle answers from the rows of every site, keyed by the profile id.
type oracle struct {
	rows  map[string]row
	calls []string
}

func (o *oracle) Evaluate(_ context.Context, profile string) (*ai.Evaluation, error) {
	first, _, _ := strings.Cut(profile, "\n")
	id := strings.TrimPrefix(first, "profile ")
	o.calls = append(o.calls, id)

	r, ok := o.rows[id]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", first)
	}
	if r.eval == nil {
		return nil, &ai.OracleError{Provider: "fake", Err: errors.New("quota exceeded")}
	}
	ev := *r.eval
	return &ev, nil
}

type sink struct {
	records []ledger.Record
	sent    []ledger.ScoutSent
	fail    bool
}

func (s *sink) Post(_ context.Context, event any) error {
	switch e := event.(type) {
	case ledger.Record:
		s.records = append(s.records, e)
	case ledger.ScoutSent:
		s.sent = append(s.sent, e)
	}
	if s.fail {
		return errors.New("sink unavailable")
	}
	return nil
}

func (s *sink) statuses() []string {
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.Status
	}
	return out
}

type harness struct {
	runner  *Runner
	browser *fake.Browser
	oracle  *oracle
	sink    *sink
	metrics *metrics.Run
	dir     string
}

func newHarness(t *testing.T, dryRun bool, logger *zap.Logger, sites ...*site) *harness {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &harness{
		oracle:  &oracle{rows: map[string]row{}},
		sink:    &sink{},
		metrics: metrics.NewRun(),
		dir:     t.TempDir(),
	}
	for _, s := range sites {
		for _, r := range s.rows {
			h.oracle.rows[r.id] = r
		}
	}
	h.browser = &fake.Browser{Setup: func(n int) *fake.Page {
		if n < len(sites) {
			return sites[n].page
		}
		return nil
	}}

	platform := bizreach.DefaultSite()
	dumper := surface.NewDumper(h.dir, logger)

	scoutCfg := scout.DefaultConfig()
	scoutCfg.DryRun = dryRun
	scoutCfg.Timing = scout.Timing{JobRetry: utils.RetryPolicy{Attempts: 2}}

	runner, err := New(Config{Site: platform, DryRun: dryRun}, Deps{
		Browser:   h.browser,
		Gate:      bizreach.NewGate(platform, bizreach.Timing{}, logger),
		List:      bizreach.NewList(bizreach.Timing{}, logger),
		Extractor: bizreach.NewExtractor(bizreach.Timing{}, logger),
		Oracle:    h.oracle,
		Composer:  scout.NewComposer(),
		Submitter: scout.NewSubmitter(scoutCfg, dumper, logger),
		Ledger:    ledger.New(h.sink, nil, h.metrics, logger),
		Metrics:   h.metrics,
		Dumper:    dumper,
		Logger:    logger,
	})
	require.NoError(t, err)
	runner.now = func() time.Time { return time.Date(2025, 3, 4, 10, 0, 0, 0, ledger.JST) }

	h.runner = runner
	return h
}
