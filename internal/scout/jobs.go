package scout

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spigell/scout-responder/internal/surface"
	"github.com/spigell/scout-responder/internal/utils"
	"go.uber.org/zap"
)

const (
	DefaultTargetJob  = "【事業戦略を牽引】サプライチェーンの未来を創るプロダクトマネージャー募集"
	DefaultJobPartial = "サプライチェーンの未来"

	jobRowSelector   = "#jsi_list_table tr.jsc_job_list"
	jobTableRowsPath = "#jsi_list_table tr"
)

var (
	JobModal        = surface.CSS("job selector", "#jsiLightbox.ns-modal-scout-job-selector")
	JobSearchForm   = surface.CSS("job search form", "#jsi_job_search_form")
	JobSearchInput  = surface.CSS("job search keyword", `#jsi_job_search_form input[name="kw"]`)
	JobSearchButton = surface.CSS("job search button", ".ns-modal-scout-job-selector-searcher-submit .btnAccept")
)

type jobMatcher struct {
	label string
	loc   surface.Locator
}

// jobMatchers are tried in order on every poll: full title, data-position
// attribute, then partial title.
func jobMatchers(target, partial string) []jobMatcher {
	matchers := []jobMatcher{
		{label: "title", loc: surface.Locator{Name: "job row", Strategies: []surface.Strategy{{CSS: jobRowSelector, Text: target}}}},
		{label: "data-position", loc: surface.CSS("job row", fmt.Sprintf(`#jsi_list_table tr[data-position=%q]`, target))},
	}
	if partial != "" {
		matchers = append(matchers, jobMatcher{
			label: "partial title",
			loc:   surface.Locator{Name: "job row", Strategies: []surface.Strategy{{CSS: jobRowSelector, Text: partial}}},
		})
	}
	return matchers
}

// selectJob drives the job picker and returns the matcher label that found
// the target row.
func (s *Submitter) selectJob(ctx context.Context, page surface.Page) (string, error) {
	if _, err := page.WaitVisible(ctx, surface.Ref{}, JobModal, s.cfg.Timing.JobModalTimeout); err != nil {
		return "", fmt.Errorf("waiting for job selector: %w", err)
	}

	if _, ok := surface.FindVisible(ctx, page, surface.Ref{}, JobSearchForm, 0); ok {
		s.logger.Info("searching for job", zap.String("job", s.cfg.TargetJob))
		if err := s.searchJob(ctx, page); err != nil {
			return "", err
		}
	} else {
		s.logger.Info("job search form not found, looking in the current list")
	}

	var (
		row     surface.Ref
		matched string
	)
	matchers := jobMatchers(s.cfg.TargetJob, s.cfg.JobPartial)
	err := utils.Retry(ctx, s.cfg.Timing.JobRetry, func(attempt int) (bool, error) {
		for _, m := range matchers {
			if ref, ok := surface.FindVisible(ctx, page, surface.Ref{}, m.loc, 0); ok {
				row, matched = ref, m.label
				return true, nil
			}
		}
		s.logger.Debug("job row not found yet", zap.Int("attempt", attempt))
		return false, nil
	})
	if err != nil {
		s.logAvailableJobs(ctx, page)
		return "", fmt.Errorf("target job row not found: %w", err)
	}

	s.logger.Info("target job found", zap.String("matched_by", matched))
	if err := page.Click(ctx, row); err != nil {
		return "", fmt.Errorf("clicking job row: %w", err)
	}
	return matched, nil
}

func (s *Submitter) searchJob(ctx context.Context, page surface.Page) error {
	input, err := page.Locate(ctx, surface.Ref{}, JobSearchInput)
	if err != nil {
		return fmt.Errorf("locating job keyword input: %w", err)
	}
	if err := page.Fill(ctx, input, s.cfg.TargetJob); err != nil {
		return fmt.Errorf("filling job keyword: %w", err)
	}

	button, err := page.Locate(ctx, surface.Ref{}, JobSearchButton)
	if err != nil {
		return fmt.Errorf("locating job search button: %w", err)
	}
	if err := page.Click(ctx, button); err != nil {
		return fmt.Errorf("clicking job search button: %w", err)
	}

	return utils.WaitFor(ctx, s.cfg.Timing.JobSearchSettle)
}

func (s *Submitter) logAvailableJobs(ctx context.Context, page surface.Page) {
	html, err := page.Content(ctx)
	if err != nil {
		s.logger.Debug("reading page for job list", zap.Error(err))
		return
	}
	jobs, err := AvailableJobs(html)
	if err != nil {
		s.logger.Debug("parsing job list", zap.Error(err))
		return
	}
	s.logger.Warn("available job rows", zap.Strings("rows", jobs))
}

// AvailableJobs extracts the whitespace-collapsed text of every row of the
// job table in html.
func AvailableJobs(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var rows []string
	doc.Find(jobTableRowsPath).Each(func(_ int, sel *goquery.Selection) {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text == "" {
			if pos, ok := sel.Attr("data-position"); ok {
				text = pos
			}
		}
		if text != "" {
			rows = append(rows, text)
		}
	})
	return rows, nil
}
