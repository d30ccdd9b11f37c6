// Package run orchestrates one agency report: fetch or load forum data, filter
// it, synthesize the report and store it.
package run

import (
	"context"
	"fmt"
	"strings"
	"time"

	"report_worker/core/domain"
	"report_worker/core/port/in"
	"report_worker/core/port/out"
	"report_worker/pkg/apperr"
	"report_worker/pkg/metrics"

	"github.com/rs/zerolog"
)

const DefaultLimit = 1000

// Stage names recorded in Deps.Latency.
const (
	StageCollect    = "collect"
	StageFilter     = "filter"
	StageSynthesize = "synthesize"
	StageRun        = "run"
)

type Config struct {
	Channels []string
	Limit    int
	Profiles map[string]domain.AgencyProfile // keyed by agency name
}

type Deps struct {
	Fetcher     out.ForumFetcher
	Artifacts   out.ArtifactStore
	Reports     out.ReportRepository // nil disables storage
	Metadata    in.AgencyMetadata
	Filter      in.FilterService
	Synthesizer in.ReportSynthesizer
	Latency     *metrics.LatencyRegistry // optional stage timings
}

type Service struct {
	deps Deps
	cfg  Config
	log  zerolog.Logger
	now  func() time.Time
}

var _ in.RunService = (*Service)(nil)

func NewService(deps Deps, cfg Config, log zerolog.Logger) *Service {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Service{
		deps: deps,
		cfg:  cfg,
		log:  log.With().Str("component", "run").Logger(),
		now:  time.Now,
	}
}

// Run produces the report for req. A report artifact that already exists is
// reused and stored again. Storage failures are recorded in the result, not
// returned.
func (s *Service) Run(ctx context.Context, req domain.RunRequest) (*domain.RunResult, error) {
	req, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	start := s.now()
	log := s.log.With().Str("agency", req.Agency).Str("period", req.Period()).Logger()
	res := &domain.RunResult{Agency: req.Agency, Month: req.Month, Year: req.Year}

	body, name, ok, err := s.deps.Artifacts.LoadReport(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("load report artifact: %w", err)
	}
	if ok {
		log.Info().Str("file", name).Msg("report already exists")
		res.Report = body
		res.ReportFile = name
		res.FromCache = true
		s.store(ctx, log, req, body, res)
		res.Duration = s.now().Sub(start)
		return res, nil
	}

	stage := s.now()
	data, err := s.forumData(ctx, log, req, res)
	if err != nil {
		return nil, err
	}
	s.observe(StageCollect, stage)
	res.PostsFetched = len(data.Posts)
	res.CommentsFetched = len(data.Comments)
	res.SkippedChannels = data.SkippedChannels

	topic, err := s.topic(ctx, req.Agency)
	if err != nil {
		return nil, err
	}
	res.Topic = topic

	stage = s.now()
	filtered, err := s.deps.Filter.Run(ctx, data.Posts, data.Comments, topic)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	s.observe(StageFilter, stage)
	res.Filter = filtered.Stats
	res.Pairs = filtered.Pairs

	stage = s.now()
	report, err := s.deps.Synthesizer.Synthesize(ctx, filtered.Pairs, req.Agency, topic)
	if err != nil {
		return nil, apperr.ExternalError("completion", err)
	}
	s.observe(StageSynthesize, stage)
	res.Report = report.Body

	name, err = s.deps.Artifacts.SaveReport(ctx, req, report.Body)
	if err != nil {
		return nil, fmt.Errorf("save report artifact: %w", err)
	}
	res.ReportFile = name
	log.Info().Str("file", name).Msg("report saved")

	s.store(ctx, log, req, report.Body, res)

	if n := len(res.SkippedChannels); n > 0 {
		log.Warn().Int("skipped_channels", n).Msgf("report built without %d channel(s)", n)
	}
	if f := res.Filter.Failures(); f > 0 {
		log.Warn().Int("classifier_failures", f).Msg("report built with classifier failures")
	}
	res.PartialFailure = len(res.SkippedChannels) > 0 || res.Filter.Failures() > 0
	res.Duration = s.now().Sub(start)
	s.observe(StageRun, start)

	log.Info().
		Int("posts", res.PostsFetched).
		Int("pairs", len(res.Pairs)).
		Bool("partial_failure", res.PartialFailure).
		Dur("took", res.Duration).
		Msg("run finished")
	return res, nil
}

func (s *Service) observe(stage string, since time.Time) {
	if s.deps.Latency != nil {
		s.deps.Latency.Record(stage, s.now().Sub(since))
	}
}

// Reports lists stored reports.
func (s *Service) Reports(ctx context.Context, query domain.ReportQuery) ([]*domain.ReportRecord, error) {
	if s.deps.Reports == nil {
		return nil, apperr.Unavailable("report storage is disabled")
	}
	records, err := s.deps.Reports.List(ctx, query)
	if err != nil {
		return nil, apperr.DatabaseError("list reports", err)
	}
	return records, nil
}

func (s *Service) validate(req domain.RunRequest) (domain.RunRequest, error) {
	req.Agency = strings.TrimSpace(req.Agency)
	if req.Agency == "" {
		return req, apperr.MissingField("agency")
	}
	if req.Month < 1 || req.Month > 12 {
		return req, apperr.InvalidInput("month", "must be between 1 and 12")
	}
	if minYear, maxYear := domain.YearRange(s.now()); req.Year < minYear || req.Year > maxYear {
		return req, apperr.InvalidInput("year", fmt.Sprintf("must be between %d and %d", minYear, maxYear))
	}
	if req.Limit <= 0 {
		req.Limit = s.cfg.Limit
	}
	return req, nil
}

func (s *Service) forumData(ctx context.Context, log zerolog.Logger, req domain.RunRequest, res *domain.RunResult) (*out.ForumData, error) {
	cached, err := s.deps.Artifacts.HasForumData(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("check forum data: %w", err)
	}
	if cached {
		log.Info().Msg("loading existing forum data")
		data, err := s.deps.Artifacts.LoadForumData(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("load forum data: %w", err)
		}
		return data, nil
	}

	keywords, err := s.keywords(ctx, req.Agency)
	if err != nil {
		return nil, err
	}
	res.Keywords = keywords

	data, err := s.deps.Fetcher.Fetch(ctx, out.FetchQuery{
		Channels: s.cfg.Channels,
		Keywords: keywords,
		Year:     req.Year,
		Month:    req.Month,
		Limit:    req.Limit,
	})
	if err != nil {
		return nil, apperr.ExternalError("forum", err)
	}
	// Partial data is not cached, so a retry fetches the skipped channels again.
	if n := len(data.SkippedChannels); n > 0 {
		log.Warn().Int("skipped_channels", n).Msg("forum data not cached")
		return data, nil
	}
	if err := s.deps.Artifacts.SaveForumData(ctx, req, data); err != nil {
		return nil, fmt.Errorf("save forum data: %w", err)
	}
	log.Info().Int("posts", len(data.Posts)).Int("comments", len(data.Comments)).Msg("forum data saved")
	return data, nil
}

func (s *Service) keywords(ctx context.Context, agency string) ([]string, error) {
	if p, ok := s.cfg.Profiles[agency]; ok && len(p.Keywords) > 0 {
		return p.Keywords, nil
	}
	keywords, err := s.deps.Metadata.GenerateKeywords(ctx, agency)
	if err != nil {
		return nil, apperr.ExternalError("completion", err)
	}
	return keywords, nil
}

func (s *Service) topic(ctx context.Context, agency string) (string, error) {
	if p, ok := s.cfg.Profiles[agency]; ok && p.Topic != "" {
		return p.Topic, nil
	}
	topic, err := s.deps.Metadata.GenerateTopic(ctx, agency)
	if err != nil {
		return "", apperr.ExternalError("completion", err)
	}
	return topic, nil
}

func (s *Service) store(ctx context.Context, log zerolog.Logger, req domain.RunRequest, body string, res *domain.RunResult) {
	if s.deps.Reports == nil {
		return
	}
	err := s.deps.Reports.Insert(ctx, &domain.ReportRecord{
		Agency:    req.Agency,
		Month:     req.Month,
		Year:      req.Year,
		Report:    body,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Msg("report insert failed")
		res.StoreError = err.Error()
		return
	}
	res.Stored = true
}
