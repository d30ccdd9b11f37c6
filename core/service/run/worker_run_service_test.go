package run

import (
	"context"
	"errors"
	"testing"
	"time"

	"report_worker/core/domain"
	"report_worker/core/port/out"
	"report_worker/pkg/apperr"
	"report_worker/pkg/metrics"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArtifacts struct {
	report     string
	hasReport  bool
	forum      *out.ForumData
	hasForum   bool
	saved      *out.ForumData
	savedBody  string
	loadCalled bool
}

func (f *fakeArtifacts) HasForumData(context.Context, domain.RunRequest) (bool, error) {
	return f.hasForum, nil
}

func (f *fakeArtifacts) LoadForumData(context.Context, domain.RunRequest) (*out.ForumData, error) {
	f.loadCalled = true
	return f.forum, nil
}

func (f *fakeArtifacts) SaveForumData(_ context.Context, _ domain.RunRequest, data *out.ForumData) error {
	f.saved = data
	f.forum, f.hasForum = data, true
	return nil
}

func (f *fakeArtifacts) LoadReport(_ context.Context, req domain.RunRequest) (string, string, bool, error) {
	return f.report, "report_" + req.Slug() + "_" + req.Period() + ".md", f.hasReport, nil
}

func (f *fakeArtifacts) SaveReport(_ context.Context, req domain.RunRequest, body string) (string, error) {
	f.savedBody = body
	return "report_" + req.Slug() + "_" + req.Period() + ".md", nil
}

type fakeFetcher struct {
	query out.FetchQuery
	data  *out.ForumData
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, q out.FetchQuery) (*out.ForumData, error) {
	f.calls++
	f.query = q
	return f.data, f.err
}

type fakeMetadata struct {
	keywordCalls, topicCalls int
	topicErr                 error
}

func (f *fakeMetadata) GenerateKeywords(context.Context, string) ([]string, error) {
	f.keywordCalls++
	return []string{"rmv", "license"}, nil
}

func (f *fakeMetadata) GenerateTopic(context.Context, string) (string, error) {
	f.topicCalls++
	return "licenses", f.topicErr
}

type fakeFilter struct {
	posts []domain.Post
	topic string
	stats domain.FilterStats
}

func (f *fakeFilter) Run(_ context.Context, posts []domain.Post, _ []domain.Comment, topic string) (*domain.FilterResult, error) {
	f.posts, f.topic = posts, topic
	pairs := make([]domain.FilteredPair, 0, len(posts))
	for _, p := range posts {
		pairs = append(pairs, domain.FilteredPair{Post: p, RelevantComments: []domain.Comment{}})
	}
	stats := f.stats
	stats.PostsIn, stats.PostsRelevant = len(posts), len(posts)
	return &domain.FilterResult{Pairs: pairs, Stats: stats}, nil
}

type fakeSynth struct {
	calls int
	err   error
}

func (f *fakeSynth) Synthesize(_ context.Context, pairs []domain.FilteredPair, agency, topic string) (*domain.Report, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Report{Agency: agency, Topic: topic, Body: "# report"}, nil
}

type fakeReports struct {
	inserted []*domain.ReportRecord
	err      error
}

func (f *fakeReports) Insert(_ context.Context, r *domain.ReportRecord) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, r)
	return nil
}

func (f *fakeReports) List(context.Context, domain.ReportQuery) ([]*domain.ReportRecord, error) {
	return f.inserted, nil
}

type fixture struct {
	artifacts *fakeArtifacts
	fetcher   *fakeFetcher
	metadata  *fakeMetadata
	filter    *fakeFilter
	synth     *fakeSynth
	reports   *fakeReports
}

func newFixture() *fixture {
	return &fixture{
		artifacts: &fakeArtifacts{},
		fetcher: &fakeFetcher{data: &out.ForumData{
			Posts:    []domain.Post{{ID: "p1", Title: "RMV"}},
			Comments: []domain.Comment{{ID: "c1", PostID: "p1"}},
		}},
		metadata: &fakeMetadata{},
		filter:   &fakeFilter{},
		synth:    &fakeSynth{},
		reports:  &fakeReports{},
	}
}

func (f *fixture) service(cfg Config) *Service {
	s := NewService(Deps{
		Fetcher:     f.fetcher,
		Artifacts:   f.artifacts,
		Reports:     f.reports,
		Metadata:    f.metadata,
		Filter:      f.filter,
		Synthesizer: f.synth,
	}, cfg, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2025, 10, 1, 6, 0, 0, 0, time.UTC) }
	return s
}

func TestRunFreshFetch(t *testing.T) {
	f := newFixture()
	s := f.service(Config{Channels: []string{"boston", "cambridge"}})

	res, err := s.Run(context.Background(), domain.RunRequest{Agency: " Registry of Motor Vehicles ", Month: 9, Year: 2025})
	require.NoError(t, err)

	assert.Equal(t, 1, f.fetcher.calls)
	assert.Equal(t, out.FetchQuery{
		Channels: []string{"boston", "cambridge"},
		Keywords: []string{"rmv", "license"},
		Year:     2025,
		Month:    9,
		Limit:    DefaultLimit,
	}, f.fetcher.query)
	assert.Same(t, f.fetcher.data, f.artifacts.saved)
	assert.Equal(t, "licenses", f.filter.topic)
	assert.Equal(t, 1, f.synth.calls)
	assert.Equal(t, "# report", f.artifacts.savedBody)

	assert.Equal(t, "Registry of Motor Vehicles", res.Agency)
	assert.Equal(t, "report_registry_of_motor_vehicles_9-2025.md", res.ReportFile)
	assert.Equal(t, 1, res.PostsFetched)
	assert.Equal(t, 1, res.CommentsFetched)
	assert.Len(t, res.Pairs, 1)
	assert.True(t, res.Stored)
	assert.False(t, res.FromCache)
	assert.False(t, res.PartialFailure)

	require.Len(t, f.reports.inserted, 1)
	assert.Equal(t, &domain.ReportRecord{
		Agency:    "Registry of Motor Vehicles",
		Month:     9,
		Year:      2025,
		Report:    "# report",
		CreatedAt: time.Date(2025, 10, 1, 6, 0, 0, 0, time.UTC),
	}, f.reports.inserted[0])
}

func TestRunExistingReportIsReinserted(t *testing.T) {
	f := newFixture()
	f.artifacts.hasReport = true
	f.artifacts.report = "# cached"

	res, err := f.service(Config{}).Run(context.Background(), domain.RunRequest{Agency: "MBTA", Month: 9, Year: 2025})
	require.NoError(t, err)

	assert.True(t, res.FromCache)
	assert.Equal(t, "# cached", res.Report)
	assert.Empty(t, res.Pairs)
	assert.Zero(t, f.fetcher.calls)
	assert.Zero(t, f.synth.calls)
	assert.Zero(t, f.metadata.topicCalls)
	require.Len(t, f.reports.inserted, 1)
	assert.Equal(t, "# cached", f.reports.inserted[0].Report)
}

func TestRunUsesCachedForumData(t *testing.T) {
	f := newFixture()
	f.artifacts.hasForum = true
	f.artifacts.forum = &out.ForumData{Posts: []domain.Post{{ID: "cached"}}}

	res, err := f.service(Config{}).Run(context.Background(), domain.RunRequest{Agency: "MBTA", Month: 9, Year: 2025})
	require.NoError(t, err)

	assert.True(t, f.artifacts.loadCalled)
	assert.Zero(t, f.fetcher.calls)
	assert.Zero(t, f.metadata.keywordCalls)
	assert.Equal(t, 1, f.metadata.topicCalls)
	assert.Equal(t, "cached", f.filter.posts[0].ID)
	assert.Equal(t, 1, res.PostsFetched)
}

func TestRunProfileOverridesSkipGeneration(t *testing.T) {
	f := newFixture()
	s := f.service(Config{Profiles: map[string]domain.AgencyProfile{
		"MBTA": {Name: "MBTA", Topic: "public transit", Keywords: []string{"bus", "train"}},
	}})

	res, err := s.Run(context.Background(), domain.RunRequest{Agency: "MBTA", Month: 9, Year: 2025})
	require.NoError(t, err)
	assert.Zero(t, f.metadata.keywordCalls)
	assert.Zero(t, f.metadata.topicCalls)
	assert.Equal(t, []string{"bus", "train"}, f.fetcher.query.Keywords)
	assert.Equal(t, "public transit", res.Topic)
}

func TestRunPartialFailure(t *testing.T) {
	f := newFixture()
	f.fetcher.data.SkippedChannels = []domain.ChannelError{{Channel: "CambridgeMA", Error: "403"}}
	f.filter.stats = domain.FilterStats{PostFailures: 1}

	res, err := f.service(Config{}).Run(context.Background(), domain.RunRequest{Agency: "MBTA", Month: 9, Year: 2025})
	require.NoError(t, err)
	assert.True(t, res.PartialFailure)
	assert.Len(t, res.SkippedChannels, 1)
	assert.Equal(t, "# report", res.Report)
}

func TestRunPartialFetchIsNotCached(t *testing.T) {
	f := newFixture()
	f.fetcher.data.SkippedChannels = []domain.ChannelError{{Channel: "CambridgeMA", Error: "403"}}
	f.synth.err = errors.New("completion: 500")
	s := f.service(Config{})
	req := domain.RunRequest{Agency: "MBTA", Month: 9, Year: 2025}

	_, err := s.Run(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, f.artifacts.saved)

	f.synth.err = nil
	res, err := s.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, f.fetcher.calls)
	assert.False(t, f.artifacts.loadCalled)
	assert.True(t, res.PartialFailure)
	assert.Len(t, res.SkippedChannels, 1)
}

func TestRunCompleteFetchIsCachedForRetry(t *testing.T) {
	f := newFixture()
	f.synth.err = errors.New("completion: 500")
	s := f.service(Config{})
	req := domain.RunRequest{Agency: "MBTA", Month: 9, Year: 2025}

	_, err := s.Run(context.Background(), req)
	require.Error(t, err)
	require.NotNil(t, f.artifacts.saved)

	f.synth.err = nil
	res, err := s.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, f.fetcher.calls)
	assert.True(t, f.artifacts.loadCalled)
	assert.False(t, res.PartialFailure)
}

func TestRunStoreFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.reports.err = errors.New("bigquery: 403")

	res, err := f.service(Config{}).Run(context.Background(), domain.RunRequest{Agency: "MBTA", Month: 9, Year: 2025})
	require.NoError(t, err)
	assert.False(t, res.Stored)
	assert.Equal(t, "bigquery: 403", res.StoreError)
	assert.Equal(t, "report_mbta_9-2025.md", res.ReportFile)
}

func TestRunWithoutReportRepository(t *testing.T) {
	f := newFixture()
	s := NewService(Deps{
		Fetcher:     f.fetcher,
		Artifacts:   f.artifacts,
		Metadata:    f.metadata,
		Filter:      f.filter,
		Synthesizer: f.synth,
	}, Config{}, zerolog.Nop())

	res, err := s.Run(context.Background(), domain.RunRequest{Agency: "MBTA", Month: 9, Year: 2025})
	require.NoError(t, err)
	assert.False(t, res.Stored)
	assert.Empty(t, res.StoreError)

	_, err = s.Reports(context.Background(), domain.ReportQuery{})
	assert.True(t, apperr.IsCode(err, apperr.CodeUnavailable))
}

func TestRunValidation(t *testing.T) {
	tests := []struct {
		name string
		req  domain.RunRequest
		code string
	}{
		{"missing agency", domain.RunRequest{Agency: "  ", Month: 9, Year: 2025}, apperr.CodeMissingField},
		{"month zero", domain.RunRequest{Agency: "MBTA", Month: 0, Year: 2025}, apperr.CodeInvalidInput},
		{"month 13", domain.RunRequest{Agency: "MBTA", Month: 13, Year: 2025}, apperr.CodeInvalidInput},
		{"year too old", domain.RunRequest{Agency: "MBTA", Month: 1, Year: 1999}, apperr.CodeInvalidInput},
		{"year in the future", domain.RunRequest{Agency: "MBTA", Month: 1, Year: 2030}, apperr.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.service(Config{}).Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperr.IsCode(err, tt.code), err.Error())
			assert.Zero(t, f.fetcher.calls)
			assert.Zero(t, f.metadata.keywordCalls)
		})
	}
}

func TestRunTopicFailureAborts(t *testing.T) {
	f := newFixture()
	f.metadata.topicErr = errors.New("no structured result")

	_, err := f.service(Config{}).Run(context.Background(), domain.RunRequest{Agency: "MBTA", Month: 9, Year: 2025})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeExternalError))
	assert.Zero(t, f.synth.calls)
}

func TestRunFetchFailure(t *testing.T) {
	f := newFixture()
	f.fetcher.err = errors.New("oauth: invalid_client")

	_, err := f.service(Config{}).Run(context.Background(), domain.RunRequest{Agency: "MBTA", Month: 9, Year: 2025})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeExternalError))
	assert.Nil(t, f.artifacts.saved)
}

func TestRunRecordsStageLatency(t *testing.T) {
	f := newFixture()
	s := f.service(Config{Channels: []string{"boston"}})
	s.deps.Latency = metrics.NewLatencyRegistry(10)

	_, err := s.Run(context.Background(), domain.RunRequest{Agency: "MBTA", Month: 9, Year: 2025})
	require.NoError(t, err)

	all := s.deps.Latency.AllStats()
	for _, stage := range []string{StageCollect, StageFilter, StageSynthesize, StageRun} {
		assert.Equal(t, 1, all[stage].Count, stage)
	}
}
