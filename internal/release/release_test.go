package release

import (
	"context"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/google/go-github/v66/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"testgen/internal/artifact"
	"testgen/internal/coverage"
)

const sha = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b"

// fakeReleases хранит релизы в памяти и ведет себя как GitHub API
type fakeReleases struct {
	mu       sync.Mutex
	nextID   int64
	releases map[string]*github.RepositoryRelease
	assets   map[int64][]*github.ReleaseAsset
	content  map[string][]byte
	deleted  []string
}

func newFakeReleases() *fakeReleases {
	return &fakeReleases{
		releases: map[string]*github.RepositoryRelease{},
		assets:   map[int64][]*github.ReleaseAsset{},
		content:  map[string][]byte{},
	}
}

func (f *fakeReleases) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeReleases) GetReleaseByTag(_ context.Context, _, _, tag string) (*github.RepositoryRelease, *github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rel, ok := f.releases[tag]
	if !ok {
		resp := &github.Response{Response: &http.Response{StatusCode: http.StatusNotFound}}
		return nil, resp, &github.ErrorResponse{Response: resp.Response, Message: "Not Found"}
	}
	return rel, &github.Response{Response: &http.Response{StatusCode: http.StatusOK}}, nil
}

func (f *fakeReleases) CreateRelease(_ context.Context, _, _ string, release *github.RepositoryRelease) (*github.RepositoryRelease, *github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rel := *release
	rel.ID = github.Int64(f.id())
	rel.HTMLURL = github.String("https://github.com/acme/testgen/releases/tag/" + release.GetTagName())
	f.releases[release.GetTagName()] = &rel
	return &rel, nil, nil
}

func (f *fakeReleases) EditRelease(_ context.Context, _, _ string, id int64, release *github.RepositoryRelease) (*github.RepositoryRelease, *github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rel := range f.releases {
		if rel.GetID() == id {
			rel.Name = release.Name
			rel.Body = release.Body
			return rel, nil, nil
		}
	}
	return nil, nil, &github.ErrorResponse{Message: "Not Found"}
}

func (f *fakeReleases) ListReleaseAssets(_ context.Context, _, _ string, id int64, _ *github.ListOptions) ([]*github.ReleaseAsset, *github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*github.ReleaseAsset(nil), f.assets[id]...), &github.Response{}, nil
}

func (f *fakeReleases) DeleteReleaseAsset(_ context.Context, _, _ string, id int64) (*github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for relID, list := range f.assets {
		for i, a := range list {
			if a.GetID() == id {
				f.assets[relID] = append(list[:i], list[i+1:]...)
				f.deleted = append(f.deleted, a.GetName())
				return nil, nil
			}
		}
	}
	return nil, &github.ErrorResponse{Message: "Not Found"}
}

func (f *fakeReleases) UploadReleaseAsset(_ context.Context, _, _ string, id int64, opts *github.UploadOptions, file *os.File) (*github.ReleaseAsset, *github.Response, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assets[id] {
		if a.GetName() == opts.Name {
			return nil, nil, &github.ErrorResponse{Message: "Validation Failed: already_exists"}
		}
	}
	asset := &github.ReleaseAsset{ID: github.Int64(f.id()), Name: github.String(opts.Name), ContentType: github.String(opts.MediaType)}
	f.assets[id] = append(f.assets[id], asset)
	f.content[opts.Name] = data
	return asset, nil, nil
}

func newPublisher(api releasesAPI) *GitHubPublisher {
	return &GitHubPublisher{api: api, owner: "acme", repo: "testgen", logger: zap.NewNop()}
}

func seedArtifacts(t *testing.T) *artifact.Store {
	t.Helper()
	store, err := artifact.Open(artifact.Options{InMemory: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	backend := coverage.NewSummary(coverage.FormatCobertura)
	backend.Metrics[coverage.Lines] = coverage.Metric{Covered: 930, Total: 1000}
	frontend := coverage.NewSummary(coverage.FormatIstanbul)
	for _, n := range coverage.Metrics {
		frontend.Metrics[n] = coverage.Metric{Covered: 95, Total: 100}
	}

	for gate, report := range map[string]coverage.GateReport{
		"backend":  {Gate: "backend", Summary: backend, Thresholds: coverage.Uniform(90, coverage.Total)},
		"frontend": {Gate: "frontend", Summary: frontend, Thresholds: coverage.Uniform(90, coverage.Metrics...)},
	} {
		data, err := report.JSON()
		require.NoError(t, err)
		require.NoError(t, store.Put(artifact.Record{SHA: sha, Gate: gate, Name: coverage.ReportJSONFile, Data: data}))
	}

	badge, err := coverage.Badge(93)
	require.NoError(t, err)
	require.NoError(t, store.Put(artifact.Record{SHA: sha, Gate: "backend", Name: coverage.BadgeFile, Data: badge}))
	return store
}

func TestBuild(t *testing.T) {
	rel, err := Build(seedArtifacts(t), sha, "backend", "backend", "frontend")
	require.NoError(t, err)

	assert.Equal(t, sha, rel.Tag)
	assert.Equal(t, "Release "+sha, rel.Name)
	require.Len(t, rel.Assets, 2)
	assert.Equal(t, "coverage-report.md", rel.Assets[0].Name)
	assert.Contains(t, string(rel.Assets[0].Data), "![coverage](coverage-badge.svg)")
	assert.Equal(t, "coverage-badge.svg", rel.Assets[1].Name)
	assert.Contains(t, rel.Body, "## Frontend")
}

func TestBuild_MissingArtifacts(t *testing.T) {
	store := seedArtifacts(t)

	_, err := Build(store, "unknown", "backend", "backend")
	assert.ErrorIs(t, err, artifact.ErrNotFound)

	_, err = Build(store, "", "backend", "backend")
	assert.Error(t, err)
}

func TestBuild_RejectsFailedCoverage(t *testing.T) {
	store := seedArtifacts(t)

	low := coverage.NewSummary(coverage.FormatCobertura)
	low.Metrics[coverage.Lines] = coverage.Metric{Covered: 89996, Total: 100000}
	data, err := coverage.GateReport{Gate: "backend", Summary: low, Thresholds: coverage.Uniform(90, coverage.Total)}.JSON()
	require.NoError(t, err)
	require.NoError(t, store.Put(artifact.Record{SHA: sha, Gate: "backend", Name: coverage.ReportJSONFile, Data: data}))

	_, err = Build(store, sha, "backend", "backend", "frontend")
	assert.ErrorIs(t, err, ErrCoverageNotMet)
}

func TestGitHubPublisher_CreatesRelease(t *testing.T) {
	api := newFakeReleases()
	rel, err := Build(seedArtifacts(t), sha, "backend", "backend", "frontend")
	require.NoError(t, err)

	out, err := newPublisher(api).Publish(context.Background(), rel)
	require.NoError(t, err)

	assert.True(t, out.Created)
	assert.Equal(t, []string{"coverage-report.md", "coverage-badge.svg"}, out.Assets)
	assert.Equal(t, "Release "+sha, api.releases[sha].GetName())
	assert.Contains(t, string(api.content["coverage-report.md"]), "coverage-badge.svg")
}

func TestGitHubPublisher_RerunUpdatesInPlace(t *testing.T) {
	api := newFakeReleases()
	rel, err := Build(seedArtifacts(t), sha, "backend", "backend", "frontend")
	require.NoError(t, err)
	pub := newPublisher(api)

	first, err := pub.Publish(context.Background(), rel)
	require.NoError(t, err)

	rel.Body = "updated"
	second, err := pub.Publish(context.Background(), rel)
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, api.releases, 1)
	assert.Equal(t, "updated", api.releases[sha].GetBody())
	assert.Len(t, api.assets[first.ID], 2)
	assert.ElementsMatch(t, []string{"coverage-report.md", "coverage-badge.svg"}, api.deleted)
}

func TestIsNotFound(t *testing.T) {
	resp := &github.Response{Response: &http.Response{StatusCode: http.StatusNotFound}}
	assert.True(t, isNotFound(resp, nil))
	assert.True(t, isNotFound(nil, &github.ErrorResponse{Response: resp.Response}))
	assert.False(t, isNotFound(nil, assert.AnError))
}
