package release

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/google/go-github/v66/github"
	"go.uber.org/zap"
)

// releasesAPI часть RepositoriesService, нужная для публикации
type releasesAPI interface {
	GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*github.RepositoryRelease, *github.Response, error)
	CreateRelease(ctx context.Context, owner, repo string, release *github.RepositoryRelease) (*github.RepositoryRelease, *github.Response, error)
	EditRelease(ctx context.Context, owner, repo string, id int64, release *github.RepositoryRelease) (*github.RepositoryRelease, *github.Response, error)
	ListReleaseAssets(ctx context.Context, owner, repo string, id int64, opts *github.ListOptions) ([]*github.ReleaseAsset, *github.Response, error)
	DeleteReleaseAsset(ctx context.Context, owner, repo string, id int64) (*github.Response, error)
	UploadReleaseAsset(ctx context.Context, owner, repo string, id int64, opts *github.UploadOptions, file *os.File) (*github.ReleaseAsset, *github.Response, error)
}

// GitHubPublisher публикует релизы через GitHub API
type GitHubPublisher struct {
	api    releasesAPI
	owner  string
	repo   string
	logger *zap.Logger
}

var _ Publisher = (*GitHubPublisher)(nil)

// NewGitHubPublisher создает публикатора с токеном GITHUB_TOKEN
func NewGitHubPublisher(token, owner, repo string, logger *zap.Logger) *GitHubPublisher {
	client := github.NewClient(nil).WithAuthToken(token)
	return &GitHubPublisher{api: client.Repositories, owner: owner, repo: repo, logger: logger}
}

// Publish создает релиз по тегу или обновляет существующий; одноименные файлы заменяются
func (p *GitHubPublisher) Publish(ctx context.Context, rel Release) (*Published, error) {
	logger := p.logger.With(zap.String("tag", rel.Tag), zap.String("repository", p.owner+"/"+p.repo))

	spec := &github.RepositoryRelease{
		TagName: github.String(rel.Tag),
		Name:    github.String(rel.Name),
		Body:    github.String(rel.Body),
	}

	existing, resp, err := p.api.GetReleaseByTag(ctx, p.owner, p.repo, rel.Tag)
	if err != nil && !isNotFound(resp, err) {
		return nil, fmt.Errorf("get release %s: %w", rel.Tag, err)
	}

	out := &Published{}
	var current *github.RepositoryRelease
	if existing == nil {
		current, _, err = p.api.CreateRelease(ctx, p.owner, p.repo, spec)
		if err != nil {
			return nil, fmt.Errorf("create release %s: %w", rel.Tag, err)
		}
		out.Created = true
		logger.Info("Release created", zap.String("name", rel.Name))
	} else {
		current, _, err = p.api.EditRelease(ctx, p.owner, p.repo, existing.GetID(), spec)
		if err != nil {
			return nil, fmt.Errorf("update release %s: %w", rel.Tag, err)
		}
		logger.Info("Release updated", zap.String("name", rel.Name), zap.Int64("release_id", existing.GetID()))
	}

	out.ID = current.GetID()
	out.URL = current.GetHTMLURL()

	if err := p.removeAssets(ctx, current.GetID(), rel.Assets); err != nil {
		return nil, err
	}

	for _, asset := range rel.Assets {
		if err := p.upload(ctx, current.GetID(), asset); err != nil {
			return nil, err
		}
		out.Assets = append(out.Assets, asset.Name)
		logger.Info("Release asset uploaded", zap.String("asset", asset.Name), zap.Int("bytes", len(asset.Data)))
	}

	return out, nil
}

// removeAssets удаляет файлы релиза, которые будут загружены заново
func (p *GitHubPublisher) removeAssets(ctx context.Context, releaseID int64, assets []Asset) error {
	replace := make(map[string]bool, len(assets))
	for _, a := range assets {
		replace[a.Name] = true
	}

	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := p.api.ListReleaseAssets(ctx, p.owner, p.repo, releaseID, opts)
		if err != nil {
			return fmt.Errorf("list release assets: %w", err)
		}
		for _, a := range page {
			if !replace[a.GetName()] {
				continue
			}
			if _, err := p.api.DeleteReleaseAsset(ctx, p.owner, p.repo, a.GetID()); err != nil {
				return fmt.Errorf("delete release asset %s: %w", a.GetName(), err)
			}
			p.logger.Debug("Release asset removed", zap.String("asset", a.GetName()))
		}
		if resp == nil || resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

// upload загружает файл; API принимает только *os.File, поэтому данные идут через временный файл
func (p *GitHubPublisher) upload(ctx context.Context, releaseID int64, asset Asset) error {
	f, err := os.CreateTemp("", "testgen-asset-*")
	if err != nil {
		return fmt.Errorf("upload %s: %w", asset.Name, err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if _, err := f.Write(asset.Data); err != nil {
		return fmt.Errorf("upload %s: %w", asset.Name, err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("upload %s: %w", asset.Name, err)
	}

	_, _, err = p.api.UploadReleaseAsset(ctx, p.owner, p.repo, releaseID, &github.UploadOptions{
		Name:      asset.Name,
		MediaType: asset.ContentType,
	}, f)
	if err != nil {
		return fmt.Errorf("upload %s: %w", asset.Name, err)
	}
	return nil
}

func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}
