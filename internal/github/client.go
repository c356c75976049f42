// Package github wraps the GitHub contents API for reading and writing blog
// posts inside the configured content repository.
package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	gogithub "github.com/google/go-github/v62/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/scribehq/scribe/internal/frontmatter"
	"github.com/scribehq/scribe/internal/model"
)

var ghLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	ghLogger = l
}

var (
	ErrNotFound      = errors.New("post not found")
	ErrAlreadyExists = errors.New("post already exists")
)

// Config locates the blog content inside the repository.
type Config struct {
	Owner       string
	Repo        string
	Branch      string
	ContentPath string
}

// Client talks to one repository on behalf of one authenticated user.
type Client struct {
	gh  *gogithub.Client
	cfg Config
}

// NewClient builds a client from a user's OAuth access token.
func NewClient(ctx context.Context, token string, cfg Config) *Client {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	return &Client{
		gh:  gogithub.NewClient(httpClient),
		cfg: cfg,
	}
}

// User is the authenticated GitHub account.
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
}

func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	return &User{
		Login:     user.GetLogin(),
		Name:      user.GetName(),
		AvatarURL: user.GetAvatarURL(),
		Email:     user.GetEmail(),
	}, nil
}

// Posts live at {content_path}/{slug}/index.md or index.mdx; mdx wins when
// both exist. Images for a post live next to it under images/.
func (c *Client) postPath(slug model.Slug, extension string) string {
	return fmt.Sprintf("%s/%s/index.%s", c.cfg.ContentPath, slug, extension)
}

func (c *Client) imagesPath(slug model.Slug) string {
	return fmt.Sprintf("%s/%s/images", c.cfg.ContentPath, slug)
}

// parsePostText turns raw file content into a Post. Posts without a title or
// description in their front matter are not valid editor targets.
func parsePostText(content string, slug model.Slug, filePath string) (*model.Post, bool) {
	fm, body := frontmatter.Parse(content)
	if fm.Title == "" || fm.Description == "" {
		return nil, false
	}

	return &model.Post{
		Slug:        slug,
		Title:       fm.Title,
		Description: fm.Description,
		Date:        fm.ParseDate(),
		Draft:       fm.Draft,
		Tags:        fm.Tags,
		Content:     body,
		FilePath:    filePath,
	}, true
}

// ListPosts walks the content tree and returns all posts, newest first.
// Unparseable posts are skipped, not reported.
func (c *Client) ListPosts(ctx context.Context, includeDrafts bool) ([]model.PostListItem, error) {
	tree, _, err := c.gh.Git.GetTree(ctx, c.cfg.Owner, c.cfg.Repo, c.cfg.Branch, true)
	if err != nil {
		if isNotFound(err) {
			return []model.PostListItem{}, nil
		}
		return nil, fmt.Errorf("error listing content tree: %w", err)
	}

	prefix := c.cfg.ContentPath + "/"

	type indexFile struct {
		path string
		sha  string
		mdx  bool
	}
	indexFiles := make(map[model.Slug]indexFile)

	for _, entry := range tree.Entries {
		path := entry.GetPath()
		if entry.GetType() != "blob" || !strings.HasPrefix(path, prefix) {
			continue
		}
		isMDX := strings.HasSuffix(path, "/index.mdx")
		if !isMDX && !strings.HasSuffix(path, "/index.md") {
			continue
		}

		slug := model.Slug(strings.SplitN(strings.TrimPrefix(path, prefix), "/", 2)[0])
		existing, seen := indexFiles[slug]
		if !seen || (isMDX && !existing.mdx) {
			indexFiles[slug] = indexFile{path: path, sha: entry.GetSHA(), mdx: isMDX}
		}
	}

	posts := make([]model.PostListItem, 0, len(indexFiles))
	for slug, file := range indexFiles {
		content, err := c.readBlob(ctx, file.sha)
		if err != nil {
			ghLogger.Debug().Err(err).Str("path", file.path).Msg("Skipping unreadable post blob")
			continue
		}

		post, ok := parsePostText(content, slug, file.path)
		if !ok || (!includeDrafts && post.Draft) {
			continue
		}

		posts = append(posts, model.PostListItem{
			Slug:        post.Slug,
			Title:       post.Title,
			Description: post.Description,
			Date:        post.Date,
			Draft:       post.Draft,
			Tags:        post.Tags,
		})
	}

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].Date.After(posts[j].Date)
	})
	return posts, nil
}

func (c *Client) readBlob(ctx context.Context, sha string) (string, error) {
	blob, _, err := c.gh.Git.GetBlob(ctx, c.cfg.Owner, c.cfg.Repo, sha)
	if err != nil {
		return "", err
	}
	if blob.GetEncoding() != "base64" {
		return blob.GetContent(), nil
	}
	raw := strings.ReplaceAll(blob.GetContent(), "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("error decoding blob: %w", err)
	}
	return string(decoded), nil
}

// GetPost fetches a single post by slug. Returns ErrNotFound when neither an
// index.md nor an index.mdx exists for it.
func (c *Client) GetPost(ctx context.Context, slug model.Slug) (*model.Post, error) {
	for _, ext := range []string{"mdx", "md"} {
		path := c.postPath(slug, ext)
		file, _, _, err := c.gh.Repositories.GetContents(ctx, c.cfg.Owner, c.cfg.Repo, path,
			&gogithub.RepositoryContentGetOptions{Ref: c.cfg.Branch})
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("error reading post %s: %w", slug, err)
		}
		if file == nil {
			continue
		}

		content, err := file.GetContent()
		if err != nil {
			return nil, fmt.Errorf("error decoding post %s: %w", slug, err)
		}

		post, ok := parsePostText(content, slug, path)
		if !ok {
			return nil, ErrNotFound
		}
		return post, nil
	}
	return nil, ErrNotFound
}

// CreatePost commits a new post file. Returns ErrAlreadyExists when the slug
// is taken.
func (c *Client) CreatePost(ctx context.Context, post *model.Post) error {
	path := c.postPath(post.Slug, "md")

	for _, ext := range []string{"md", "mdx"} {
		_, _, _, err := c.gh.Repositories.GetContents(ctx, c.cfg.Owner, c.cfg.Repo, c.postPath(post.Slug, ext),
			&gogithub.RepositoryContentGetOptions{Ref: c.cfg.Branch})
		if err == nil {
			return ErrAlreadyExists
		}
		if !isNotFound(err) {
			return fmt.Errorf("error checking for existing post: %w", err)
		}
	}

	content := frontmatter.CreateContent(post.Title, post.Description, post.Date, post.Content, post.Draft, post.Tags)

	_, _, err := c.gh.Repositories.CreateFile(ctx, c.cfg.Owner, c.cfg.Repo, path,
		&gogithub.RepositoryContentFileOptions{
			Message: gogithub.String("Create post: " + post.Title),
			Content: []byte(content),
			Branch:  gogithub.String(c.cfg.Branch),
		})
	if err != nil {
		return fmt.Errorf("error creating post: %w", err)
	}

	post.FilePath = path
	return nil
}

// UpdatePost merges the partial update into the existing post and commits the
// result to the post's current file path.
func (c *Client) UpdatePost(ctx context.Context, slug model.Slug, update model.PostUpdate) (*model.Post, error) {
	post, err := c.GetPost(ctx, slug)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		post.Title = *update.Title
	}
	if update.Description != nil {
		post.Description = *update.Description
	}
	if update.Date != nil {
		post.Date = *update.Date
	}
	if update.Draft != nil {
		post.Draft = *update.Draft
	}
	if update.Tags != nil {
		post.Tags = *update.Tags
	}
	if update.Content != nil {
		post.Content = *update.Content
	}

	sha, err := c.fileSHA(ctx, post.FilePath)
	if err != nil {
		return nil, err
	}

	content := frontmatter.CreateContent(post.Title, post.Description, post.Date, post.Content, post.Draft, post.Tags)

	_, _, err = c.gh.Repositories.UpdateFile(ctx, c.cfg.Owner, c.cfg.Repo, post.FilePath,
		&gogithub.RepositoryContentFileOptions{
			Message: gogithub.String("Update post: " + post.Title),
			Content: []byte(content),
			SHA:     gogithub.String(sha),
			Branch:  gogithub.String(c.cfg.Branch),
		})
	if err != nil {
		return nil, fmt.Errorf("error updating post: %w", err)
	}

	return post, nil
}

// DeletePost removes the post file and anything in its images directory.
func (c *Client) DeletePost(ctx context.Context, slug model.Slug) error {
	post, err := c.GetPost(ctx, slug)
	if err != nil {
		return err
	}

	sha, err := c.fileSHA(ctx, post.FilePath)
	if err != nil {
		return err
	}

	_, _, err = c.gh.Repositories.DeleteFile(ctx, c.cfg.Owner, c.cfg.Repo, post.FilePath,
		&gogithub.RepositoryContentFileOptions{
			Message: gogithub.String("Delete post: " + post.Title),
			SHA:     gogithub.String(sha),
			Branch:  gogithub.String(c.cfg.Branch),
		})
	if err != nil {
		return fmt.Errorf("error deleting post: %w", err)
	}

	c.deleteImages(ctx, slug)
	return nil
}

func (c *Client) deleteImages(ctx context.Context, slug model.Slug) {
	_, dir, _, err := c.gh.Repositories.GetContents(ctx, c.cfg.Owner, c.cfg.Repo, c.imagesPath(slug),
		&gogithub.RepositoryContentGetOptions{Ref: c.cfg.Branch})
	if err != nil || dir == nil {
		return
	}

	for _, file := range dir {
		_, _, err := c.gh.Repositories.DeleteFile(ctx, c.cfg.Owner, c.cfg.Repo, file.GetPath(),
			&gogithub.RepositoryContentFileOptions{
				Message: gogithub.String("Delete image: " + file.GetName()),
				SHA:     gogithub.String(file.GetSHA()),
				Branch:  gogithub.String(c.cfg.Branch),
			})
		if err != nil {
			ghLogger.Warn().Err(err).Str("path", file.GetPath()).Msg("Error deleting post image")
		}
	}
}

// ImageRef points at an uploaded image, with the relative path and markdown
// snippet the editor inserts into the post body.
type ImageRef struct {
	Path         string `json:"path"`
	RelativePath string `json:"relative_path"`
	Markdown     string `json:"markdown"`
}

// UploadImage commits an image into the post's images directory, creating or
// updating as needed.
func (c *Client) UploadImage(ctx context.Context, slug model.Slug, filename string, content []byte) (*ImageRef, error) {
	path := c.imagesPath(slug) + "/" + filename

	opts := &gogithub.RepositoryContentFileOptions{
		Content: content,
		Branch:  gogithub.String(c.cfg.Branch),
	}

	sha, err := c.fileSHA(ctx, path)
	switch {
	case err == nil:
		opts.Message = gogithub.String("Update image: " + filename)
		opts.SHA = gogithub.String(sha)
		_, _, err = c.gh.Repositories.UpdateFile(ctx, c.cfg.Owner, c.cfg.Repo, path, opts)
	case errors.Is(err, ErrNotFound):
		opts.Message = gogithub.String("Add image: " + filename)
		_, _, err = c.gh.Repositories.CreateFile(ctx, c.cfg.Owner, c.cfg.Repo, path, opts)
	default:
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("error uploading image: %w", err)
	}

	relative := "./images/" + filename
	return &ImageRef{
		Path:         path,
		RelativePath: relative,
		Markdown:     fmt.Sprintf("![%s](%s)", filename, relative),
	}, nil
}

// GetImage fetches raw image bytes for the preview proxy.
func (c *Client) GetImage(ctx context.Context, slug model.Slug, filename string) ([]byte, error) {
	path := c.imagesPath(slug) + "/" + filename

	file, _, _, err := c.gh.Repositories.GetContents(ctx, c.cfg.Owner, c.cfg.Repo, path,
		&gogithub.RepositoryContentGetOptions{Ref: c.cfg.Branch})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error reading image: %w", err)
	}
	if file == nil {
		return nil, ErrNotFound
	}

	// Contents API inlines small files; larger ones come back empty and are
	// fetched through the blob API instead.
	content, cerr := file.GetContent()
	if cerr == nil && (content != "" || file.GetSize() == 0) {
		return []byte(content), nil
	}

	content, err = c.readBlob(ctx, file.GetSHA())
	if err != nil {
		return nil, fmt.Errorf("error reading image blob: %w", err)
	}
	return []byte(content), nil
}

// fileSHA resolves the current blob SHA of a repository path, required by the
// contents API for updates and deletes. Returns ErrNotFound for missing paths.
func (c *Client) fileSHA(ctx context.Context, path string) (string, error) {
	file, _, _, err := c.gh.Repositories.GetContents(ctx, c.cfg.Owner, c.cfg.Repo, path,
		&gogithub.RepositoryContentGetOptions{Ref: c.cfg.Branch})
	if err != nil {
		if isNotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("error resolving file sha: %w", err)
	}
	if file == nil {
		return "", ErrNotFound
	}
	return file.GetSHA(), nil
}

func isNotFound(err error) bool {
	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}
