package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/scribehq/scribe/internal/auth"
	"github.com/scribehq/scribe/internal/config"
	"github.com/scribehq/scribe/internal/db"
	"github.com/scribehq/scribe/internal/editor"
	"github.com/scribehq/scribe/internal/frontmatter"
	"github.com/scribehq/scribe/internal/github"
	"github.com/scribehq/scribe/internal/images"
	"github.com/scribehq/scribe/internal/logger"
	"github.com/scribehq/scribe/internal/model"
	"github.com/scribehq/scribe/internal/render"
	"github.com/scribehq/scribe/internal/sse"
	"github.com/scribehq/scribe/internal/util"
	"github.com/scribehq/scribe/internal/util/compression"
)

var l zerolog.Logger

var clients = sse.NewClients()

var authProvider auth.Provider
var draftManager *editor.Manager
var ghConfig github.Config

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	if err := config.LoadConfig(configPath); err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}
	cfg := config.AppConfig

	l = logger.New(cfg.Logging.Level)
	config.SetLogger(l)
	db.SetLogger(l)
	editor.SetLogger(l)
	render.SetLogger(l)
	github.SetLogger(l)
	auth.SetLogger(l)

	ghConfig = github.Config{
		Owner:       cfg.GitHub.Owner,
		Repo:        cfg.GitHub.Repo,
		Branch:      cfg.GitHub.Branch,
		ContentPath: cfg.GitHub.ContentPath,
	}

	store, closeStore, err := newDraftStore(cfg.Editor.Drafts)
	if err != nil {
		l.Fatal().Err(err).Msg("Error initializing draft store")
	}
	defer closeStore()

	draftManager = editor.NewManager(store, editor.SchedulerConfig{
		DirtyCheckInterval: time.Duration(cfg.Editor.Autosave.DirtyCheckIntervalSeconds) * time.Second,
		PersistInterval:    time.Duration(cfg.Editor.Autosave.PersistIntervalSeconds) * time.Second,
	})
	editorHandler := editor.NewHandler(draftManager, clients)

	authProvider = auth.NewGitHubOAuthProvider(
		os.Getenv("GITHUB_CLIENT_ID"),
		os.Getenv("GITHUB_CLIENT_SECRET"),
		cfg.Auth,
	)

	mux := http.NewServeMux()

	authProvider.Routes(mux)

	mux.HandleFunc("GET /api/auth/me", withGitHub(serveCurrentUser))

	mux.HandleFunc("GET /api/posts", withGitHub(serveListPosts))
	mux.HandleFunc("POST /api/posts", withGitHub(serveCreatePost))
	mux.HandleFunc("GET /api/posts/{slug}", withGitHub(serveGetPost))
	mux.HandleFunc("PUT /api/posts/{slug}", withGitHub(serveUpdatePost))
	mux.HandleFunc("DELETE /api/posts/{slug}", withGitHub(serveDeletePost))

	mux.HandleFunc("POST /api/posts/{slug}/images", withGitHub(serveUploadImage))
	mux.HandleFunc("GET /api/posts/{slug}/images/{filename}", withGitHub(serveImageProxy))

	mux.HandleFunc("POST /api/preview", requireAuth(servePreview))

	mux.HandleFunc("POST /api/editor/sessions", requireAuth(editorHandler.HandleOpenSession))
	mux.HandleFunc("GET /api/editor/sessions/{id}", requireAuth(editorHandler.HandleGetSession))
	mux.HandleFunc("DELETE /api/editor/sessions/{id}", requireAuth(editorHandler.HandleCloseSession))
	mux.HandleFunc("PUT /api/editor/sessions/{id}/state", requireAuth(editorHandler.HandleReportState))
	mux.HandleFunc("POST /api/editor/sessions/{id}/save", requireAuth(editorHandler.HandleSaveDraft))
	mux.HandleFunc("POST /api/editor/sessions/{id}/remote-loaded", requireAuth(editorHandler.HandleRemoteLoaded))
	mux.HandleFunc("POST /api/editor/sessions/{id}/recovery", requireAuth(editorHandler.HandleResolveRecovery))

	mux.HandleFunc("GET /api/events", eventsHandler)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"name":        cfg.Site.Name,
			"description": cfg.Site.Description,
		})
	})

	server := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: secureHeaders(mux.ServeHTTP),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		l.Info().Str("addr", server.Addr).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()
	l.Info().Msg("Shutting down")

	draftManager.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("Error shutting down server")
	}
}

// newDraftStore builds the configured draft persistence backend. The returned
// closer releases the backing database for the sqlite store and is a no-op for
// the others.
func newDraftStore(cfg config.DraftsConfig) (editor.Store, func(), error) {
	switch cfg.Store {
	case "fs":
		return editor.NewFSStore(cfg.Dir), func() {}, nil
	case "memory":
		return editor.NewMemoryStore(), func() {}, nil
	case "sqlite":
		compressor, err := compression.ForName(cfg.Compression)
		if err != nil {
			return nil, nil, err
		}
		database := db.NewSQLite(cfg.Database)
		if err := database.Init(); err != nil {
			return nil, nil, err
		}
		return editor.NewSQLiteStore(database, compressor), func() {
			if err := database.Close(); err != nil {
				l.Error().Err(err).Msg("Error closing database")
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown draft store: %s", cfg.Store)
	}
}

// withGitHub enforces an authenticated session and hands the handler a GitHub
// client backed by the session's access token.
func withGitHub(next func(w http.ResponseWriter, r *http.Request, gh *github.Client)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := authProvider.EnforceToken(w, r)
		if err != nil {
			return
		}
		next(w, r, github.NewClient(r.Context(), token, ghConfig))
	}
}

func requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authProvider.EnforceToken(w, r); err != nil {
			return
		}
		next(w, r)
	}
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		h(w, r)
	}
}

func serveCurrentUser(w http.ResponseWriter, r *http.Request, gh *github.Client) {
	user, err := gh.CurrentUser(r.Context())
	if err != nil {
		l.Error().Err(err).Msg("Error fetching current user")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func serveListPosts(w http.ResponseWriter, r *http.Request, gh *github.Client) {
	includeDrafts := r.URL.Query().Get("include_drafts") == "true"

	posts, err := gh.ListPosts(r.Context(), includeDrafts)
	if err != nil {
		l.Error().Err(err).Msg("Error listing posts")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, model.PostList{Posts: posts, Total: len(posts)})
}

type createPostRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Draft       bool     `json:"draft"`
	Tags        []string `json:"tags"`
	Content     string   `json:"content"`
	Slug        string   `json:"slug"`
}

func serveCreatePost(w http.ResponseWriter, r *http.Request, gh *github.Client) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	slug := req.Slug
	if slug == "" {
		slug = frontmatter.GenerateSlug(req.Title)
	}

	post := &model.Post{
		Slug:        model.Slug(slug),
		Title:       req.Title,
		Description: req.Description,
		Date:        parseDateOrToday(req.Date),
		Draft:       req.Draft,
		Content:     req.Content,
	}

	tags, err := model.ValidateTags(req.Tags)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	post.Tags = tags

	if err := post.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if err := gh.CreatePost(r.Context(), post); err != nil {
		if errors.Is(err, github.ErrAlreadyExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		l.Error().Err(err).Str("slug", slug).Msg("Error creating post")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	// The new-post draft is now committed content.
	if err := draftManager.ClearDraft(editor.ContextForNewPost()); err != nil {
		l.Warn().Err(err).Msg("Error clearing new-post draft")
	}

	writeJSON(w, http.StatusCreated, post)
}

func serveGetPost(w http.ResponseWriter, r *http.Request, gh *github.Client) {
	slug := model.Slug(r.PathValue("slug"))
	if err := slug.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	post, err := gh.GetPost(r.Context(), slug)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			http.Error(w, fmt.Sprintf(config.ErrPostNotFoundFmt, slug), http.StatusNotFound)
			return
		}
		l.Error().Err(err).Str("slug", string(slug)).Msg("Error reading post")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

type updatePostRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Date        *string   `json:"date"`
	Draft       *bool     `json:"draft"`
	Tags        *[]string `json:"tags"`
	Content     *string   `json:"content"`
}

func serveUpdatePost(w http.ResponseWriter, r *http.Request, gh *github.Client) {
	slug := model.Slug(r.PathValue("slug"))
	if err := slug.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var req updatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	update := model.PostUpdate{
		Title:       req.Title,
		Description: req.Description,
		Draft:       req.Draft,
		Content:     req.Content,
	}
	if req.Date != nil {
		date := parseDateOrToday(*req.Date)
		update.Date = &date
	}
	if req.Tags != nil {
		tags, err := model.ValidateTags(*req.Tags)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		update.Tags = &tags
	}

	post, err := gh.UpdatePost(r.Context(), slug, update)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			http.Error(w, fmt.Sprintf(config.ErrPostNotFoundFmt, slug), http.StatusNotFound)
			return
		}
		l.Error().Err(err).Str("slug", string(slug)).Msg("Error updating post")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	// The edit draft is now committed content.
	if err := draftManager.ClearDraft(editor.ContextForPost(slug)); err != nil {
		l.Warn().Err(err).Str("slug", string(slug)).Msg("Error clearing post draft")
	}

	writeJSON(w, http.StatusOK, post)
}

func serveDeletePost(w http.ResponseWriter, r *http.Request, gh *github.Client) {
	slug := model.Slug(r.PathValue("slug"))
	if err := slug.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if err := gh.DeletePost(r.Context(), slug); err != nil {
		if errors.Is(err, github.ErrNotFound) {
			http.Error(w, fmt.Sprintf(config.ErrPostNotFoundFmt, slug), http.StatusNotFound)
			return
		}
		l.Error().Err(err).Str("slug", string(slug)).Msg("Error deleting post")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	if err := draftManager.ClearDraft(editor.ContextForPost(slug)); err != nil {
		l.Warn().Err(err).Str("slug", string(slug)).Msg("Error clearing post draft")
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Post deleted"})
}

func serveUploadImage(w http.ResponseWriter, r *http.Request, gh *github.Client) {
	slug := model.Slug(r.PathValue("slug"))
	if err := slug.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	cfg := config.AppConfig.Images
	maxBytes := int64(cfg.MaxUploadSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !images.Allowed(contentType) {
		http.Error(w, "unsupported image type: "+contentType, http.StatusUnsupportedMediaType)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "error reading upload", http.StatusBadRequest)
		return
	}

	optimized, ext := images.Optimize(content, contentType, cfg.MaxDimension, cfg.JPEGQuality)
	filename := images.UniqueFilename(header.Filename, ext)

	ref, err := gh.UploadImage(r.Context(), slug, filename, optimized)
	if err != nil {
		l.Error().Err(err).Str("slug", string(slug)).Msg("Error uploading image")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

func serveImageProxy(w http.ResponseWriter, r *http.Request, gh *github.Client) {
	slug := model.Slug(r.PathValue("slug"))
	if err := slug.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	filename, err := images.ValidateProxyPath(r.PathValue("filename"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	content, err := gh.GetImage(r.Context(), slug, filename)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		l.Error().Err(err).Str("filename", filename).Msg("Error proxying image")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, images.ContentTypeForPath(filename))
	w.Header().Set(config.HCacheControl, "public, max-age=3600")
	w.Header().Set(config.HETag, util.ContentHash(content))
	w.Write(content)
}

type previewRequest struct {
	Content string `json:"content"`
}

func servePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	md := []byte(req.Content)
	html := render.RenderMarkdownCached(md, util.ContentHash(md), config.AppConfig.Render.SyntaxTheme)

	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(http.StatusOK)
	w.Write(html)
}

// eventsHandler streams autosave state transitions for one editing context.
func eventsHandler(w http.ResponseWriter, r *http.Request) {
	editCtx := r.URL.Query().Get("context")
	if editCtx == "" {
		http.Error(w, "context parameter required", http.StatusBadRequest)
		return
	}

	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	client := &sse.Client{
		Msg:   make(chan string),
		Topic: editor.Context(editCtx).Key(),
	}

	clients.Add(client)
	l.Debug().Str("context", editCtx).Msg("New SSE client connected")

	defer func() {
		clients.Delete(client)
		l.Debug().Str("context", editCtx).Msg("SSE client disconnected")
	}()

	notify := r.Context().Done()
	for {
		select {
		case msg := <-client.Msg:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-notify:
			return
		}
	}
}

func parseDateOrToday(date string) time.Time {
	if t, err := time.Parse(frontmatter.DateLayout, date); err == nil {
		return t
	}
	return time.Now().UTC().Truncate(24 * time.Hour)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		l.Error().Err(err).Msg("Error encoding response")
	}
}
