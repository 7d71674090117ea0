package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GistConfig configures the GitHub Gist state backend.
type GistConfig struct {
	BaseURL string
	GistID  string
	Token   string
	Timeout time.Duration
}

// GistStore keeps the run state in a GitHub Gist as state.json.
// Used on CI runners where no local disk survives between runs.
type GistStore struct {
	cfg    GistConfig
	client *http.Client
	logger *zap.Logger
}

// NewGistStore creates a gist-backed store.
func NewGistStore(cfg GistConfig, logger *zap.Logger) (*GistStore, error) {
	if cfg.GistID == "" || cfg.Token == "" {
		return nil, fmt.Errorf("gist state backend requires gist id and token")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GistStore{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("state"),
	}, nil
}

type gistFile struct {
	Content string `json:"content"`
}

type gistDocument struct {
	Files map[string]gistFile `json:"files"`
}

// Load fetches the gist and decodes the first .json file found.
// Any failure degrades to the zero state.
func (g *GistStore) Load(ctx context.Context) (RunState, error) {
	doc, err := g.fetch(ctx)
	if err != nil {
		g.logger.Warn("gist state load failed, starting empty", zap.Error(err))
		return RunState{}, nil
	}

	for name, file := range doc.Files {
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		var s RunState
		if err := json.Unmarshal([]byte(file.Content), &s); err != nil {
			g.logger.Warn("gist state corrupt, starting empty",
				zap.String("file", name), zap.Error(err))
			return RunState{}, nil
		}
		return s, nil
	}
	return RunState{}, nil
}

// Save PATCHes state.json into the gist, preserving any non-JSON files
// already stored alongside it.
func (g *GistStore) Save(ctx context.Context, s RunState) error {
	files := map[string]gistFile{}
	if doc, err := g.fetch(ctx); err == nil {
		for name, file := range doc.Files {
			if !strings.HasSuffix(name, ".json") {
				files[name] = gistFile{Content: file.Content}
			}
		}
	}

	content, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	files["state.json"] = gistFile{Content: string(content)}

	payload, err := json.Marshal(gistDocument{Files: files})
	if err != nil {
		return fmt.Errorf("marshal gist payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		fmt.Sprintf("%s/gists/%s", g.cfg.BaseURL, g.cfg.GistID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gist request: %w", err)
	}
	g.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("update gist: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update gist: status %d", resp.StatusCode)
	}
	return nil
}

func (g *GistStore) fetch(ctx context.Context) (*gistDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/gists/%s", g.cfg.BaseURL, g.cfg.GistID), nil)
	if err != nil {
		return nil, fmt.Errorf("build gist request: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch gist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch gist: status %d", resp.StatusCode)
	}

	var doc gistDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode gist: %w", err)
	}
	return &doc, nil
}

func (g *GistStore) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "token "+g.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
}
