// Package piston runs bell-ringer submissions on a Piston code execution API.
package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pyquest-gamification/internal/infra/memory"
	"pyquest-gamification/internal/logger"
)

const (
	DefaultURL             = "https://emkc.org/api/v2/piston"
	DefaultLanguage        = "python"
	DefaultFallbackVersion = "3.10.0"
)

type Config struct {
	URL             string
	Language        string
	FallbackVersion string
	Timeout         time.Duration
	RuntimeTTL      time.Duration
}

// Client executes code remotely. The language version is looked up once per
// RuntimeTTL; lookup failures fall back to FallbackVersion.
type Client struct {
	http     *http.Client
	cfg      Config
	runtimes *memory.Cache[string]
	log      *logger.Logger
}

func New(cfg Config, httpClient *http.Client, log *logger.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.FallbackVersion == "" {
		cfg.FallbackVersion = DefaultFallbackVersion
	}
	if cfg.RuntimeTTL <= 0 {
		cfg.RuntimeTTL = time.Hour
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		http:     httpClient,
		cfg:      cfg,
		runtimes: memory.NewCache[string](cfg.RuntimeTTL),
		log:      logger.OrNop(log),
	}
}

type runtime struct {
	Language string `json:"language"`
	Version  string `json:"version"`
}

type file struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type executeRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Files    []file `json:"files"`
	Stdin    string `json:"stdin"`
}

type executeResponse struct {
	Run struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
		Output string `json:"output"`
		Code   *int   `json:"code"`
	} `json:"run"`
	Message string `json:"message"`
}

// Run executes code with stdin and returns the combined output.
func (c *Client) Run(ctx context.Context, code, stdin string) (string, error) {
	body, err := json.Marshal(executeRequest{
		Language: c.cfg.Language,
		Version:  c.Version(ctx),
		Files:    []file{{Name: "main.py", Content: code}},
		Stdin:    stdin,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/execute", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("piston execute: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("piston execute: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("piston execute: decode: %w", err)
	}
	return out.Run.Output, nil
}

// Version returns the runtime version for the configured language.
func (c *Client) Version(ctx context.Context) string {
	v, err := c.runtimes.Get(ctx, c.cfg.Language, c.lookupVersion)
	if err != nil {
		c.log.Warn("piston runtime lookup failed, using fallback", "language", c.cfg.Language, "fallback", c.cfg.FallbackVersion, "error", err)
		return c.cfg.FallbackVersion
	}
	return v
}

func (c *Client) lookupVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/runtimes", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("runtimes: status %d", resp.StatusCode)
	}
	var runtimes []runtime
	if err := json.NewDecoder(resp.Body).Decode(&runtimes); err != nil {
		return "", fmt.Errorf("runtimes: decode: %w", err)
	}
	for _, rt := range runtimes {
		if rt.Language == c.cfg.Language {
			return rt.Version, nil
		}
	}
	return "", fmt.Errorf("runtimes: no %s runtime", c.cfg.Language)
}
