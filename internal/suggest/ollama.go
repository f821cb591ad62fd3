package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/httpclient"
	"github.com/icewall905/tuneforge/internal/logger"
)

// fallbackModel is used when auto detection finds nothing.
const fallbackModel = "llama3"

type OllamaConfig struct {
	URL           string
	Model         string
	ContextWindow int
}

// OllamaSource talks to Ollama's native generate endpoint.
type OllamaSource struct {
	client *httpclient.Client
	logger *logger.Logger
	cfg    OllamaConfig

	detected      string
	fallbackUntil time.Time
	now           func() time.Time
	mu            sync.Mutex
}

func NewOllamaSource(client *httpclient.Client, cfg OllamaConfig, log *logger.Logger) *OllamaSource {
	if client == nil {
		client = httpclient.NewClient(&http.Client{}, constants.DefaultRequestGap)
	}
	if log == nil {
		log = logger.Default()
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Model == "" {
		cfg.Model = constants.DefaultOllamaModel
	}
	return &OllamaSource{
		client: client,
		logger: log.WithComponent("ollama"),
		cfg:    cfg,
		now:    time.Now,
	}
}

func (o *OllamaSource) Name() string {
	return constants.ProviderOllama
}

type generateOptions struct {
	NumCtx      int      `json:"num_ctx,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Seed        int64    `json:"seed,omitempty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (o *OllamaSource) Suggest(ctx context.Context, req Request) ([]domain.Candidate, error) {
	model, err := o.model(ctx, req.Params.Model)
	if err != nil {
		return nil, err
	}

	body := generateRequest{
		Model:  model,
		Prompt: req.Prompt,
		Stream: false,
		Options: generateOptions{
			NumCtx: o.cfg.ContextWindow,
			Seed:   req.Seed,
		},
	}
	if req.Params.Temperature > 0 {
		t := req.Params.Temperature
		body.Options.Temperature = &t
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.URL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // deferred cleanup

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", out.Error)
	}

	o.logger.Debug("Ollama response", "model", model, "length", len(out.Response))
	return ParseCandidates(out.Response)
}

// model picks the request model, the configured one, or a detected one
// when configured as "auto".
func (o *OllamaSource) model(ctx context.Context, requested string) (string, error) {
	if requested != "" && !strings.EqualFold(requested, "auto") {
		return requested, nil
	}
	if !strings.EqualFold(o.cfg.Model, "auto") {
		return o.cfg.Model, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.detected != "" {
		return o.detected, nil
	}
	if o.now().Before(o.fallbackUntil) {
		return fallbackModel, nil
	}

	name, err := o.detectModel(ctx)
	if err != nil {
		o.logger.Warn("Model auto detection failed, using fallback", "fallback", fallbackModel, "error", err)
		o.fallbackUntil = o.now().Add(constants.ModelDetectRetry)
		return fallbackModel, nil
	}
	o.logger.Info("Auto-detected model", "model", name)
	o.detected = name
	return name, nil
}

// Models lists the models installed on the server.
func (o *OllamaSource) Models(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.URL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama tags request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // deferred cleanup

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama tags returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode ollama tags: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (o *OllamaSource) detectModel(ctx context.Context) (string, error) {
	names, err := o.Models(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no models installed")
	}
	for _, n := range names {
		lower := strings.ToLower(n)
		if strings.Contains(lower, "llama3") || strings.Contains(lower, "mistral") {
			return n, nil
		}
	}
	return names[0], nil
}
