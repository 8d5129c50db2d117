// Package openai answers messages no rule matched through the OpenAI
// Responses API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"wabot/pkg/config"
	"wabot/pkg/logger"
	"wabot/pkg/reply"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	CategoryModel = "model"

	defaultModel  = "gpt-5-mini"
	defaultSystem = "You are an automated assistant replying to chat messages. Answer briefly and politely in the sender's language."
)

type generator interface {
	Generate(ctx context.Context, system string, prompt string) (string, error)
}

// Responder tries the rule table first and asks the model only when no rule
// matched. Model failures degrade to the rule table's fallback.
type Responder struct {
	engine *reply.Engine
	gen    generator
	system string
	log    *slog.Logger
}

func New(cfg *config.Config, engine *reply.Engine, log *slog.Logger) (*Responder, error) {
	client, err := newClient(cfg.Providers.OpenAI, cfg.Reply.Model)
	if err != nil {
		return nil, err
	}
	return newResponder(engine, client, cfg.Reply.System, log), nil
}

func newResponder(engine *reply.Engine, gen generator, system string, log *slog.Logger) *Responder {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(system) == "" {
		system = defaultSystem
	}
	return &Responder{
		engine: engine,
		gen:    gen,
		system: system,
		log:    log.With("component", "reply.openai"),
	}
}

func (r *Responder) Respond(ctx context.Context, text string) (reply.Reply, error) {
	if rule, ok := r.engine.Match(text); ok {
		return reply.Reply{Text: rule.Response, Category: rule.Category}, nil
	}

	startedAt := time.Now()
	generated, err := r.gen.Generate(ctx, r.system, text)
	if err != nil {
		if ctx.Err() != nil {
			return reply.Reply{}, ctx.Err()
		}
		r.log.Warn("Model reply failed, using fallback",
			"duration_ms", time.Since(startedAt).Milliseconds(),
			"error", err,
		)
		return reply.Reply{Text: r.engine.Fallback(), Category: reply.CategoryFallback}, nil
	}

	r.log.Debug("Model reply generated",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"preview", logger.Preview(generated),
	)
	return reply.Reply{Text: generated, Category: CategoryModel}, nil
}

type client struct {
	client         osdk.Client
	model          string
	requestTimeout time.Duration
}

func newClient(cfg config.OpenAIProviderConfig, model string) (*client, error) {
	apiKey := resolveAPIKey(cfg)
	if apiKey == "" {
		return nil, errors.New("providers.openai.api_key_env is required or OPENAI_API_KEY must be set")
	}

	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	normalized, err := normalizeModel(model)
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if organization := strings.TrimSpace(cfg.Organization); organization != "" {
		opts = append(opts, option.WithOrganization(organization))
	}
	if project := strings.TrimSpace(cfg.Project); project != "" {
		opts = append(opts, option.WithProject(project))
	}

	requestTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}

	return &client{
		client:         osdk.NewClient(opts...),
		model:          normalized,
		requestTimeout: requestTimeout,
	}, nil
}

func (c *client) Generate(ctx context.Context, system string, prompt string) (string, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt is required")
	}

	response, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:        c.model,
		Instructions: osdk.String(system),
		Input:        responses.ResponseNewParamsInputUnion{OfString: osdk.String(prompt)},
	})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	text := strings.TrimSpace(response.OutputText())
	if text == "" {
		return "", errors.New("model returned no text")
	}
	return text, nil
}

func resolveAPIKey(cfg config.OpenAIProviderConfig) string {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey
		}
	}

	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

func normalizeModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("model is required")
	}

	providerID, modelID, found := strings.Cut(model, "/")
	if !found {
		return model, nil
	}

	providerID = strings.TrimSpace(providerID)
	modelID = strings.TrimSpace(modelID)
	if providerID == "" || modelID == "" {
		return "", errors.New("model is invalid")
	}
	if providerID != "openai" {
		return "", fmt.Errorf("model provider %q is not supported by openai provider", providerID)
	}

	return modelID, nil
}
