package openai

import (
	"context"
	"errors"
	"testing"

	"wabot/pkg/config"
	"wabot/pkg/reply"
)

type stubGenerator struct {
	text   string
	err    error
	calls  int
	system string
}

func (s *stubGenerator) Generate(_ context.Context, system string, _ string) (string, error) {
	s.calls++
	s.system = system
	return s.text, s.err
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := &config.Config{}
	_, err := New(cfg, reply.NewEngine(reply.DefaultRules(), ""), nil)
	if err == nil {
		t.Fatal("expected error when API key is missing")
	}
}

func TestNewUsesConfiguredAPIKeyEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TEST_OPENAI_API_KEY", "sk-test")

	cfg := &config.Config{}
	cfg.Providers.OpenAI.APIKeyEnv = "TEST_OPENAI_API_KEY"

	responder, err := New(cfg, reply.NewEngine(reply.DefaultRules(), ""), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if responder == nil {
		t.Fatal("expected responder")
	}
}

func TestNewRejectsForeignModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-default")

	cfg := &config.Config{}
	cfg.Reply.Model = "anthropic/claude"

	if _, err := New(cfg, reply.NewEngine(reply.DefaultRules(), ""), nil); err == nil {
		t.Fatal("expected error for foreign model provider")
	}
}

func TestRespondPrefersRules(t *testing.T) {
	gen := &stubGenerator{text: "model says hi"}
	responder := newResponder(reply.NewEngine(reply.DefaultRules(), ""), gen, "", nil)

	got, err := responder.Respond(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if got.Category != "greeting" {
		t.Fatalf("category = %q, want greeting", got.Category)
	}
	if gen.calls != 0 {
		t.Fatalf("model called %d times for a rule match", gen.calls)
	}
}

func TestRespondUsesModelWhenNoRuleMatches(t *testing.T) {
	gen := &stubGenerator{text: "Your parcel ships tomorrow."}
	responder := newResponder(reply.NewEngine(reply.DefaultRules(), ""), gen, "", nil)

	got, err := responder.Respond(context.Background(), "where is my parcel")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if got.Category != CategoryModel || got.Text != "Your parcel ships tomorrow." {
		t.Fatalf("Respond() = %+v", got)
	}
	if gen.system != defaultSystem {
		t.Fatalf("system = %q", gen.system)
	}
}

func TestRespondFallsBackOnModelError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("rate limited")}
	responder := newResponder(reply.NewEngine(reply.DefaultRules(), "later"), gen, "be nice", nil)

	got, err := responder.Respond(context.Background(), "where is my parcel")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if got.Category != reply.CategoryFallback || got.Text != "later" {
		t.Fatalf("Respond() = %+v", got)
	}
	if gen.system != "be nice" {
		t.Fatalf("system = %q", gen.system)
	}
}

func TestRespondReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &stubGenerator{err: context.Canceled}
	responder := newResponder(reply.NewEngine(reply.DefaultRules(), ""), gen, "", nil)

	if _, err := responder.Respond(ctx, "where is my parcel"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Respond() error = %v, want context.Canceled", err)
	}
}

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain model", input: "gpt-5-mini", want: "gpt-5-mini"},
		{name: "openai prefix", input: "openai/gpt-5-mini", want: "gpt-5-mini"},
		{name: "other provider", input: "anthropic/claude", wantErr: true},
		{name: "missing model id", input: "openai/", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeModel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalizeModel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("normalizeModel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
