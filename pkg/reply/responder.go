package reply

import (
	"context"
	"log/slog"
)

// CategoryFallback labels replies that matched no rule.
const CategoryFallback = "fallback"

// Reply is a generated response.
type Reply struct {
	Text     string
	Category string
}

// Responder produces the reply for one inbound message body.
type Responder interface {
	Respond(ctx context.Context, text string) (Reply, error)
}

// RuleResponder answers from the rule table only.
type RuleResponder struct {
	engine *Engine
	log    *slog.Logger
}

func NewRuleResponder(engine *Engine, log *slog.Logger) *RuleResponder {
	if log == nil {
		log = slog.Default()
	}
	return &RuleResponder{engine: engine, log: log.With("component", "reply.rules")}
}

func (r *RuleResponder) Respond(_ context.Context, text string) (Reply, error) {
	if rule, ok := r.engine.Match(text); ok {
		r.log.Debug("Rule matched", "category", rule.Category)
		return Reply{Text: rule.Response, Category: rule.Category}, nil
	}

	r.log.Debug("No rule matched")
	return Reply{Text: r.engine.Fallback(), Category: CategoryFallback}, nil
}
