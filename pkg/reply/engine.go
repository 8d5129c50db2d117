package reply

import "strings"

// Engine is the pure rule classifier. It is safe for concurrent use.
type Engine struct {
	rules    []Rule
	fallback string
}

// NewEngine copies rules and lower-cases their patterns. An empty fallback
// uses DefaultFallback.
func NewEngine(rules []Rule, fallback string) *Engine {
	compiled := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		patterns := make([]string, 0, len(rule.Patterns))
		for _, pattern := range rule.Patterns {
			if pattern = strings.ToLower(strings.TrimSpace(pattern)); pattern != "" {
				patterns = append(patterns, pattern)
			}
		}
		compiled = append(compiled, Rule{
			Category: strings.TrimSpace(rule.Category),
			Patterns: patterns,
			Response: rule.Response,
		})
	}

	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultFallback
	}
	return &Engine{rules: compiled, fallback: fallback}
}

// Match returns the first rule, in declaration order, with a pattern
// contained in text.
func (e *Engine) Match(text string) (Rule, bool) {
	lowered := strings.ToLower(text)
	for _, rule := range e.rules {
		for _, pattern := range rule.Patterns {
			if strings.Contains(lowered, pattern) {
				return rule, true
			}
		}
	}
	return Rule{}, false
}

// Classify returns the response for text, or the fallback.
func (e *Engine) Classify(text string) string {
	if rule, ok := e.Match(text); ok {
		return rule.Response
	}
	return e.fallback
}

// Fallback is the response used when no rule matches.
func (e *Engine) Fallback() string {
	return e.fallback
}
