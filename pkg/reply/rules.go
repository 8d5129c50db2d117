// Package reply classifies inbound text against an ordered rule table and
// produces the response to send back.
package reply

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"wabot/pkg/config"

	"gopkg.in/yaml.v3"
)

// DefaultFallback is sent when no rule matches.
const DefaultFallback = "Thank you for your message. I'll process this and get back to you soon. 🤖"

// Rule maps a category of substrings to one response.
type Rule struct {
	Category string   `yaml:"category"`
	Patterns []string `yaml:"patterns"`
	Response string   `yaml:"response"`
}

// DefaultRules is the built-in rule table, in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category: "greeting",
			Patterns: []string{"hello", "hi", "hey", "good morning", "good afternoon"},
			Response: "Hello! 👋 This is an automated response. How can I help you today?",
		},
		{
			Category: "help",
			Patterns: []string{"help", "support", "assist", "how to"},
			Response: "I understand you need help. Please provide more details about your query, and I'll assist you. 🤝",
		},
		{
			Category: "thanks",
			Patterns: []string{"thank", "thanks", "appreciate"},
			Response: "You're welcome! Feel free to reach out if you need anything else. 😊",
		},
		{
			Category: "goodbye",
			Patterns: []string{"bye", "goodbye", "see you"},
			Response: "Goodbye! Have a great day! 👋",
		},
	}
}

// RuleFile is the on-disk rule table format.
type RuleFile struct {
	Fallback string `yaml:"fallback"`
	Rules    []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rule table. Rule order in the file is priority order.
func LoadRules(path string) (RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleFile{}, fmt.Errorf("read rules file: %w", err)
	}

	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return RuleFile{}, fmt.Errorf("parse rules file: %w", err)
	}
	if err := validateRules(file.Rules); err != nil {
		return RuleFile{}, fmt.Errorf("rules file %s: %w", path, err)
	}
	return file, nil
}

func validateRules(rules []Rule) error {
	if len(rules) == 0 {
		return errors.New("no rules defined")
	}

	categories := make(map[string]struct{}, len(rules))
	for i, rule := range rules {
		category := strings.TrimSpace(rule.Category)
		if category == "" {
			return fmt.Errorf("rule %d: category is required", i)
		}
		if _, dup := categories[category]; dup {
			return fmt.Errorf("rule %d: duplicate category %q", i, category)
		}
		categories[category] = struct{}{}

		if strings.TrimSpace(rule.Response) == "" {
			return fmt.Errorf("rule %q: response is required", category)
		}
		if len(rule.Patterns) == 0 {
			return fmt.Errorf("rule %q: at least one pattern is required", category)
		}
		for _, pattern := range rule.Patterns {
			if strings.TrimSpace(pattern) == "" {
				return fmt.Errorf("rule %q: empty pattern", category)
			}
		}
	}
	return nil
}

// EngineFromConfig builds the engine from cfg.RulesFile, or DefaultRules when
// no file is configured. cfg.Fallback overrides the file's fallback.
func EngineFromConfig(cfg config.ReplyConfig) (*Engine, error) {
	rules := DefaultRules()
	fallback := ""

	if path := strings.TrimSpace(cfg.RulesFile); path != "" {
		file, err := LoadRules(path)
		if err != nil {
			return nil, err
		}
		rules = file.Rules
		fallback = file.Fallback
	}

	if strings.TrimSpace(cfg.Fallback) != "" {
		fallback = cfg.Fallback
	}
	return NewEngine(rules, fallback), nil
}
