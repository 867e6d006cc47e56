package server

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/asoforge/asoforge/modules/ruleset/services"
)

type guardRulesFile struct {
	Version int `yaml:"version"`
	Rules   []struct {
		RuleID     string `yaml:"rule_id"`
		Expr       string `yaml:"expr"`
		ReasonCode string `yaml:"reason_code"`
	} `yaml:"rules"`
}

// loadGuard reads admin guard rules from GUARD_RULES_PATH. The file is
// optional; without it every submission passes the guard.
func loadGuard() (*services.Guard, error) {
	path := os.Getenv("GUARD_RULES_PATH")
	if path == "" {
		return services.NewGuard(nil)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f guardRulesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if f.Version != 1 {
		return nil, errors.New("guard: unsupported version")
	}

	rules := make([]services.GuardRule, 0, len(f.Rules))
	for _, r := range f.Rules {
		rules = append(rules, services.GuardRule{
			RuleID:     r.RuleID,
			Expr:       r.Expr,
			ReasonCode: r.ReasonCode,
		})
	}
	return services.NewGuard(rules)
}
