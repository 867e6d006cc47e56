package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
)

// Override guard: admin-configured CEL predicates vetting override
// submissions before they reach the store. A rule that evaluates to false
// denies the mutation with its reason code. Guards apply to writes only;
// the read/resolve path never consults them.

const GuardReasonDenied = "OVERRIDE_GUARD_DENIED"

var errGuardExprRequired = errors.New("GUARD_EXPR_REQUIRED")

type GuardRule struct {
	RuleID     string
	Expr       string
	ReasonCode string
}

type GuardDecision struct {
	Allowed    bool
	RuleID     string
	ReasonCode string
}

var newGuardCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("record", cel.MapType(cel.StringType, cel.StringType)))
}

var guardProgramCache sync.Map

type Guard struct {
	rules []GuardRule
}

func NewGuard(rules []GuardRule) (*Guard, error) {
	for _, rule := range rules {
		if strings.TrimSpace(rule.Expr) == "" {
			return nil, errGuardExprRequired
		}
		// Compile eagerly so a broken rule fails configuration, not the
		// first admin write.
		if _, err := loadOrCompileGuardProgram(rule.Expr); err != nil {
			return nil, fmt.Errorf("guard rule %s: %w", rule.RuleID, err)
		}
	}
	return &Guard{rules: rules}, nil
}

// Check evaluates every rule against the submission. The first rule that
// evaluates to false denies; evaluation errors also deny, since a guard
// that cannot run must not silently admit records.
func (g *Guard) Check(layer types.Layer, scopeKey string, kind types.Kind, payload string) GuardDecision {
	if g == nil || len(g.rules) == 0 {
		return GuardDecision{Allowed: true}
	}

	record := map[string]string{
		"layer":     string(layer),
		"scope_key": scopeKey,
		"kind":      string(kind),
		"payload":   payload,
	}

	for _, rule := range g.rules {
		ok, err := evalGuardExpr(rule.Expr, record)
		if err != nil || !ok {
			reason := strings.TrimSpace(rule.ReasonCode)
			if reason == "" {
				reason = GuardReasonDenied
			}
			return GuardDecision{Allowed: false, RuleID: rule.RuleID, ReasonCode: reason}
		}
	}
	return GuardDecision{Allowed: true}
}

func evalGuardExpr(expr string, record map[string]string) (bool, error) {
	program, err := loadOrCompileGuardProgram(expr)
	if err != nil {
		return false, err
	}
	out, _, err := program.Eval(map[string]any{"record": record})
	if err != nil {
		return false, err
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("guard expression must return bool")
	}
	return v, nil
}

func loadOrCompileGuardProgram(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errGuardExprRequired
	}
	if cached, ok := guardProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newGuardCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.New("guard expression output type mismatch")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	guardProgramCache.Store(expr, program)
	return program, nil
}
