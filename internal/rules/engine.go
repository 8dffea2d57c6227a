package rules

import (
	"context"
	"fmt"
	"math"
	"strings"

	"fxengine/internal/domain"
	"fxengine/internal/ports"
)

// equalityTolerance is the band within which == / = compare equal.
const equalityTolerance = 1e-4

// Pseudo-conditions recognised by exit evaluation. They are checked directly
// against the current price vs. SL/TP instead of being parsed.
const (
	pseudoHitStopLoss   = "hit_stop_loss"
	pseudoHitTakeProfit = "hit_take_profit"
)

// Snapshot is a mapping of indicator column name to its latest value, as
// produced by the feature pipeline for one bar.
type Snapshot map[string]float64

// Resolve looks up an operand token against the snapshot. Matching is
// case-insensitive and tries the parameterized forms NAME_period and
// NAME(period) before the bare name. NaN values resolve as missing.
func (s Snapshot) Resolve(name string, period int) (float64, bool) {
	var candidates []string
	if period > 0 {
		candidates = append(candidates,
			fmt.Sprintf("%s_%d", name, period),
			fmt.Sprintf("%s(%d)", name, period),
		)
	}
	candidates = append(candidates, name)
	for _, want := range candidates {
		for key, value := range s {
			if strings.EqualFold(key, want) {
				if math.IsNaN(value) {
					return 0, false
				}
				return value, true
			}
		}
	}
	return 0, false
}

// EntryResult reports whether a proposed trade direction is authorized.
type EntryResult struct {
	Valid        bool
	MatchedRules []string // Rule ids whose condition was satisfied
	FailedRules  []string // Rule ids evaluated but not satisfied
	Errors       []string // Per-rule annotations (parse failures, unresolved operands)
	Message      string
}

// ExitResult reports whether any exit rule fired.
type ExitResult struct {
	Triggered    bool
	MatchedRules []string
	Errors       []string
}

// Engine parses and evaluates trading-rule conditions against indicator
// snapshots. Malformed or unsatisfiable conditions evaluate to "not
// satisfied" with an annotation — bad configuration can never silently
// authorize a trade.
type Engine struct {
	logger ports.Logger
	cache  map[string]Node
}

// NewEngine creates a new rule engine.
func NewEngine(logger ports.Logger) *Engine {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &Engine{
		logger: logger,
		cache:  make(map[string]Node),
	}
}

// EvaluateEntry checks whether the proposed direction is authorized by the
// rule set. Rules whose action matches the direction gate the trade: at
// least one must be satisfied. With no same-direction rules configured, a
// satisfied opposite-direction rule vetoes the proposal; with no rules for
// either direction the trade is allowed.
func (e *Engine) EvaluateEntry(ctx context.Context, ruleSet []domain.Rule, snapshot Snapshot, proposed domain.Direction) EntryResult {
	result := EntryResult{}
	action := domain.RuleAction(proposed)
	opposite := domain.RuleAction(proposed.Opposite())

	var matching, opposing []domain.Rule
	for _, r := range ruleSet {
		switch r.Action {
		case action:
			matching = append(matching, r)
		case opposite:
			opposing = append(opposing, r)
		}
	}

	if len(matching) > 0 {
		for _, r := range matching {
			ok, errs := e.evaluateCondition(ctx, r, snapshot)
			result.Errors = append(result.Errors, errs...)
			if ok {
				result.MatchedRules = append(result.MatchedRules, r.ID)
			} else {
				result.FailedRules = append(result.FailedRules, r.ID)
			}
		}
		if len(result.MatchedRules) > 0 {
			result.Valid = true
			result.Message = fmt.Sprintf("%d %s rule(s) satisfied", len(result.MatchedRules), proposed)
		} else {
			result.Message = fmt.Sprintf("no %s rule satisfied", proposed)
		}
		return result
	}

	if len(opposing) > 0 {
		for _, r := range opposing {
			ok, errs := e.evaluateCondition(ctx, r, snapshot)
			result.Errors = append(result.Errors, errs...)
			if ok {
				result.MatchedRules = append(result.MatchedRules, r.ID)
			}
		}
		if len(result.MatchedRules) > 0 {
			result.Valid = false
			result.Message = fmt.Sprintf("opposing %s signal blocks %s trade", proposed.Opposite(), proposed)
			return result
		}
	}

	// Unconfigured directions fail open.
	result.Valid = true
	result.Message = fmt.Sprintf("no rules configured for %s", proposed)
	return result
}

// EvaluateExit checks whether any exit rule fires for an open position.
// hit_stop_loss / hit_take_profit pseudo-conditions compare the snapshot's
// current price against the supplied levels; all other rules are evaluated
// as ordinary conditions. A single match triggers the exit.
func (e *Engine) EvaluateExit(ctx context.Context, ruleSet []domain.Rule, snapshot Snapshot, direction domain.Direction, entryPrice, stopLoss, takeProfit float64) ExitResult {
	result := ExitResult{}
	for _, r := range ruleSet {
		cond := strings.ToLower(strings.TrimSpace(r.Condition))
		switch cond {
		case pseudoHitStopLoss:
			price, ok := snapshot.Resolve("close", 0)
			if !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("rule %s: no current price in snapshot", r.ID))
				continue
			}
			if stopLossHit(direction, price, stopLoss) {
				result.MatchedRules = append(result.MatchedRules, r.ID)
			}
		case pseudoHitTakeProfit:
			price, ok := snapshot.Resolve("close", 0)
			if !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("rule %s: no current price in snapshot", r.ID))
				continue
			}
			if takeProfitHit(direction, price, takeProfit) {
				result.MatchedRules = append(result.MatchedRules, r.ID)
			}
		default:
			ok, errs := e.evaluateCondition(ctx, r, snapshot)
			result.Errors = append(result.Errors, errs...)
			if ok {
				result.MatchedRules = append(result.MatchedRules, r.ID)
			}
		}
	}
	result.Triggered = len(result.MatchedRules) > 0
	return result
}

func stopLossHit(direction domain.Direction, price, stopLoss float64) bool {
	if stopLoss <= 0 {
		return false
	}
	if direction == domain.Buy {
		return price <= stopLoss
	}
	return price >= stopLoss
}

func takeProfitHit(direction domain.Direction, price, takeProfit float64) bool {
	if takeProfit <= 0 {
		return false
	}
	if direction == domain.Buy {
		return price >= takeProfit
	}
	return price <= takeProfit
}

// evaluateCondition parses (with caching) and evaluates one rule's
// condition. Failures resolve to false plus annotations.
func (e *Engine) evaluateCondition(ctx context.Context, rule domain.Rule, snapshot Snapshot) (bool, []string) {
	node, ok := e.cache[rule.Condition]
	if !ok {
		var err error
		node, err = Parse(rule.Condition)
		if err != nil {
			e.logger.Warn(ctx, "rule condition failed to parse",
				map[string]interface{}{"rule_id": rule.ID, "condition": rule.Condition, "error": err.Error()})
			return false, []string{fmt.Sprintf("rule %s: %v", rule.ID, err)}
		}
		e.cache[rule.Condition] = node
	}
	var errs []string
	satisfied := e.eval(node, snapshot, rule.ID, &errs)
	return satisfied, errs
}

func (e *Engine) eval(node Node, snapshot Snapshot, ruleID string, errs *[]string) bool {
	switch n := node.(type) {
	case *Or:
		for _, term := range n.Terms {
			if e.eval(term, snapshot, ruleID, errs) {
				return true
			}
		}
		return false
	case *And:
		for _, term := range n.Terms {
			if !e.eval(term, snapshot, ruleID, errs) {
				return false
			}
		}
		return true
	case *Comparison:
		left, ok := e.resolve(n.Left, snapshot, ruleID, errs)
		if !ok {
			return false
		}
		right, ok := e.resolve(n.Right, snapshot, ruleID, errs)
		if !ok {
			return false
		}
		return compare(left, n.Op, right)
	default:
		*errs = append(*errs, fmt.Sprintf("rule %s: unknown node type %T", ruleID, node))
		return false
	}
}

func (e *Engine) resolve(op Operand, snapshot Snapshot, ruleID string, errs *[]string) (float64, bool) {
	if op.Literal != nil {
		return *op.Literal, true
	}
	value, ok := snapshot.Resolve(op.Indicator, op.Period)
	if !ok {
		*errs = append(*errs, fmt.Sprintf("rule %s: operand %s unresolved", ruleID, op.String()))
		return 0, false
	}
	return value, true
}

func compare(left float64, op string, right float64) bool {
	switch op {
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	case ">=":
		return left >= right
	case "==", "=":
		return math.Abs(left-right) < equalityTolerance
	case "!=":
		return math.Abs(left-right) >= equalityTolerance
	default:
		return false
	}
}
