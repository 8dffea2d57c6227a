package domain

// Rule is a human-authored trading rule: a boolean condition over named
// indicator values and the action it authorizes. Rules are externally
// configured and treated as immutable.
type Rule struct {
	ID          string     // Stable identifier, used in evaluation results
	Condition   string     // Boolean expression, e.g. "RSI < 30 AND ADX > 25"
	Action      RuleAction // BUY, SELL or CLOSE
	Description string     // Human description for diagnostics
}
