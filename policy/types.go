package policy

import (
	"strconv"
	"time"
)

// Resource is a subscription or other billable entity from the catalog.
// Resources are read-only to the engine; they are loaded with the rule set
// and never mutated by evaluation.
type Resource struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// OwnerRules bound what the owner may do autonomously.
type OwnerRules struct {
	BlockedCategories     []string
	MaxCancellationAmount float64
}

// Delegation bounds what a single delegated identity may do.
// Whitelist entries are lowercased at load time; Expiry is normalized to UTC
// at load time (nil means no expiry). Invalid marks an entry whose expiry
// failed to parse: every evaluation for that identity denies.
type Delegation struct {
	Whitelist []string
	Expiry    *time.Time
	MaxAmount float64
	Invalid   bool
}

// GlobalRules apply to every requester.
type GlobalRules struct {
	RequireConfirmationAbove float64
}

// RuleSet is one immutable snapshot of policy rules plus the resource
// catalog. A RuleSet is never mutated after construction; reload replaces
// the whole snapshot.
type RuleSet struct {
	Catalog     []Resource
	Owner       OwnerRules
	Delegations map[string]Delegation
	Global      GlobalRules
}

// EmptyRuleSet returns the deny-by-default rule set used when no
// configuration could be loaded: no resources, no delegations, zero limits.
func EmptyRuleSet() *RuleSet {
	return &RuleSet{Delegations: make(map[string]Delegation)}
}

// Action identifies the kind of operation being evaluated. The set is
// closed: ParseAction rejects anything else with ErrInvalidAction.
type Action string

const (
	ActionCancel Action = "cancel"
	ActionSpend  Action = "spend"
	ActionModify Action = "modify"
	ActionAccess Action = "access"
)

// ParseAction converts an action string into a known Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionCancel, ActionSpend, ActionModify, ActionAccess:
		return Action(s), nil
	default:
		return "", ErrInvalidAction
	}
}

// Decision is the engine's verdict for one evaluation. Decisions are
// immutable once constructed; every evaluation produces exactly one and
// appends it to the audit log.
type Decision struct {
	ID         string    `json:"id"`
	Allowed    bool      `json:"allowed"`
	Reason     string    `json:"reason"`
	Action     Action    `json:"action"`
	ResourceID string    `json:"resource_id,omitempty"` // empty when the action is not resource-scoped
	Requester  string    `json:"requester"`
	Timestamp  time.Time `json:"timestamp"`
}

// formatAmount renders a monetary amount without trailing zeros, so reason
// strings read "₹500" rather than "₹500.000000".
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
