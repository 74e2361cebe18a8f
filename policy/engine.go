package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/subguard/guardian/internal/logger"
)

// DefaultOwner is the requester identity treated as the account owner
// unless the engine is constructed with a different one.
const DefaultOwner = "owner"

// Stable reason strings. Tests and callers match on these prefixes, so the
// cause-to-prefix mapping must not change between releases.
const (
	ReasonNotFound        = "Subscription not found."
	ReasonOwnerAllow      = "Action permitted by owner policies."
	ReasonDelegationAllow = "Action permitted by delegation policies."
)

func reasonNoPolicy(identity string) string {
	return fmt.Sprintf("No delegation policies defined for user '%s'.", identity)
}

func reasonInvalidRules(identity string) string {
	return fmt.Sprintf("DELEGATION BLOCK: Delegation rules for user '%s' are invalid.", identity)
}

func reasonExpired() string {
	return "DELEGATION BLOCK: Access has expired."
}

func reasonNotWhitelisted(identity, name string) string {
	return fmt.Sprintf("DELEGATION BLOCK: User '%s' is not authorized to manage '%s'.", identity, name)
}

func reasonCategoryBlock(category string) string {
	return fmt.Sprintf("CATEGORY BLOCK: Cannot cancel '%s' subscriptions autonomously.", category)
}

func reasonAmountBlock(amount, limit float64) string {
	return fmt.Sprintf("AMOUNT BLOCK: Subscription cost ($%s) exceeds autonomous cancellation limit ($%s).",
		formatAmount(amount), formatAmount(limit))
}

func reasonConfirmationRequired(amount, threshold float64) string {
	return fmt.Sprintf("CONFIRMATION REQUIRED: Amount $%s exceeds confirmation threshold ($%s).",
		formatAmount(amount), formatAmount(threshold))
}

func reasonBudgetBlock(amount, limit float64, identity string) string {
	return fmt.Sprintf("BUDGET BLOCK: Amount $%s exceeds spend limit ($%s) for user '%s'.",
		formatAmount(amount), formatAmount(limit), identity)
}

// Engine evaluates action requests against the active rule set and records
// every Decision in its audit log. The engine is stateless across calls:
// each evaluation reads one rule set snapshot, and the audit append is the
// only mutation. Safe for concurrent use.
type Engine struct {
	store *Store
	audit *AuditLog
	owner string
}

// NewEngine creates an engine with the default owner identity.
func NewEngine(store *Store) *Engine {
	return NewEngineWithOwner(store, DefaultOwner)
}

// NewEngineWithOwner creates an engine treating the given identity as the
// account owner. Multiple engines with different owners can coexist.
func NewEngineWithOwner(store *Store, owner string) *Engine {
	return &Engine{
		store: store,
		audit: NewAuditLog(),
		owner: owner,
	}
}

// Store returns the engine's rule store.
func (e *Engine) Store() *Store {
	return e.store
}

// Audit returns the engine's audit log.
func (e *Engine) Audit() *AuditLog {
	return e.audit
}

// Owner returns the identity treated as the account owner.
func (e *Engine) Owner() string {
	return e.owner
}

// EvaluateCancel decides whether requester may cancel the resource. Owner
// requests are checked against owner rules in fixed order: category block
// first, then amount block. Delegates are bounded purely by their own
// delegation rules; owner-only blocks never apply to them.
func (e *Engine) EvaluateCancel(resourceID, requester string) Decision {
	rs := e.store.Snapshot()

	res, ok := rs.FindResource(resourceID)
	if !ok {
		return e.decide(false, ReasonNotFound, ActionCancel, resourceID, requester)
	}

	if requester != e.owner {
		return e.delegationDecision(rs, requester, ActionCancel, res)
	}

	for _, blocked := range rs.Owner.BlockedCategories {
		if res.Category == blocked {
			return e.decide(false, reasonCategoryBlock(res.Category), ActionCancel, resourceID, requester)
		}
	}
	if res.Amount > rs.Owner.MaxCancellationAmount {
		return e.decide(false, reasonAmountBlock(res.Amount, rs.Owner.MaxCancellationAmount), ActionCancel, resourceID, requester)
	}

	return e.decide(true, ReasonOwnerAllow, ActionCancel, resourceID, requester)
}

// EvaluateDelegation decides whether the delegated requester may perform
// action on the resource. Check order is fixed:
// not-found > no-policy > invalid-rules > expired > whitelist-miss > allow.
func (e *Engine) EvaluateDelegation(requester string, action Action, resourceID string) Decision {
	rs := e.store.Snapshot()

	res, ok := rs.FindResource(resourceID)
	if !ok {
		return e.decide(false, ReasonNotFound, action, resourceID, requester)
	}

	return e.delegationDecision(rs, requester, action, res)
}

func (e *Engine) delegationDecision(rs *RuleSet, requester string, action Action, res Resource) Decision {
	d, ok := rs.Delegations[requester]
	if !ok {
		return e.decide(false, reasonNoPolicy(requester), action, res.ID, requester)
	}
	if d.Invalid {
		return e.decide(false, reasonInvalidRules(requester), action, res.ID, requester)
	}
	if d.Expiry != nil && time.Now().UTC().After(*d.Expiry) {
		return e.decide(false, reasonExpired(), action, res.ID, requester)
	}
	if !whitelisted(d.Whitelist, res) {
		return e.decide(false, reasonNotWhitelisted(requester, res.Name), action, res.ID, requester)
	}
	return e.decide(true, ReasonDelegationAllow, action, res.ID, requester)
}

// whitelisted reports whether the resource's name or category matches the
// whitelist. Entries were lowercased at load time; a match on either field
// is sufficient. Names also match on leading words, so an entry "spotify"
// covers "Spotify Duo" without covering "Spotifyx".
func whitelisted(whitelist []string, res Resource) bool {
	name := strings.ToLower(res.Name)
	category := strings.ToLower(res.Category)
	for _, entry := range whitelist {
		if entry == name || entry == category || strings.HasPrefix(name, entry+" ") {
			return true
		}
	}
	return false
}

// EvaluateSpend decides whether requester may spend the amount. The owner
// is checked against the global confirmation threshold; delegates against
// their own spend limit (zero when unconfigured, so any positive spend is
// denied). An expired delegation grants nothing, spends included.
func (e *Engine) EvaluateSpend(amount float64, category, requester string) Decision {
	rs := e.store.Snapshot()

	if requester == e.owner {
		if amount > rs.Global.RequireConfirmationAbove {
			return e.decide(false, reasonConfirmationRequired(amount, rs.Global.RequireConfirmationAbove), ActionSpend, "", requester)
		}
		return e.decide(true, ReasonOwnerAllow, ActionSpend, "", requester)
	}

	d, ok := rs.Delegations[requester]
	if !ok {
		return e.decide(false, reasonNoPolicy(requester), ActionSpend, "", requester)
	}
	if d.Invalid {
		return e.decide(false, reasonInvalidRules(requester), ActionSpend, "", requester)
	}
	if d.Expiry != nil && time.Now().UTC().After(*d.Expiry) {
		return e.decide(false, reasonExpired(), ActionSpend, "", requester)
	}
	if amount > d.MaxAmount {
		return e.decide(false, reasonBudgetBlock(amount, d.MaxAmount, requester), ActionSpend, "", requester)
	}

	return e.decide(true, ReasonDelegationAllow, ActionSpend, "", requester)
}

// decide constructs the Decision, appends it to the audit log and logs it.
// Every evaluation path funnels through here so no outcome escapes the
// audit trail.
func (e *Engine) decide(allowed bool, reason string, action Action, resourceID, requester string) Decision {
	d := Decision{
		ID:         uuid.NewString(),
		Allowed:    allowed,
		Reason:     reason,
		Action:     action,
		ResourceID: resourceID,
		Requester:  requester,
		Timestamp:  time.Now().UTC(),
	}

	e.audit.Append(d)
	logger.DecisionRecorded(allowed)
	logger.Info("policy decision",
		"action", string(action),
		"requester", requester,
		"resource", resourceID,
		"allowed", allowed,
		"reason", reason,
	)

	return d
}
