package policy

import (
	"fmt"

	"github.com/subguard/guardian/internal/logger"
	"github.com/subguard/guardian/vault"
)

// Result statuses for Actor.Attempt.
const (
	StatusBlocked = "blocked"
	StatusSuccess = "success"
)

// ActionRequest describes one attempted action. Amount, Category and
// Merchant are only meaningful for spends.
type ActionRequest struct {
	Action     string  `json:"action"`
	ResourceID string  `json:"resource_id,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	Category   string  `json:"category,omitempty"`
	Merchant   string  `json:"merchant,omitempty"`
}

// ActionResult is the execute-or-block outcome of one attempt.
type ActionResult struct {
	Status     string `json:"status"` // "blocked" or "success"
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message,omitempty"`
	Action     string `json:"action"`
	ResourceID string `json:"resource_id,omitempty"`
}

// Blocked reports whether the attempt was denied.
func (r ActionResult) Blocked() bool {
	return r.Status == StatusBlocked
}

// Actor wraps one requester identity and forwards its action attempts to
// the engine. It holds no authorization logic of its own: it only
// translates the engine's verdict into an execute-or-block outcome.
type Actor struct {
	identity string
	engine   *Engine
	vault    *vault.Vault
}

// ActorOption configures an Actor.
type ActorOption func(*Actor)

// WithVault attaches a spend executor. Allowed spends naming a merchant are
// executed against it and the receipt surfaced in the result.
func WithVault(v *vault.Vault) ActorOption {
	return func(a *Actor) {
		a.vault = v
	}
}

// NewActor creates an actor for the given requester identity.
func NewActor(identity string, engine *Engine, opts ...ActorOption) *Actor {
	a := &Actor{identity: identity, engine: engine}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Identity returns the wrapped requester identity.
func (a *Actor) Identity() string {
	return a.identity
}

// Attempt routes the request to the engine: "cancel" to EvaluateCancel,
// "spend" to EvaluateSpend, the remaining known actions to
// EvaluateDelegation. Unknown action strings and non-positive spend amounts
// are integration errors, not policy outcomes.
func (a *Actor) Attempt(req ActionRequest) (ActionResult, error) {
	action, err := ParseAction(req.Action)
	if err != nil {
		return ActionResult{}, fmt.Errorf("action %q: %w", req.Action, err)
	}

	var decision Decision
	switch action {
	case ActionCancel:
		decision = a.engine.EvaluateCancel(req.ResourceID, a.identity)
	case ActionSpend:
		if req.Amount <= 0 {
			return ActionResult{}, fmt.Errorf("amount %g: %w", req.Amount, ErrInvalidAmount)
		}
		decision = a.engine.EvaluateSpend(req.Amount, req.Category, a.identity)
	default:
		decision = a.engine.EvaluateDelegation(a.identity, action, req.ResourceID)
	}

	if !decision.Allowed {
		logger.Warn("action blocked", "identity", a.identity, "action", req.Action, "reason", decision.Reason)
		return ActionResult{
			Status:     StatusBlocked,
			Reason:     decision.Reason,
			Action:     req.Action,
			ResourceID: decision.ResourceID,
		}, nil
	}

	message := fmt.Sprintf("Successfully executed '%s'.", req.Action)
	if decision.ResourceID != "" {
		message = fmt.Sprintf("Successfully executed '%s' on '%s'.", req.Action, decision.ResourceID)
	}

	// Allowed spends naming a merchant go through the vault; vault-level
	// rejections (allowlist, limit, funds) surface as a blocked result.
	if action == ActionSpend && a.vault != nil && req.Merchant != "" {
		receipt, err := a.vault.Pay(req.Merchant, req.Amount)
		if err != nil {
			logger.Warn("vault rejected spend", "identity", a.identity, "merchant", req.Merchant, "error", err)
			return ActionResult{
				Status: StatusBlocked,
				Reason: err.Error(),
				Action: req.Action,
			}, nil
		}
		message = receipt.Message()
	}

	return ActionResult{
		Status:     StatusSuccess,
		Reason:     decision.Reason,
		Message:    message,
		Action:     req.Action,
		ResourceID: decision.ResourceID,
	}, nil
}

// ListAccessible returns the catalog resources this identity may access,
// probing each with a synthetic "access" delegation check. The owner
// identity can access everything.
func (a *Actor) ListAccessible() []Resource {
	rs := a.engine.Store().Snapshot()

	if a.identity == a.engine.Owner() {
		return append([]Resource(nil), rs.Catalog...)
	}

	var out []Resource
	for _, res := range rs.Catalog {
		if a.engine.EvaluateDelegation(a.identity, ActionAccess, res.ID).Allowed {
			out = append(out, res)
		}
	}
	return out
}

// Refresh reloads the rule store backing this actor's engine.
func (a *Actor) Refresh() error {
	return a.engine.Store().Reload()
}
