package server

import (
	"time"

	"github.com/subguard/guardian/policy"
)

// API request and response models.

// CancelRequest is the body for the cancel tool.
type CancelRequest struct {
	ResourceID string `json:"resource_id"`
	Requester  string `json:"requester"`
}

// DelegationRequest is the body for the delegation-check tool.
type DelegationRequest struct {
	Requester  string `json:"requester"`
	Action     string `json:"action"`
	ResourceID string `json:"resource_id"`
}

// SpendRequest is the body for the spend tool. The tool decides only;
// execution against a vault happens on the caller's side. Merchant is
// accepted so callers can submit the full spend intent.
type SpendRequest struct {
	Requester string  `json:"requester"`
	Amount    float64 `json:"amount"`
	Category  string  `json:"category"`
	Merchant  string  `json:"merchant,omitempty"`
}

// DecisionResponse is the flat representation of one Decision, as it
// crosses the tool boundary.
type DecisionResponse struct {
	Status     string `json:"status"` // "blocked" or "success"
	Reason     string `json:"reason"`
	Action     string `json:"action"`
	ResourceID string `json:"resource_id,omitempty"`
	Requester  string `json:"requester"`
	Timestamp  string `json:"timestamp"`
}

func toDecisionResponse(d policy.Decision) DecisionResponse {
	status := policy.StatusBlocked
	if d.Allowed {
		status = policy.StatusSuccess
	}
	return DecisionResponse{
		Status:     status,
		Reason:     d.Reason,
		Action:     string(d.Action),
		ResourceID: d.ResourceID,
		Requester:  d.Requester,
		Timestamp:  d.Timestamp.Format(time.RFC3339Nano),
	}
}

// ResourcesResponse lists the resources accessible to a requester.
type ResourcesResponse struct {
	Requester string            `json:"requester"`
	Resources []policy.Resource `json:"resources"`
}

// AuditResponse is a page of audit entries.
type AuditResponse struct {
	Entries []DecisionResponse `json:"entries"`
	Total   int                `json:"total"`
}
