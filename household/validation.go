package household

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/subguard/guardian/policy"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]*$`)

// validateHouseholdID checks a household identifier: 1-100 characters,
// letters/digits/underscore with dot and dash allowed after the first.
func validateHouseholdID(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(id) > 100 {
		return fmt.Errorf("identifier length %d exceeds maximum of 100 characters", len(id))
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("must match pattern %s", identifierPattern.String())
	}
	return nil
}

// ValidateRuleSet checks a loaded rule set for structural problems that a
// policy author should fix: duplicate or empty resource identifiers,
// negative amounts and limits, and delegation entries disabled by a
// malformed expiry. Rule sets with these problems still evaluate (deny-
// leaning), but surfacing them at load time beats debugging denials later.
func ValidateRuleSet(rs *policy.RuleSet) error {
	if rs == nil {
		return fmt.Errorf("rule set is nil")
	}

	seen := make(map[string]bool, len(rs.Catalog))
	for i, res := range rs.Catalog {
		if strings.TrimSpace(res.ID) == "" {
			return fmt.Errorf("resource %d: identifier cannot be empty", i)
		}
		if seen[res.ID] {
			return fmt.Errorf("resource %q: duplicate identifier", res.ID)
		}
		seen[res.ID] = true

		if strings.TrimSpace(res.Name) == "" {
			return fmt.Errorf("resource %q: name cannot be empty", res.ID)
		}
		if res.Amount < 0 {
			return fmt.Errorf("resource %q: amount %g cannot be negative", res.ID, res.Amount)
		}
	}

	if rs.Owner.MaxCancellationAmount < 0 {
		return fmt.Errorf("owner_policies: max_cancellation_amount %g cannot be negative", rs.Owner.MaxCancellationAmount)
	}
	for _, category := range rs.Owner.BlockedCategories {
		if strings.TrimSpace(category) == "" {
			return fmt.Errorf("owner_policies: blocked category cannot be empty")
		}
	}

	for identity, d := range rs.Delegations {
		if strings.TrimSpace(identity) == "" {
			return fmt.Errorf("delegation_policies: identity cannot be empty")
		}
		if d.MaxAmount < 0 {
			return fmt.Errorf("delegation_policies[%q]: max_amount %g cannot be negative", identity, d.MaxAmount)
		}
		if d.Invalid {
			return fmt.Errorf("delegation_policies[%q]: expiry_timestamp does not parse; entry is disabled", identity)
		}
		for _, entry := range d.Whitelist {
			if strings.TrimSpace(entry) == "" {
				return fmt.Errorf("delegation_policies[%q]: whitelist entry cannot be empty", identity)
			}
		}
	}

	if rs.Global.RequireConfirmationAbove < 0 {
		return fmt.Errorf("global_rules: require_confirmation_above %g cannot be negative", rs.Global.RequireConfirmationAbove)
	}

	return nil
}
