package policy

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/subguard/guardian/internal/logger"
)

// Source supplies rule set snapshots. Load returns a fully-normalized
// RuleSet; it must never return a partially-built one.
type Source interface {
	Load() (*RuleSet, error)
}

// rawConfig mirrors the policy file layout. Field names follow the
// configuration contract: mock_database, owner_policies, delegation_policies,
// global_rules. Any missing section degrades to its empty default.
type rawConfig struct {
	MockDatabase  []Resource               `yaml:"mock_database"`
	OwnerPolicies rawOwnerPolicies         `yaml:"owner_policies"`
	Delegations   map[string]rawDelegation `yaml:"delegation_policies"`
	GlobalRules   rawGlobalRules           `yaml:"global_rules"`
}

type rawOwnerPolicies struct {
	BlockedCategories     []string `yaml:"blocked_categories"`
	MaxCancellationAmount float64  `yaml:"max_cancellation_amount"`
}

type rawDelegation struct {
	AllowedSubscriptions []string `yaml:"allowed_subscriptions"`
	ExpiryTimestamp      string   `yaml:"expiry_timestamp"`
	MaxAmount            float64  `yaml:"max_amount"`
}

type rawGlobalRules struct {
	RequireConfirmationAbove float64 `yaml:"require_confirmation_above"`
}

// FileSource loads the rule set from a YAML policy file.
type FileSource struct {
	Path string
}

// NewFileSource creates a Source backed by the YAML file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load reads and normalizes the policy file. A missing file is not an
// error: delegation and owner actions are simply denied until a file
// appears. Malformed YAML is a *ConfigError.
func (s *FileSource) Load() (*RuleSet, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("policy file not found, using empty rule set", "path", s.Path)
			return EmptyRuleSet(), nil
		}
		return nil, &ConfigError{Path: s.Path, Err: err}
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Path: s.Path, Err: err}
	}

	return raw.normalize(), nil
}

// normalize converts the raw file layout into an evaluation-ready RuleSet:
// whitelists are lowercased and expiry timestamps parsed once here, so the
// request path never touches strings it has not seen before.
func (c *rawConfig) normalize() *RuleSet {
	rs := &RuleSet{
		Catalog: append([]Resource(nil), c.MockDatabase...),
		Owner: OwnerRules{
			BlockedCategories:     append([]string(nil), c.OwnerPolicies.BlockedCategories...),
			MaxCancellationAmount: c.OwnerPolicies.MaxCancellationAmount,
		},
		Delegations: make(map[string]Delegation, len(c.Delegations)),
		Global: GlobalRules{
			RequireConfirmationAbove: c.GlobalRules.RequireConfirmationAbove,
		},
	}

	for identity, raw := range c.Delegations {
		d := Delegation{
			Whitelist: make([]string, 0, len(raw.AllowedSubscriptions)),
			MaxAmount: raw.MaxAmount,
		}
		for _, entry := range raw.AllowedSubscriptions {
			d.Whitelist = append(d.Whitelist, strings.ToLower(entry))
		}

		if raw.ExpiryTimestamp != "" {
			expiry, err := ParseExpiry(raw.ExpiryTimestamp)
			if err != nil {
				// Fail closed: the entry stays, but marked invalid so every
				// evaluation for this identity denies.
				logger.Warn("malformed expiry timestamp, delegation disabled",
					"identity", identity, "expiry", raw.ExpiryTimestamp, "error", err)
				d.Invalid = true
			} else {
				d.Expiry = &expiry
			}
		}

		rs.Delegations[identity] = d
	}

	return rs
}

// ParseExpiry parses an expiry timestamp. RFC 3339 offsets are honored; a
// timestamp without an offset is interpreted as UTC. The result is always
// in UTC.
func ParseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cannot parse expiry timestamp %q", s)
}

// StaticSource serves a fixed rule set. Useful for tests and for embedding
// the engine without a policy file.
type StaticSource struct {
	RuleSet *RuleSet
}

// Load returns the configured rule set, or the empty one if nil.
func (s *StaticSource) Load() (*RuleSet, error) {
	if s.RuleSet == nil {
		return EmptyRuleSet(), nil
	}
	return s.RuleSet, nil
}
