package policy

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/subguard/guardian/vault"
)

func TestActorAttemptDispatch(t *testing.T) {
	testCases := []struct {
		name        string
		identity    string
		req         ActionRequest
		wantBlocked bool
		wantAction  Action // action recorded in the audit log
	}{
		{
			name:       "cancel routed to owner rules",
			identity:   "owner",
			req:        ActionRequest{Action: "cancel", ResourceID: "sub_001"},
			wantAction: ActionCancel,
		},
		{
			name:        "cancel denied for blocked category",
			identity:    "owner",
			req:         ActionRequest{Action: "cancel", ResourceID: "sub_003"},
			wantBlocked: true,
			wantAction:  ActionCancel,
		},
		{
			name:       "modify routed to delegation rules",
			identity:   "roommate",
			req:        ActionRequest{Action: "modify", ResourceID: "sub_002"},
			wantAction: ActionModify,
		},
		{
			name:       "access routed to delegation rules",
			identity:   "roommate",
			req:        ActionRequest{Action: "access", ResourceID: "sub_004"},
			wantAction: ActionAccess,
		},
		{
			name:        "spend routed to spend rules",
			identity:    "roommate",
			req:         ActionRequest{Action: "spend", Amount: 2000, Category: "food"},
			wantBlocked: true,
			wantAction:  ActionSpend,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestEngine(t, testRuleSet())
			actor := NewActor(tc.identity, engine)

			result, err := actor.Attempt(tc.req)
			if err != nil {
				t.Fatalf("Attempt: %v", err)
			}
			if result.Blocked() != tc.wantBlocked {
				t.Errorf("blocked = %v, want %v (reason: %s)", result.Blocked(), tc.wantBlocked, result.Reason)
			}
			if result.Action != tc.req.Action {
				t.Errorf("result action = %q, want %q", result.Action, tc.req.Action)
			}

			entries := engine.Audit().Snapshot()
			if len(entries) != 1 {
				t.Fatalf("audit length = %d, want 1", len(entries))
			}
			if entries[0].Action != tc.wantAction {
				t.Errorf("audited action = %q, want %q", entries[0].Action, tc.wantAction)
			}
			if entries[0].Requester != tc.identity {
				t.Errorf("audited requester = %q, want %q", entries[0].Requester, tc.identity)
			}
		})
	}
}

func TestActorAttemptInvalidInput(t *testing.T) {
	engine := newTestEngine(t, testRuleSet())
	actor := NewActor("owner", engine)

	_, err := actor.Attempt(ActionRequest{Action: "teleport"})
	if !errors.Is(err, ErrInvalidAction) {
		t.Errorf("unknown action error = %v, want ErrInvalidAction", err)
	}

	_, err = actor.Attempt(ActionRequest{Action: "spend", Amount: 0})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount error = %v, want ErrInvalidAmount", err)
	}

	_, err = actor.Attempt(ActionRequest{Action: "spend", Amount: -50})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative amount error = %v, want ErrInvalidAmount", err)
	}

	// Integration errors never reach the audit log.
	if got := engine.Audit().Len(); got != 0 {
		t.Errorf("audit length = %d, want 0", got)
	}
}

func TestActorSpendThroughVault(t *testing.T) {
	engine := newTestEngine(t, testRuleSet())
	v := vault.New(vault.Config{
		InitialBalance:    10000,
		MaxPerTransaction: 5000,
		AllowedMerchants:  []string{"Netflix"},
	})
	actor := NewActor("roommate", engine, WithVault(v))

	result, err := actor.Attempt(ActionRequest{
		Action:   "spend",
		Amount:   400,
		Category: "streaming",
		Merchant: "Netflix",
	})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if result.Blocked() {
		t.Fatalf("spend should succeed, got reason %q", result.Reason)
	}
	if !strings.HasPrefix(result.Message, "SUCCESS: Paid") {
		t.Errorf("message = %q, want vault receipt", result.Message)
	}
	if got := v.Balance(); got != 9600 {
		t.Errorf("balance = %g, want 9600", got)
	}
}

func TestActorVaultRejectionBlocks(t *testing.T) {
	engine := newTestEngine(t, testRuleSet())
	v := vault.New(vault.Config{
		InitialBalance:    10000,
		MaxPerTransaction: 5000,
		AllowedMerchants:  []string{"Netflix"},
	})
	actor := NewActor("roommate", engine, WithVault(v))

	// Policy allows 400, but the merchant is off the vault allowlist.
	result, err := actor.Attempt(ActionRequest{
		Action:   "spend",
		Amount:   400,
		Category: "streaming",
		Merchant: "ShadyShop",
	})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if !result.Blocked() {
		t.Fatal("vault rejection should surface as blocked")
	}
	if !strings.Contains(result.Reason, "not authorized") {
		t.Errorf("reason = %q, want merchant rejection", result.Reason)
	}
	if got := v.Balance(); got != 10000 {
		t.Errorf("balance = %g, want untouched 10000", got)
	}
}

func TestActorSpendWithoutMerchantSkipsVault(t *testing.T) {
	engine := newTestEngine(t, testRuleSet())
	v := vault.New(vault.Config{InitialBalance: 1000, MaxPerTransaction: 100})
	actor := NewActor("roommate", engine, WithVault(v))

	result, err := actor.Attempt(ActionRequest{Action: "spend", Amount: 400, Category: "misc"})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if result.Blocked() {
		t.Fatalf("spend should succeed, got %q", result.Reason)
	}
	if got := v.Balance(); got != 1000 {
		t.Errorf("balance = %g, vault should not be touched without a merchant", got)
	}
}

func TestActorListAccessible(t *testing.T) {
	engine := newTestEngine(t, testRuleSet())

	owner := NewActor("owner", engine)
	if got := len(owner.ListAccessible()); got != 5 {
		t.Errorf("owner sees %d resources, want full catalog of 5", got)
	}

	roommate := NewActor("roommate", engine)
	var names []string
	for _, res := range roommate.ListAccessible() {
		names = append(names, res.Name)
	}
	want := []string{"Spotify Duo", "Zomato Gold"}
	if len(names) != len(want) {
		t.Fatalf("roommate sees %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("resource[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	stranger := NewActor("stranger", engine)
	if got := len(stranger.ListAccessible()); got != 0 {
		t.Errorf("stranger sees %d resources, want 0", got)
	}
}

func TestActorRefresh(t *testing.T) {
	path := writePolicyFile(t, samplePolicyYAML)
	engine := NewEngine(NewStore(NewFileSource(path)))
	actor := NewActor("owner", engine)

	if _, ok := engine.Store().FindResource("sub_001"); !ok {
		t.Fatal("sub_001 should exist before refresh")
	}

	if err := os.WriteFile(path, []byte("mock_database: []\n"), 0o644); err != nil {
		t.Fatalf("rewriting policy file: %v", err)
	}
	if err := actor.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if _, ok := engine.Store().FindResource("sub_001"); ok {
		t.Error("sub_001 should be gone after refresh")
	}
}
