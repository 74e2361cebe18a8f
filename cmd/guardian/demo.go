package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/subguard/guardian/policy"
	"github.com/subguard/guardian/vault"
)

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Interactive walkthrough of owner and delegate guardrails",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "policies",
				Usage: "policy file",
				Value: "config/policies.yaml",
			},
			&cli.StringFlag{
				Name:  "delegate",
				Usage: "delegate identity for the delegate scenarios",
				Value: "roommate",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runDemo(c.String("policies"), c.String("delegate"))
		},
	}
}

func runDemo(policiesPath, delegate string) error {
	store := policy.NewStore(policy.NewFileSource(policiesPath))
	engine := policy.NewEngine(store)

	for {
		var choice string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Guardian Demo").
					Description("Pick a scenario set").
					Options(
						huh.NewOption("Owner scenarios (policy-bounded autonomy)", "owner"),
						huh.NewOption(fmt.Sprintf("Delegate scenarios (bounded access for '%s')", delegate), "delegate"),
						huh.NewOption("Show audit log", "audit"),
						huh.NewOption("Exit", "exit"),
					).
					Value(&choice),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}

		switch choice {
		case "owner":
			runOwnerScenarios(engine)
		case "delegate":
			runDelegateScenarios(engine, delegate)
		case "audit":
			printAudit(engine)
		case "exit":
			fmt.Println("\nExiting. Goodbye!")
			return nil
		}
	}
}

func printHeader(title string) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Printf(" %s\n", title)
	fmt.Println(strings.Repeat("=", 60))
}

// runOwnerScenarios attempts to cancel every catalog entry as the owner,
// showing which cancellations the owner policies permit.
func runOwnerScenarios(engine *policy.Engine) {
	printHeader("Owner Scenarios: Autonomous Cancellation Guardrails")

	catalog := engine.Store().Snapshot().Catalog
	if len(catalog) == 0 {
		fmt.Println("No subscriptions in the catalog (is the policy file present?)")
		return
	}

	fmt.Println("Active subscriptions:")
	for _, res := range catalog {
		fmt.Printf("  - %s (%s, %s) $%g\n", res.Name, res.ID, res.Category, res.Amount)
	}

	actor := policy.NewActor(engine.Owner(), engine)
	for _, res := range catalog {
		fmt.Printf("\n--- Cancel %s ---\n", res.Name)
		printResult(actor.Attempt(policy.ActionRequest{Action: "cancel", ResourceID: res.ID}))
	}
}

// runDelegateScenarios mirrors the bounded-roommate walkthrough: list
// accessible subscriptions, try an allowed modify, a blocked cancel, and a
// spend over the delegation limit.
func runDelegateScenarios(engine *policy.Engine, delegate string) {
	printHeader(fmt.Sprintf("Delegate Scenarios: Bounded Access for '%s'", delegate))

	demoVault := vault.New(vault.Config{
		InitialBalance:    50000,
		MaxPerTransaction: 5000,
		AllowedMerchants:  []string{"Adani Electricity", "Jio Fiber", "HDFC Credit Card", "Netflix"},
	})
	actor := policy.NewActor(delegate, engine, policy.WithVault(demoVault))

	fmt.Println("\n--- Action 1: Check accessible subscriptions ---")
	accessible := actor.ListAccessible()
	if len(accessible) == 0 {
		fmt.Println("No accessible subscriptions.")
	}
	for _, res := range accessible {
		fmt.Printf("  - %s (%s)\n", res.Name, res.Category)
	}

	catalog := engine.Store().Snapshot().Catalog
	for _, res := range catalog {
		fmt.Printf("\n--- Action: Try to modify %s ---\n", res.Name)
		printResult(actor.Attempt(policy.ActionRequest{Action: "modify", ResourceID: res.ID}))
	}

	fmt.Println("\n--- Action: Try to spend $2000 on a new subscription ---")
	printResult(actor.Attempt(policy.ActionRequest{
		Action:   "spend",
		Amount:   2000,
		Category: "streaming",
		Merchant: "Netflix",
	}))

	fmt.Printf("\nVault balance after scenarios: ₹%g\n", demoVault.Balance())
}

func printAudit(engine *policy.Engine) {
	printHeader("Audit Log")
	entries := engine.Audit().Snapshot()
	if len(entries) == 0 {
		fmt.Println("No decisions recorded yet.")
		return
	}
	for _, d := range entries {
		verdict := "DENY "
		if d.Allowed {
			verdict = "ALLOW"
		}
		fmt.Printf("%s  %s  %-8s %-10s %s\n",
			d.Timestamp.Format("15:04:05"), verdict, d.Action, d.Requester, d.Reason)
	}
}

func printResult(result policy.ActionResult, err error) {
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return
	}
	if result.Blocked() {
		fmt.Printf("ACTION BLOCKED: %s\n", result.Reason)
		return
	}
	fmt.Printf("ACTION ALLOWED: %s\n", result.Message)
}
