// guardian is the command-line companion to guardiand: it serves the tool
// façade, runs the interactive policy demo, and performs one-shot policy
// checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/subguard/guardian/internal/logger"
	"github.com/subguard/guardian/internal/server"
	"github.com/subguard/guardian/policy"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}
	return fmt.Sprintf("%s (%s)", version, short)
}

func main() {
	app := &cli.Command{
		Name:    "guardian",
		Usage:   "Policy guardrails for delegated agent actions: decide, audit, and bound what an agent may do.",
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (trace, debug, info, warn, error, fatal)",
				Sources: cli.EnvVars("LOG_LEVEL"),
				Value:   "info",
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			level, err := logger.ParseLevel(c.String("log-level"))
			if err != nil {
				return ctx, fmt.Errorf("failed to parse log level: %w", err)
			}
			logger.SetLevel(level)
			return ctx, nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			demoCommand(),
			checkCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "guardian: %v\n", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the policy tool server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "server configuration file",
				Value: "guardian.yaml",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address (overrides the config file)",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "hot-reload policy files on change",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := server.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			if addr := c.String("addr"); addr != "" {
				cfg.Listen = addr
			}
			if c.Bool("watch") {
				cfg.Watch = true
			}

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(runCtx, cfg)
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Evaluate a single action and print the decision",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "policies",
				Usage: "policy file",
				Value: "config/policies.yaml",
			},
			&cli.StringFlag{
				Name:     "requester",
				Usage:    "requester identity",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "action",
				Usage: "action to evaluate (cancel, spend, modify, access)",
				Value: "cancel",
			},
			&cli.StringFlag{
				Name:  "resource",
				Usage: "resource identifier (resource-scoped actions)",
			},
			&cli.FloatFlag{
				Name:  "amount",
				Usage: "spend amount",
			},
			&cli.StringFlag{
				Name:  "category",
				Usage: "spend category",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			store := policy.NewStore(policy.NewFileSource(c.String("policies")))
			engine := policy.NewEngine(store)
			actor := policy.NewActor(c.String("requester"), engine)

			result, err := actor.Attempt(policy.ActionRequest{
				Action:     c.String("action"),
				ResourceID: c.String("resource"),
				Amount:     c.Float("amount"),
				Category:   c.String("category"),
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if result.Blocked() {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}
