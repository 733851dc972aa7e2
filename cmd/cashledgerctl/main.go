// Command cashledgerctl runs schema migrations and enqueues maintenance jobs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/odyssey-erp/cashledger/cmd/cashledgerctl/cli"
	"github.com/odyssey-erp/cashledger/internal/app"
)

const usage = `usage:
  cashledgerctl migrate up|down|version [-steps N]
  cashledgerctl jobs trigger <cashflow:warmup|cashflow:invalidate> [-reason text]
  cashledgerctl jobs inspect`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	_ = godotenv.Load()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	switch args[0] {
	case "migrate":
		fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
		steps := fs.Int("steps", 1, "migrations to roll back")
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		return cli.DefaultMigrator().Run(cli.MigrateOptions{
			DSN:    cfg.PGDSN,
			Action: args[1],
			Steps:  *steps,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		})
	case "jobs":
		return runJobs(cfg, args[1:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
}

func runJobs(cfg *app.Config, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	jobsCLI := cli.NewJobsCLI(cfg.QueueOptions())
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, usage)
			return 2
		}
		fs := flag.NewFlagSet("trigger", flag.ContinueOnError)
		reason := fs.String("reason", "manual", "recorded invalidation reason")
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1], *reason)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trigger %s: %v\n", args[1], err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	case "inspect":
		stats, err := jobsCLI.InspectQueue()
		if err != nil {
			fmt.Fprintf(os.Stderr, "inspect queue: %v\n", err)
			return 1
		}
		_ = json.NewEncoder(os.Stdout).Encode(stats)
		return 0
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
}
