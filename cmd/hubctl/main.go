// Command hubctl runs maintenance tasks against the hub database: migrations,
// backups, role changes, index declarations and audit log exports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/garnizeh/opphub/internal/config"
)

const usage = `usage: hubctl [-config file] <command> [args]

commands:
  migrate               apply migrations and seed data
  backup [file]         write a consistent copy of the database
  restore [file]        replace the database with a backup
  promote <email>       grant the admin role
  demote <email>        revoke the admin role
  index                 declare the configured composite indexes
  logs [limit]          print the latest audit entries
  export-logs <file>    write the audit report as HTML`

var errUsage = errors.New("bad usage")

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		pterm.Error.Printfln("Config error: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "migrate":
		return migrate(ctx, cfg)
	case "backup":
		return backup(ctx, cfg, argOr(rest, cfg.DatabasePath+".bak"))
	case "restore":
		return restore(cfg, argOr(rest, cfg.DatabasePath+".bak"))
	case "promote", "demote":
		if len(rest) != 1 {
			return errUsage
		}
		return setRole(ctx, cfg, rest[0], cmd == "promote")
	case "index":
		return declareIndexes(ctx, cfg)
	case "logs":
		limit := 20
		if len(rest) == 1 {
			if _, err := fmt.Sscanf(rest[0], "%d", &limit); err != nil || limit <= 0 {
				return errUsage
			}
		}
		return printLogs(ctx, cfg, limit)
	case "export-logs":
		if len(rest) != 1 {
			return errUsage
		}
		return exportLogs(ctx, cfg, rest[0])
	default:
		return errUsage
	}
}

func argOr(args []string, def string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}

	return def
}
