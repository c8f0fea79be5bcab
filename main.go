package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"creditengine/cmd"
	"creditengine/database"

	_ "github.com/joho/godotenv/autoload"
	log "github.com/sirupsen/logrus"
)

const usage = `usage: creditengine [command]

commands:
  (none)                    run the grant scheduler until interrupted
  migrate up|down [n]|status
  run-grant <id> [--test]   execute a grant now
  sweep                     run one scheduler pass
  reset-package <id>        delete the award history of a package`

func main() {
	// Migrations do not need the signal handling or the full config
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := dispatch(ctx, os.Args[1:]); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return cmd.Run(ctx)
	}

	switch args[0] {
	case "run-grant":
		if len(args) < 2 {
			return fmt.Errorf("run-grant requires a grant id\n%s", usage)
		}
		grantID, err := parseID(args[1])
		if err != nil {
			return err
		}
		testMode := len(args) > 2 && args[2] == "--test"
		return cmd.RunGrant(ctx, grantID, testMode)
	case "sweep":
		return cmd.Sweep(ctx)
	case "reset-package":
		if len(args) < 2 {
			return fmt.Errorf("reset-package requires a package id\n%s", usage)
		}
		packageID, err := parseID(args[1])
		if err != nil {
			return err
		}
		return cmd.ResetPackage(ctx, packageID)
	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: creditengine migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}
