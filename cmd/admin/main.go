package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ofsync/internal/domain/openfinance"
	ofclient "ofsync/internal/infrastructure/openfinance"
	"ofsync/internal/infrastructure/postgres"
	"ofsync/internal/shared/auth"
	"ofsync/internal/shared/config"
	"ofsync/internal/shared/logger"
)

const usage = `ofsync Admin CLI - Management commands for the Open Finance sync service

Usage:
  admin <command> [options]

Commands:
  sync          Run the Sync Engine synchronously for one link or all syncable links
  sync-logs     Show recent sync runs for a link
  hash-key      Print a bcrypt hash of a service key for SERVICE_KEY_HASH
  issue-token   Sign a development bearer token with JWT_SECRET
  migrate       Apply or roll back database migrations (up | down [N] | version)

Examples:
  # Sync one link
  admin sync --link-id=5b8f2c1e-3d4a-4e6f-9a0b-1c2d3e4f5a6b

  # Sync every connected link with a longer timeout
  admin sync --all --timeout=30m

  # Last 10 runs of a link
  admin sync-logs --link-id=5b8f2c1e-3d4a-4e6f-9a0b-1c2d3e4f5a6b --limit=10

  # Hash a service key
  admin hash-key --key=s3cret

  # Token for local testing
  admin issue-token --user-id=user-123 --ttl=1h

  # Roll back the last migration
  admin migrate down 1
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	logger.Init(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	command := os.Args[1]

	switch command {
	case "sync":
		runSync(os.Args[2:])
	case "sync-logs":
		runSyncLogs(os.Args[2:])
	case "hash-key":
		runHashKey(os.Args[2:])
	case "issue-token":
		runIssueToken(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage + "\n")
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
}

func fatal(msg string, err error) {
	logger.Get().Error(msg, zap.Error(err))
	logger.Sync()
	os.Exit(1)
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config", err)
	}
	return cfg
}

func openDB(cfg *config.Config) *postgres.DB {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		fatal("failed to connect to database", err)
	}
	logger.Get().Info("connected to database")
	return db
}

func runSync(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	linkID := fs.String("link-id", "", "Link ID to sync")
	all := fs.Bool("all", false, "Sync every connected link")
	timeout := fs.Duration("timeout", 5*time.Minute, "Timeout for the whole operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin sync [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if (*linkID == "") == !*all {
		fmt.Println("Error: specify exactly one of --link-id or --all")
		fs.Usage()
		os.Exit(1)
	}
	if *linkID != "" {
		if _, err := uuid.Parse(*linkID); err != nil {
			fatal("invalid --link-id", err)
		}
	}

	cfg := loadConfig()
	db := openDB(cfg)
	defer db.Close()

	client := ofclient.NewClient(ofclient.Config{
		BaseURL:      cfg.Aggregator.BaseURL,
		ClientID:     cfg.Aggregator.ClientID,
		ClientSecret: cfg.Aggregator.ClientSecret,
		Timeout:      cfg.Aggregator.Timeout,
	})
	engine := openfinance.NewSyncEngine(
		client,
		postgres.NewLinkRepository(db),
		postgres.NewAccountRepository(db),
		postgres.NewTransactionRepository(db),
		postgres.NewSyncLogRepository(db),
		postgres.NewAdvisoryLocker(db),
		openfinance.SyncConfig{
			RunTimeout:  cfg.Sync.RunTimeout,
			PageSize:    cfg.Sync.PageSize,
			MaxPages:    cfg.Sync.MaxPages,
			Concurrency: cfg.Sync.Concurrency,
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	var results []*openfinance.LinkSyncResult
	if *all {
		var err error
		if results, err = engine.SyncAll(ctx); err != nil {
			fatal("sync failed", err)
		}
	} else {
		res, err := engine.SyncByID(ctx, *linkID)
		if err != nil {
			fatal("sync failed", err)
		}
		results = append(results, res)
	}

	failed := 0
	for _, res := range results {
		status := "ok"
		switch {
		case res.Skipped:
			status = "skipped"
		case res.Error != "":
			status = "error"
			failed++
		}
		fmt.Printf("%s  %-7s  accounts=%d transactions=%d", res.LinkID, status, res.Accounts, res.Transactions)
		if res.Error != "" {
			fmt.Printf("  %s", res.Error)
		}
		fmt.Println()
	}

	fmt.Printf("\n%d link(s) synced in %v, %d with errors\n", len(results), time.Since(start).Round(time.Millisecond), failed)
	if failed > 0 {
		os.Exit(2)
	}
}

func runSyncLogs(args []string) {
	fs := flag.NewFlagSet("sync-logs", flag.ExitOnError)

	linkID := fs.String("link-id", "", "Link ID")
	limit := fs.Int("limit", 20, "Number of runs to show")
	asJSON := fs.Bool("json", false, "Print raw JSON")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *linkID == "" {
		fmt.Println("Error: --link-id is required")
		fs.PrintDefaults()
		os.Exit(1)
	}

	cfg := loadConfig()
	db := openDB(cfg)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logs, err := postgres.NewSyncLogRepository(db).ListByLinkID(ctx, *linkID, *limit)
	if err != nil {
		fatal("failed to list sync logs", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(logs); err != nil {
			fatal("failed to encode sync logs", err)
		}
		return
	}

	if len(logs) == 0 {
		fmt.Println("No sync runs recorded")
		return
	}
	for _, l := range logs {
		finished := "-"
		if l.FinishedAt != nil {
			finished = l.FinishedAt.Sub(l.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Printf("%s  %-7s  started=%s duration=%s accounts=%d transactions=%d",
			l.ID, l.Status, l.StartedAt.Format(time.RFC3339), finished, l.AccountsFetched, l.TransactionsFetched)
		if l.ErrorMessage != "" {
			fmt.Printf("  %s", l.ErrorMessage)
		}
		fmt.Println()
	}
}

func runHashKey(args []string) {
	fs := flag.NewFlagSet("hash-key", flag.ExitOnError)
	key := fs.String("key", "", "Plaintext service key")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	hash, err := auth.HashServiceKey(*key)
	if err != nil {
		fatal("failed to hash key", err)
	}
	fmt.Println(hash)
}

func runIssueToken(args []string) {
	fs := flag.NewFlagSet("issue-token", flag.ExitOnError)
	userID := fs.String("user-id", "", "Subject (user id) of the token")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		cfg := loadConfig()
		secret = cfg.Auth.JWTSecret
	}

	token, err := auth.NewJWTVerifier(secret).Issue(*userID, *ttl)
	if err != nil {
		fatal("failed to issue token", err)
	}
	fmt.Println(token)
}

func runMigrate(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: admin migrate up | down [N] | version")
		os.Exit(1)
	}

	cfg := loadConfig()
	m, err := postgres.NewMigrator(cfg.Database.URL())
	if err != nil {
		fatal("failed to initialize migrator", err)
	}
	defer m.Close()

	log := logger.Get()

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil {
			fatal("migration up failed", err)
		}
		log.Info("migrations applied")
	case "down":
		steps := 1
		if len(args) > 1 {
			if steps, err = strconv.Atoi(args[1]); err != nil || steps <= 0 {
				fmt.Printf("Invalid step count: %s\n", args[1])
				os.Exit(1)
			}
		}
		if err := m.Down(steps); err != nil {
			fatal("migration down failed", err)
		}
		log.Info("migrations rolled back", zap.Int("steps", steps))
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			fatal("failed to read migration version", err)
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
	default:
		fmt.Printf("Unknown migrate command: %s\n", args[0])
		os.Exit(1)
	}
}
