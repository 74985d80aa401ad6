package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/migrate"
)

const usage = `usage: migrate -cmd <up|down|status|to|create|validate> [flags]

  up        apply all pending migrations
  down      roll back the latest migration
  status    list applied and pending migrations
  to        migrate up or down to -version
  create    write an empty migration named -name into -dir
  validate  check migration files without a database
`

func main() {
	cmd := flag.String("cmd", "up", "migration command")
	dir := flag.String("dir", "", "migrations directory (default: migrations compiled into the binary)")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	// Offline commands never touch config or the database.
	switch *cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.NewMigrationFile(target, *name, time.Now())
		exitOn(ctx, logg, "create migration", err)
		fmt.Println("created", path)
		return
	case "validate":
		source, err := migrate.Source(*dir)
		exitOn(ctx, logg, "open migrations", err)
		exitOn(ctx, logg, "validate migrations", migrate.Validate(source))
		fmt.Println("migrations valid")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	exitOn(ctx, logg, "load config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(ctx, logg, "connect database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	exitOn(ctx, logg, "extract sql.DB", err)
	source, err := migrate.Source(*dir)
	exitOn(ctx, logg, "open migrations", err)
	runner, err := migrate.NewRunner(sqlDB, source, logg)
	exitOn(ctx, logg, "build migration runner", err)

	switch *cmd {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "status":
		err = runner.Status(ctx)
	case "to":
		if *version == "" {
			err = fmt.Errorf("-version is required for -cmd=to")
			break
		}
		err = runner.To(ctx, *version)
	default:
		flag.Usage()
		err = fmt.Errorf("unknown command %q", *cmd)
	}
	exitOn(ctx, logg, "migrate "+*cmd, err)
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, step+" failed", err)
	os.Exit(1)
}
