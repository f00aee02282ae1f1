package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/auton8n/backend/internal/infrastructure/config"
	"github.com/auton8n/backend/internal/infrastructure/logger"
	"github.com/auton8n/backend/internal/infrastructure/migration"
)

const usage = `Usage: migrate [options] <command> [arguments]

Commands:
  up                 Apply all pending migrations
  down               Roll back all migrations
  step <n>           Apply n migrations (negative rolls back)
  goto <version>     Migrate to a specific version
  version            Print the current migration version
  force <version>    Set version without running migrations (dirty state recovery)
  drop               Drop all database objects (development only)
  create <name>      Create a new migration file pair
  list               List available migrations

Options:
  -path string       Path to the migrations directory (default "migrations")
  -log-level string  Log level (default "info")
`

func main() {
	var (
		migrationsPath = flag.String("path", "migrations", "path to migrations directory")
		logLevel       = flag.String("log-level", "info", "log level")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:  *logLevel,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	path := resolveMigrationsPath(*migrationsPath)

	// create and list work offline, no database connection needed
	switch command {
	case "create":
		if len(args) < 2 {
			log.Fatal("create requires a migration name")
		}
		name := strings.Join(args[1:], " ")
		mf, err := migration.CreateMigration(path, name, "")
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up", mf.UpPath),
			zap.String("down", mf.DownPath),
		)
		return
	case "list":
		migrations, err := migration.ListMigrations(path)
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		if len(migrations) == 0 {
			log.Info("No migrations found", zap.String("path", path))
			return
		}
		for _, m := range migrations {
			fmt.Println(m)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open database connection", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	migrator, err := migration.New(db, path, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			log.Error("Failed to close migrator", zap.Error(err))
		}
	}()

	switch command {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "step":
		var n int
		n, err = intArg(args, 1, "step requires a number of migrations")
		if err == nil {
			err = migrator.Steps(n)
		}
	case "goto":
		var v int
		v, err = intArg(args, 1, "goto requires a target version")
		if err == nil {
			err = migrator.GoTo(uint(v))
		}
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = migrator.Version()
		if err == nil {
			log.Info("Current migration version",
				zap.Uint("version", version),
				zap.Bool("dirty", dirty),
			)
		}
	case "force":
		var v int
		v, err = intArg(args, 1, "force requires a version")
		if err == nil {
			err = migrator.Force(v)
		}
	case "drop":
		err = migrator.Drop()
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal("Migration command failed",
			zap.String("command", command),
			zap.Error(err),
		)
	}
}

func intArg(args []string, idx int, msg string) (int, error) {
	if len(args) <= idx {
		return 0, fmt.Errorf("%s", msg)
	}
	n, err := strconv.Atoi(args[idx])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", args[idx], err)
	}
	return n, nil
}

// resolveMigrationsPath tries the path relative to the working
// directory first, then relative to the binary. Lets the CLI work both
// from the repository root and from an installed location.
func resolveMigrationsPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "..", "..", path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return path
}
