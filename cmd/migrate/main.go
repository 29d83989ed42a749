// Command migrate inspects and changes the database schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"guildhall/internal/config"
	"guildhall/internal/database"

	"gorm.io/gorm"
)

const usageText = `usage: migrate [-timeout 2m] <command>

commands:
  up             apply pending SQL migrations
  auto           run gorm AutoMigrate for every persistent model
  status         show the schema plan, applied and pending migrations
  down <version> roll back the latest applied migration`

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usageText) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, db, cfg, flag.Args(), os.Stdout); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string, out io.Writer) error {
	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "up":
		migrator, err := database.NewMigrator(db)
		if err != nil {
			return err
		}
		n, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✅ applied %d migration(s)\n", n)

	case "auto":
		auto := *cfg
		auto.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, &auto); err != nil {
			return err
		}
		fmt.Fprintln(out, "✅ models auto-migrated")

	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return err
		}
		printStatus(out, status)

	case "down":
		if len(args) < 2 {
			return fmt.Errorf("down needs a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		migrator, err := database.NewMigrator(db)
		if err != nil {
			return err
		}
		if err := migrator.Down(ctx, version); err != nil {
			return err
		}
		fmt.Fprintf(out, "↩️  rolled back %06d\n", version)

	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usageText)
	}
	return nil
}

func printStatus(out io.Writer, status *database.SchemaStatus) {
	fmt.Fprintf(out, "mode=%s env=%s sql=%t auto=%t\n",
		status.Mode, status.Environment, status.RunSQL, status.RunAuto)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATE")
	for _, m := range status.Applied {
		fmt.Fprintf(tw, "%06d\t%s\tapplied %s\n", m.Version, m.Name, m.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(tw, "%06d\t%s\tpending\n", m.Version, m.Name)
	}
	_ = tw.Flush()

	if len(status.MissingTables) > 0 {
		fmt.Fprintf(out, "⚠️  missing tables: %s\n", strings.Join(status.MissingTables, ", "))
	}
}
