package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.io/infrasutra/bankfeed/internal/auth"
	"github.io/infrasutra/bankfeed/internal/config"
	"github.io/infrasutra/bankfeed/internal/importer"
	"github.io/infrasutra/bankfeed/internal/ingest"
	"github.io/infrasutra/bankfeed/internal/store"
)

func newIngestCommand() *cobra.Command {
	var user string
	var dir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Import .eml files from a local directory as transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), user, dir)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "email address of the owning user (required)")
	cmd.Flags().StringVar(&dir, "dir", "", "import directory (default: IMPORT_DIR)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runIngest(ctx context.Context, user, dir string) error {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	userID, err := auth.NormalizeEmail(user)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.ImportDir
	}
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if err := db.UpsertUser(ctx, userID, time.Now()); err != nil {
		return err
	}

	imp := importer.New(ingest.New(db, nil, logger), logger)
	result, err := imp.Run(ctx, userID, dir)
	if err != nil {
		return err
	}

	fmt.Printf("processed %d of %d emails\n", result.Processed, result.Total)
	return nil
}
