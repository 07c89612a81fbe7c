package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"assetd/pkg/db"
	gos3 "assetd/pkg/s3"
	"assetd/services/archive"
	"assetd/services/registry"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "assetctl",
		Short:         "Operator utility for the asset registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSeedCommand())
	cmd.AddCommand(newAuditCommand())
	return cmd
}

func openStore(ctx context.Context) (*registry.PGStore, func(), error) {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		return nil, nil, errors.New("DB_DSN is required")
	}

	pool, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return registry.NewPGStore(pool), pool.Close, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and reconcile identifier sequences",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_ = godotenv.Load()

			dsn := os.Getenv("DB_DSN")
			if dsn == "" {
				return errors.New("DB_DSN is required")
			}

			pool, err := db.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}

			if err := registry.NewPGStore(pool).SyncSequences(ctx); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	var (
		file  string
		actor string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create fixture entities through the regular create pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			fixtures, err := registry.LoadSeedFile(file)
			if err != nil {
				return err
			}

			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
			svc, err := registry.NewService(store, nil, logger)
			if err != nil {
				return err
			}

			if err := svc.Seed(ctx, actor, fixtures); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "seed complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the YAML fixture file")
	cmd.Flags().StringVar(&actor, "actor", "System", "Actor recorded on seeded audit entries")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit trail operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newAuditExportCommand())
	return cmd
}

func newAuditExportCommand() *cobra.Command {
	var (
		bucket     string
		presignTTL time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Upload the audit trail to S3 as gzip JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			if bucket == "" {
				bucket = os.Getenv("S3_BUCKET")
			}
			if bucket == "" {
				return errors.New("--bucket or S3_BUCKET is required")
			}

			client, err := gos3.NewClientFromEnv()
			if err != nil {
				return fmt.Errorf("s3 client: %w", err)
			}

			exporter, err := archive.NewExporter(store, client, bucket)
			if err != nil {
				return err
			}

			key, err := exporter.Export(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)

			if presignTTL > 0 {
				url, err := exporter.PresignDownload(ctx, key, presignTTL)
				if err != nil {
					return fmt.Errorf("presign archive: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Destination bucket (defaults to S3_BUCKET)")
	cmd.Flags().DurationVar(&presignTTL, "presign-ttl", 0, "Also print a presigned download URL valid for this duration")
	return cmd
}
