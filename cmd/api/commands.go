package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/stroke-api/internal/config"
	"github.com/jwalitptl/stroke-api/internal/model"
	"github.com/jwalitptl/stroke-api/internal/repository/postgres"
	"github.com/jwalitptl/stroke-api/internal/service/exchange"
	"github.com/jwalitptl/stroke-api/pkg/metrics"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(configDir)
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate needs the %s driver, got %q", config.DriverPostgres, cfg.Database.Driver)
			}

			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Info().Msg("schema is up to date")
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var (
		name   string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import patient records from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), configDir, metrics.NewNop())
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			opts := exchange.ImportOptions{Name: name}
			if opts.Name == "" {
				opts.Name = filepath.Base(args[0])
			}
			if cmd.Flags().Changed("strict") {
				opts.Strict = &strict
			}

			result, err := a.exchange.Import(cmd.Context(), f, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d, skipped %d.\n", result.Imported, result.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "dataset name (defaults to the file name)")
	cmd.Flags().BoolVar(&strict, "strict", false, "reject the whole file if any row fails validation")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		params model.PatientSearchParams
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export patient records as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), configDir, metrics.NewNop())
			if err != nil {
				return err
			}
			defer a.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			n, err := a.exchange.Export(cmd.Context(), w, params)
			if err != nil {
				return err
			}
			a.logger.Info().Int("rows", n).Str("output", output).Msg("export finished")
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Search, "search", "", "free-text search term")
	cmd.Flags().StringVar(&params.Gender, "gender", "", "exact gender")
	cmd.Flags().StringVar(&params.Stroke, "stroke", "", "stroke outcome (0 or 1)")
	cmd.Flags().StringVar(&params.AgeMin, "age-min", "", "minimum age")
	cmd.Flags().StringVar(&params.AgeMax, "age-max", "", "maximum age")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (defaults to stdout)")
	return cmd
}
