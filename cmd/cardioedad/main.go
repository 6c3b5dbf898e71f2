package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardioedad/cardioedad/internal/config"
	"github.com/cardioedad/cardioedad/internal/domain/icu"
	"github.com/cardioedad/cardioedad/internal/platform/auth"
	"github.com/cardioedad/cardioedad/internal/platform/db"
	"github.com/cardioedad/cardioedad/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "cardioedad",
		Short:        "CardioEDAD clinical charting API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(passphraseCmd())
	rootCmd.AddCommand(doseCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationFiles returns the embedded migrations unless an override
// directory is configured.
func migrationFiles(cfg *config.Config) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationFiles(cfg)), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func passphraseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passphrase",
		Short: "Manage the unit access passphrase",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "hash [passphrase]",
		Short: "Print a bcrypt hash for ACCESS_PASSPHRASE_HASH",
		Long:  "Print a bcrypt hash for ACCESS_PASSPHRASE_HASH. Without an argument the passphrase is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var passphrase string
			if len(args) == 1 {
				passphrase = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("read passphrase: %w", err)
				}
				passphrase = strings.TrimRight(line, "\r\n")
			}
			if passphrase == "" {
				return fmt.Errorf("passphrase must not be empty")
			}

			hash, err := auth.HashPassphrase(passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	})
	return cmd
}

func doseCmd() *cobra.Command {
	var (
		drug       string
		convention string
		in         icu.DoseInput
	)
	cmd := &cobra.Command{
		Use:   "dose",
		Short: "Convert an infusion rate into a weight-based dose",
		Example: "  cardioedad dose --drug noradrenalina --mass 4 --volume 250 --rate 10 --weight 80\n" +
			"  cardioedad dose --convention units/min --mass 20 --volume 100 --rate 6",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Convention = icu.Convention(convention)
			if in.Convention == "" {
				c, ok := icu.ConventionFor(drug)
				if !ok {
					return fmt.Errorf("unknown drug %q, pass --convention", drug)
				}
				in.Convention = c
			}

			d := icu.ConvertDose(in)
			out := cmd.OutOrStdout()
			if !d.Computable {
				fmt.Fprintf(out, "%s (%s)\n", d, d.Reason)
				return nil
			}
			fmt.Fprintln(out, d)
			if d.WeightDefaulted {
				fmt.Fprintf(out, "warning: no weight given, assumed %.0f kg\n", d.WeightKg)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&drug, "drug", "", "Drug name, used to pick the dosing convention")
	cmd.Flags().StringVar(&convention, "convention", "", "mcg/kg/min, mcg/kg/h or units/min")
	cmd.Flags().StringVar(&in.Mass, "mass", "", "Drug amount in the bag (mg, or units)")
	cmd.Flags().StringVar(&in.Volume, "volume", "", "Bag volume in ml")
	cmd.Flags().StringVar(&in.Rate, "rate", "", "Infusion rate in ml/h")
	cmd.Flags().Float64Var(&in.WeightKg, "weight", 0, "Patient weight in kg")
	return cmd
}
