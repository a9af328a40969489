package cli

import (
	"fmt"
	"path/filepath"

	"github.com/soyeahso/vconscribe/internal/config"
	"github.com/soyeahso/vconscribe/internal/export"
	"github.com/soyeahso/vconscribe/internal/hooks"
	"github.com/soyeahso/vconscribe/internal/store"
	"github.com/soyeahso/vconscribe/internal/sweep"
	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var ignoreRetention bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one export sweep pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if cfg.Store.Dir == "" {
				cfg.Store.Dir = paths.Vcons
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			st, err := store.New(cfg.Store.Dir, log)
			if err != nil {
				return err
			}

			db, err := store.OpenDB(filepath.Join(paths.Data, "vconscribe.db"), log)
			if err != nil {
				return fmt.Errorf("opening export journal: %w", err)
			}
			defer db.Close()

			retention := cfg.Export.Retention.Std()
			if ignoreRetention {
				retention = 0
			}

			client := export.NewClient(cfg.Export.URL, log)
			sweeper := sweep.NewSweeper(st, store.NewJournal(db), client,
				hooks.NewManager(log), cfg.Export.Interval.Std(), retention, log)

			res := sweeper.SweepOnce(cmd.Context())
			fmt.Printf("scanned=%d exported=%d failed=%d skipped=%d\n",
				res.Scanned, res.Exported, res.Failed, res.Skipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&ignoreRetention, "all", false, "export every record regardless of age")

	return cmd
}
