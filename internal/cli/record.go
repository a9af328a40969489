package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/soyeahso/vconscribe/internal/channel"
	"github.com/soyeahso/vconscribe/internal/channel/matrix"
	"github.com/soyeahso/vconscribe/internal/config"
	"github.com/soyeahso/vconscribe/internal/export"
	"github.com/soyeahso/vconscribe/internal/gateway"
	"github.com/soyeahso/vconscribe/internal/hooks"
	"github.com/soyeahso/vconscribe/internal/record"
	"github.com/soyeahso/vconscribe/internal/store"
	"github.com/soyeahso/vconscribe/internal/sweep"
	"github.com/spf13/cobra"
)

func newRecordCmd() *cobra.Command {
	var (
		storeDir     string
		conserverURL string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Run the recorder daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if storeDir != "" {
				cfg.Store.Dir = storeDir
			}
			if conserverURL != "" {
				cfg.Export.URL = conserverURL
			}
			if cfg.Store.Dir == "" {
				cfg.Store.Dir = paths.Vcons
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if cfg.Matrix.AccessToken == "" {
				return fmt.Errorf("matrix.accessToken is required (set VCONSCRIBE_MATRIX_TOKEN or the config file)")
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			st, err := store.New(cfg.Store.Dir, log)
			if err != nil {
				return err
			}
			log.Info().Str("dir", cfg.Store.Dir).Msg("record store ready")

			db, err := store.OpenDB(filepath.Join(paths.Data, "vconscribe.db"), log)
			if err != nil {
				return fmt.Errorf("opening export journal: %w", err)
			}
			defer db.Close()
			journal := store.NewJournal(db)

			hookMgr := hooks.NewManager(log)

			recorder := record.NewRecorder(st, hookMgr, cfg.Identity, log)
			client := export.NewClient(cfg.Export.URL, log)
			sweeper := sweep.NewSweeper(st, journal, client, hookMgr,
				cfg.Export.Interval.Std(), cfg.Export.Retention.Std(), log)

			channels := channel.NewRegistry(log)
			mx := matrix.New(cfg.Matrix, log)
			mx.OnMessage(recorder.Enqueue)
			channels.Register(mx)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go recorder.Run(ctx)
			go sweeper.Run(ctx)
			channels.StartAll(ctx)

			if cfg.Gateway.Enabled {
				srv := gateway.NewServer(cfg.Gateway, st, journal, channels, hookMgr, log)
				go func() {
					if err := srv.Start(ctx); err != nil {
						log.Error().Err(err).Msg("gateway server failed")
					}
				}()
			}

			log.Info().
				Str("homeserver", cfg.Matrix.HomeserverURL).
				Str("conserver", cfg.Export.URL).
				Msg("recorder running")

			<-ctx.Done()
			channels.StopAll(context.Background())
			return nil
		},
	}

	cmd.Flags().StringVar(&storeDir, "store-dir", "", "directory for vCon record files (default ~/.vconscribe/vcons)")
	cmd.Flags().StringVar(&conserverURL, "conserver-url", "", "conserver ingest endpoint")

	return cmd
}
