package cli

import (
	"fmt"
	"os"

	"github.com/soyeahso/vconscribe/internal/config"
	"github.com/soyeahso/vconscribe/internal/logging"
	"github.com/soyeahso/vconscribe/internal/store"
	"github.com/soyeahso/vconscribe/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show vconscribe status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("vconscribe %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
				}
				return nil
			}
			if cfg.Store.Dir == "" {
				cfg.Store.Dir = paths.Vcons
			}

			fmt.Printf("Matrix:  homeserver=%s user=%s\n",
				cfg.Matrix.HomeserverURL, cfg.Matrix.UserID)
			if cfg.Matrix.AccessToken == "" {
				fmt.Println("         (no access token configured)")
			}
			fmt.Printf("Export:  conserver=%s interval=%s retention=%s\n",
				cfg.Export.URL, cfg.Export.Interval, cfg.Export.Retention)
			fmt.Printf("Store:   %s\n", cfg.Store.Dir)

			// Pending records on disk
			quiet := logging.New(nil, "silent")
			if st, err := store.New(cfg.Store.Dir, quiet); err == nil {
				if records, err := st.List(); err == nil {
					fmt.Printf("Pending: %d record(s)\n", len(records))
					for _, path := range records {
						rec, err := st.Load(path)
						if err != nil {
							fmt.Printf("  - %s (unreadable: %v)\n", path, err)
							continue
						}
						fmt.Printf("  - %s  parties=%d dialog=%d created=%s\n",
							rec.Subject, len(rec.Parties), len(rec.Dialog), rec.CreatedAt)
					}
				}
			}

			if cfg.Gateway.Enabled {
				fmt.Printf("Gateway: port=%d auth=%v\n", cfg.Gateway.Port, cfg.Gateway.Token != "")
			} else {
				fmt.Println("Gateway: disabled")
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}
}
