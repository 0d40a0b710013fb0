package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wireroom-server/internal/app"
	wlog "github.com/vovakirdan/wireroom-server/internal/log"
)

func profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List persisted profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Root(), flagsFrom(cmd))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			st, err := app.OpenStore(ctx, cfg, wlog.New(cfg.LogLevel))
			if err != nil {
				return err
			}
			defer st.Close()

			profiles, err := st.ListProfiles(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOLOR\tUPDATED")
			for _, p := range profiles {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Color, p.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

// flagsFrom reads the persistent flags shared with the root command.
func flagsFrom(cmd *cobra.Command) flagOverrides {
	var f flagOverrides
	flags := cmd.Flags()
	f.configPath, _ = flags.GetString("config")
	f.storeDriver, _ = flags.GetString("store")
	f.databasePath, _ = flags.GetString("db")
	f.redisAddr, _ = flags.GetString("redis-addr")
	return f
}
