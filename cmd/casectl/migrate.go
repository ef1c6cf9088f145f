package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caseflow-dev/caseflow/sdk"
)

func newMigrateCmd() *cobra.Command {
	var (
		dbDSN      string
		driverFlag string
		prefix     string
		target     int
		version    bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the case-management schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc := sdk.New(sdk.ServiceConfig{})
			cfg := sdk.DBConfig{Driver: driverFlag, DSN: dbDSN, TablePrefix: prefix}
			if version {
				v, err := svc.SchemaVersion(ctx, cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", v)
				return nil
			}
			if err := svc.Migrate(ctx, cfg, target); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema migrated")
			return nil
		},
	}
	cmd.Flags().StringVar(&dbDSN, "db", "", "database DSN")
	cmd.Flags().StringVar(&driverFlag, "driver", "", "database driver (mysql|postgres|sqlite3)")
	cmd.Flags().StringVar(&prefix, "table-prefix", "", "storage table prefix")
	cmd.Flags().IntVar(&target, "to", 0, "target schema version (0=latest)")
	cmd.Flags().BoolVar(&version, "version", false, "print the current version and exit")
	mustFlag(cmd, "db")
	return cmd
}
