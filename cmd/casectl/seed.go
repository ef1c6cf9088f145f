package main

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/spf13/cobra"
)

//go:embed seed_templates.yaml
var seedTemplates []byte

func newSeedCmd() *cobra.Command {
	var (
		dbDSN      string
		driverFlag string
		prefix     string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the bundled starter templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, err := openService(dbDSN, driverFlag, prefix)
			if err != nil {
				return err
			}
			defer db.Close()
			rep, err := svc.ApplyTemplates(context.Background(), seedTemplates, "admin")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d\n", rep.Created, rep.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbDSN, "db", "", "database DSN")
	cmd.Flags().StringVar(&driverFlag, "driver", "", "database driver (mysql|postgres|sqlite3)")
	cmd.Flags().StringVar(&prefix, "table-prefix", "", "storage table prefix")
	mustFlag(cmd, "db")
	return cmd
}
