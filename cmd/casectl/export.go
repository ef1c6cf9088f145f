package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/caseflow-dev/caseflow/pkg/util"
	"github.com/caseflow-dev/caseflow/sdk"
)

func openService(dbDSN, driverFlag, prefix string) (sdk.Service, *sql.DB, error) {
	drv := driverFlag
	if drv == "" {
		var err error
		drv, err = util.DetectDriver(dbDSN)
		if err != nil {
			return nil, nil, err
		}
	}
	db, err := sql.Open(drv, dbDSN)
	if err != nil {
		return nil, nil, err
	}
	return sdk.New(sdk.ServiceConfig{DB: db, Driver: drv, TablePrefix: prefix}), db, nil
}

func newExportCmd() *cobra.Command {
	var (
		out        string
		force      bool
		dbDSN      string
		driverFlag string
		prefix     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export case templates to YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("--out is required")
			}
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", out)
			}
			svc, db, err := openService(dbDSN, driverFlag, prefix)
			if err != nil {
				return err
			}
			defer db.Close()
			data, err := svc.ExportTemplates(context.Background())
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported templates to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbDSN, "db", "", "database DSN")
	cmd.Flags().StringVar(&driverFlag, "driver", "", "database driver (mysql|postgres|sqlite3)")
	cmd.Flags().StringVar(&prefix, "table-prefix", "", "storage table prefix")
	cmd.Flags().StringVar(&out, "out", "templates.yaml", "output file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite without confirmation")
	mustFlag(cmd, "db")
	return cmd
}

func newApplyCmd() *cobra.Command {
	var (
		file       string
		dbDSN      string
		driverFlag string
		prefix     string
		actor      string
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create case templates from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			svc, db, err := openService(dbDSN, driverFlag, prefix)
			if err != nil {
				return err
			}
			defer db.Close()
			rep, err := svc.ApplyTemplates(context.Background(), data, actor)
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
	cmd.Flags().StringVar(&file, "file", "templates.yaml", "input file")
	cmd.Flags().StringVar(&actor, "actor", "casectl", "recorded creator")
	mustFlag(cmd, "db")
	return cmd
}
