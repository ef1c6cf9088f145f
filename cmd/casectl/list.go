package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/caseflow-dev/caseflow/internal/casestore"
)

func newListCmd() *cobra.Command {
	var (
		dbDSN      string
		driverFlag string
		prefix     string
		output     string
		status     string
		assignedTo string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, err := openService(dbDSN, driverFlag, prefix)
			if err != nil {
				return err
			}
			defer db.Close()
			cases, err := svc.ListCases(context.Background(), casestore.Filter{
				Status:     status,
				AssignedTo: assignedTo,
				Limit:      limit,
			})
			if err != nil {
				return err
			}
			if output == "json" {
				b, err := json.MarshalIndent(cases, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			}
			tw := tablewriter.NewWriter(os.Stdout)
			tw.SetHeader([]string{"Number", "Title", "Status", "Priority", "Assignee", "Template"})
			for _, c := range cases {
				tw.Append([]string{c.CaseNumber, c.Title, string(c.Status), string(c.Priority), c.AssignedTo, strconv.FormatInt(c.TemplateID, 10)})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&dbDSN, "db", "", "database DSN")
	cmd.Flags().StringVar(&driverFlag, "driver", "", "database driver (mysql|postgres|sqlite3)")
	cmd.Flags().StringVar(&prefix, "table-prefix", "", "storage table prefix")
	cmd.Flags().StringVar(&output, "output", "table", "output format (table|json)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&assignedTo, "assigned-to", "", "filter by assignee")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	mustFlag(cmd, "db")
	return cmd
}
