package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"jan-server/services/mesh-api/internal/domain/job"
	"jan-server/services/mesh-api/internal/infrastructure/jobstore"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect generation jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded jobs, newest first",
	Long:  `Read the job snapshot written by mesh-api and print the most recent jobs.`,
	RunE:  runJobsList,
}

func init() {
	jobsCmd.AddCommand(jobsListCmd)

	jobsListCmd.Flags().Int("limit", 20, "Maximum number of jobs (0 for all)")
	jobsListCmd.Flags().String("format", "table", "Output format: table, json, yaml")
	jobsListCmd.Flags().StringP("file", "f", "", "Snapshot file (default: MESH_JOBS_SNAPSHOT)")
}

func runJobsList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")
	path, _ := cmd.Flags().GetString("file")

	if path == "" {
		cfg, _, err := loadRuntime(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = cfg.JobsSnapshot
	}

	records, err := jobstore.LoadSnapshot(path)
	if err != nil {
		return err
	}
	store := jobstore.NewMemoryStore(nil, zerolog.Nop())
	store.Restore(records)

	return renderJobs(os.Stdout, store.List(limit), format)
}

func renderJobs(w io.Writer, jobs []job.Job, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(jobs)
	case "table", "":
		if len(jobs) == 0 {
			fmt.Fprintln(w, "No jobs recorded")
			return nil
		}
		var data [][]string
		for _, j := range jobs {
			data = append(data, []string{j.ID, string(j.Status), j.CreatedAt.Format(time.RFC3339), j.Message})
		}

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"ID", "STATUS", "CREATED", "MESSAGE"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetAutoWrapText(false)
		table.SetHeaderLine(false)
		table.SetBorder(false)
		table.SetNoWhiteSpace(true)
		table.SetTablePadding("    ")
		table.AppendBulk(data)
		table.Render()
		return nil
	default:
		return fmt.Errorf("unsupported format %q (use table, json or yaml)", format)
	}
}
