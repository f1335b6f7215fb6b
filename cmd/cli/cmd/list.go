package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs for an organization",
	Long: `List test runs belonging to an organization, optionally filtered by
status.

Example:
  testctl list --org acme
  testctl list --org acme --status failed`,
	Run: func(cmd *cobra.Command, args []string) {
		org, _ := cmd.Flags().GetString("org")
		status, _ := cmd.Flags().GetString("status")

		if org == "" {
			cmd.Println("Error: --org is required")
			return
		}

		client := NewClient(viper.GetString("url"))
		result, err := client.ListJobs(org, status)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Request failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Request failed: %v\n", err)
			}
			return
		}

		if result.Count == 0 {
			cmd.Println("No jobs found")
			return
		}

		cmd.Printf("%s%d job(s) for %s%s\n", colorBold, result.Count, result.OrgID, colorReset)
		cmd.Println("──────────────────────────────")
		for _, job := range result.Jobs {
			cmd.Printf("%s  %s  %s%s%s  %s\n",
				colorizeStatus(job.Status),
				job.JobID,
				colorDim, job.TestPath, colorReset,
				job.Target)
		}
	},
}

func init() {
	flags := listCmd.Flags()
	flags.StringP("org", "o", "", "Organization ID (required)")
	flags.StringP("status", "s", "", "Filter by status")

	rootCmd.AddCommand(listCmd)
}
