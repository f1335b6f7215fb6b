package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [job_id]",
	Short: "Cancel a job",
	Long: `Cancel a queued, scheduled, or running test run.

A test already executing on a device cannot be interrupted; its outcome is
discarded when it finishes. Cancelling a completed or failed job is
rejected.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"))
		job, err := client.CancelJob(args[0])
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Cancel failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Cancel failed: %v\n", err)
			}
			return
		}
		cmd.Printf("✓ Job %s cancelled\n", job.JobID)
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
