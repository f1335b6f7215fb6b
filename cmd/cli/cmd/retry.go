package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var retryCmd = &cobra.Command{
	Use:   "retry [job_id]",
	Short: "Retry a failed job",
	Long: `Re-queue a failed test run, consuming one retry from its budget.

Only failed jobs with remaining retries can be retried; once the budget is
exhausted the job stays failed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"))
		job, err := client.RetryJob(args[0])
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Retry failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Retry failed: %v\n", err)
			}
			return
		}
		cmd.Printf("✓ Job %s re-queued (retry %d/%d)\n", job.JobID, job.RetryCount, job.MaxRetries)
	},
}

func init() {
	rootCmd.AddCommand(retryCmd)
}
