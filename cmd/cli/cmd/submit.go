package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"testdeck/pkg/api"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a test run",
	Long: `Submit a UI test run to the orchestrator queue.

Jobs sharing the same org, app version, and target are grouped onto one
device so the app build is installed once per batch. Submitting an
identical test while one is already queued or running returns the existing
job instead of creating a duplicate.

Example:
  testctl submit --org acme --app v1.2.0 --test login.spec --target emulator
  testctl submit --org acme --app v1.2.0 --test checkout.spec --target browserstack --priority high`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		org, _ := flags.GetString("org")
		app, _ := flags.GetString("app")
		test, _ := flags.GetString("test")
		target, _ := flags.GetString("target")
		priority, _ := flags.GetString("priority")

		if org == "" {
			cmd.Println("Error: --org is required")
			return
		}
		if app == "" {
			cmd.Println("Error: --app is required")
			return
		}
		if test == "" {
			cmd.Println("Error: --test is required")
			return
		}

		client := NewClient(viper.GetString("url"))
		result, err := client.SubmitJob(api.SubmitJobRequest{
			OrgID:        org,
			AppVersionID: app,
			TestPath:     test,
			Target:       target,
			Priority:     priority,
		})
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Submit failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Submit failed: %v\n", err)
			}
			return
		}

		if result.Message == "duplicate" {
			cmd.Printf("Duplicate submission — existing job is %s (status: %s)\n", result.JobID, result.Status)
			return
		}
		cmd.Printf("✓ Job submitted!\nJob ID: %s\nStatus: %s\n", result.JobID, result.Status)
	},
}

func init() {
	flags := submitCmd.Flags()
	flags.StringP("org", "o", "", "Organization ID (required)")
	flags.StringP("app", "a", "", "App version ID (required)")
	flags.StringP("test", "t", "", "Test path (required)")
	flags.String("target", "", "Target device type: emulator, device, or browserstack")
	flags.StringP("priority", "p", "", "Priority: low, medium, or high")

	rootCmd.AddCommand(submitCmd)
}
