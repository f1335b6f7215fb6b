package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue and scheduler statistics",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"))
		stats, err := client.GetStats()
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Request failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Request failed: %v\n", err)
			}
			return
		}

		cmd.Printf("%sQueue%s\n", colorBold, colorReset)
		cmd.Println("──────────────────────────────")
		cmd.Printf("%sWaiting:%s     %d\n", colorDim, colorReset, stats.Queue.Waiting)
		cmd.Printf("%sActive:%s      %d\n", colorDim, colorReset, stats.Queue.Active)
		cmd.Printf("%sCompleted:%s   %d\n", colorDim, colorReset, stats.Queue.Completed)
		cmd.Printf("%sFailed:%s      %d\n", colorDim, colorReset, stats.Queue.Failed)
		cmd.Printf("%sTotal:%s       %d\n", colorDim, colorReset, stats.Queue.Total)
		cmd.Printf("%sGroups:%s      %d\n", colorDim, colorReset, stats.Queue.Groups)
		cmd.Println()
		cmd.Printf("%sScheduler%s\n", colorBold, colorReset)
		cmd.Println("──────────────────────────────")
		cmd.Printf("%sAgents:%s      %d\n", colorDim, colorReset, stats.Scheduler.Agents)
		cmd.Printf("%sDevices:%s     %d\n", colorDim, colorReset, stats.Scheduler.Devices)
		cmd.Printf("%sRunning:%s     %d\n", colorDim, colorReset, stats.Scheduler.RunningJobs)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
