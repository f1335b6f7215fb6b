package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices in the resource pool",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"))
		devices, err := client.GetDevices()
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Request failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Request failed: %v\n", err)
			}
			return
		}

		cmd.Printf("%s%d device(s)%s\n", colorBold, len(devices), colorReset)
		cmd.Println("──────────────────────────────")
		for _, d := range devices {
			marker := colorGreen + "●" + colorReset
			if d.Status == "busy" {
				marker = colorYellow + "●" + colorReset
			}
			jobs := "-"
			if len(d.CurrentJobs) > 0 {
				jobs = strings.Join(d.CurrentJobs, ", ")
			}
			cmd.Printf("%s %-16s %-14s %s%s%s  %s\n",
				marker, d.ID, d.AgentID, colorDim, d.Status, colorReset, jobs)
		}
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
