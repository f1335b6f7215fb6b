package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "testctl",
	Short: "Testctl is a command line tool for interacting with the testdeck orchestrator",
	Long: `testctl is the command-line interface for the testdeck UI test orchestrator.

Testdeck queues mobile/web UI test runs, groups compatible requests so one
app install serves many tests, and assigns each group to an agent holding a
matching device (emulator, physical device, or cloud browser).

Common workflows:

  Submit a test run:
    testctl submit --org acme --app v1.2.0 --test checkout.spec --target emulator

  Check a job:
    testctl status <job-id>

  List an org's jobs:
    testctl list --org acme --status queued

  Cancel or retry:
    testctl cancel <job-id>
    testctl retry <job-id>

  Inspect the system:
    testctl stats
    testctl devices

Configuration:
  Set the API endpoint via environment variable or config file:
    TESTDECK_URL    API endpoint (default: http://localhost:8080)`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".testctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".testctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "TESTDECK_VARNAME"
	viper.SetEnvPrefix("TESTDECK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.testctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:8080", "Testdeck orchestrator URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}
