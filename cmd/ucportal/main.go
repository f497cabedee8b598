package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "ucportal",
	Short: "Collaboration lab portal for CUCM, Unity Connection, CMS and Webex",
	Long: `ucportal serves a REST facade over the Cisco collaboration APIs
(AXL, UDS, CUPI, CMS, Webex, RisPort70, PerfMon) and keeps the lab's own
records (call flows, test results, locations, uploads) in SQLite.

Run "ucportal start" to serve, then use the other commands against it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, mcpCmd)
	rootCmd.AddCommand(configCmd, flowsCmd)
	rootCmd.AddCommand(phoneCmd, userCmd, deviceCmd, spaceCmd, voicemailCmd, resultsCmd, axlCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
