// Command tracker serves the project tracker API and runs its maintenance
// passes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// configFile is set by the --config flag.
	configFile string

	// seedAdmin is set by serve --seed-admin.
	seedAdmin bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Project tracker API server",
	Long: `tracker serves the project tracker HTTP API. Entities live in a blob
store (Redis, SQL or memory) with YAML snapshots of projects and tasks on
disk. Run without a subcommand to serve.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Recover the store and serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Purge deleted entities, restore snapshots and compact tombstones",
	Args:  cobra.NoArgs,
	RunE:  runRestore,
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Drop tombstones whose entities are fully gone",
	Args:  cobra.NoArgs,
	RunE:  runCompact,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Repair or remove entities that no longer decode",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML); environment variables override it")
	rootCmd.Flags().BoolVar(&seedAdmin, "seed-admin", false, "create the admin account when it does not exist")
	serveCmd.Flags().BoolVar(&seedAdmin, "seed-admin", false, "create the admin account when it does not exist")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(sweepCmd)
}
