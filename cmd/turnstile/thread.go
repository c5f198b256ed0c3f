package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/turnstile/internal/cli"
)

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage persisted threads",
	Long:  `List, inspect, and remove threads held by the configured store.`,
}

var threadLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListThreads(cmd.Context(), globalOptions(cmd), cmd.OutOrStdout())
	},
}

var threadInspectCmd = &cobra.Command{
	Use:   "inspect <thread-id>",
	Short: "Print the turns of a thread as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.InspectThread(cmd.Context(), globalOptions(cmd), args[0], cmd.OutOrStdout())
	},
}

var threadRmCmd = &cobra.Command{
	Use:   "rm <thread-id>...",
	Short: "Remove one or more threads",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RemoveThreads(cmd.Context(), globalOptions(cmd), args, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadLsCmd)
	threadCmd.AddCommand(threadInspectCmd)
	threadCmd.AddCommand(threadRmCmd)
}
