package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/turnstile/internal/cli"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start or resume an interactive conversation",
	Long: `Starts the interactive loop on the terminal. Without --thread a new thread is
created; its id is printed on exit so it can be resumed later.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.ChatOptions{Options: globalOptions(cmd)}
		opts.ThreadID, _ = cmd.Flags().GetString("thread")
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		return cli.RunChat(opts, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("thread", "t", "", "Thread id to resume")
	chatCmd.Flags().Bool("headless", false, "Run in headless mode (no banner, no prompts)")
	chatCmd.Flags().Bool("fresh", false, "Delete the thread before starting")

	rootCmd.RunE = chatCmd.RunE
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())
}
