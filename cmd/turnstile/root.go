package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/turnstile/internal/cli"
	"github.com/aretw0/turnstile/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "turnstile",
	Short: "Turnstile turns a conversation into a prompt template",
	Long: `Turnstile gathers requirements from you in conversation and, once it has
enough, generates a prompt template from them. Threads are persisted and can be resumed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().String("store", "", "Checkpoint store: memory, file, redis or sqlite")
	rootCmd.PersistentFlags().String("dir", "", "Thread directory of the file store")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis URL of the redis store")
	rootCmd.PersistentFlags().String("provider", "", "Model provider: anthropic, openai or gemini")
	rootCmd.PersistentFlags().String("model", "", "Model name passed to the provider")
}

func globalOptions(cmd *cobra.Command) cli.Options {
	flags := cmd.Flags()
	opts := cli.Options{}
	opts.ConfigPath, _ = flags.GetString("config")
	opts.Debug, _ = flags.GetBool("debug")
	opts.Store, _ = flags.GetString("store")
	opts.Dir, _ = flags.GetString("dir")
	opts.RedisURL, _ = flags.GetString("redis-url")
	opts.Provider, _ = flags.GetString("provider")
	opts.Model, _ = flags.GetString("model")
	return opts
}
