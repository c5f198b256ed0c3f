package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/turnstile/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Exposes threads over a JSON API with SSE notifications and Prometheus metrics.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.ServeOptions{Options: globalOptions(cmd)}
		opts.Addr, _ = cmd.Flags().GetString("addr")
		return cli.RunServe(opts)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides server.addr)")
}
