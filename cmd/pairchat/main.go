package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "pairchat",
	Short:         "Anonymous one-to-one chat in the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			_ = os.Setenv("CONFIG_PATH", configPath)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (overrides CONFIG_PATH)")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(leaveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "pairchat:", err)
		os.Exit(1)
	}
}
