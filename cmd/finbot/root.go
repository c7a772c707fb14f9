package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/finflow/pkg/finbot/session"
)

var rootCmd = &cobra.Command{
	Use:   "finbot",
	Short: "Finance assistant for deposits, savings and jeonse loans",
	Long: `finbot recommends deposit, savings and jeonse loan products and
calculates their returns and interest, asking for missing details over
several turns.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env", ".env", "Env file loaded before reading FINBOT_ variables")
	rootCmd.PersistentFlags().String("user", "local", "User ID of the conversation")
	rootCmd.PersistentFlags().String("room", "default", "Room ID of the conversation")
}

func envFile(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("env")
	return path
}

func sessionKey(cmd *cobra.Command) session.Key {
	user, _ := cmd.Flags().GetString("user")
	room, _ := cmd.Flags().GetString("room")
	return session.Key{UserID: user, RoomID: room}
}
