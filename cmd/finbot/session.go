package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or reset stored conversations",
}

var sessionStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the stored state of the conversation as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		state, err := a.session.State(cmd.Context(), sessionKey(cmd))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(state)
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		keys, err := a.session.Keys(cmd.Context())
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", k.UserID, k.RoomID)
		}
		return nil
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		key := sessionKey(cmd)
		if err := a.session.Reset(cmd.Context(), key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", key)
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionStateCmd, sessionListCmd, sessionResetCmd)
	rootCmd.AddCommand(sessionCmd)
}
