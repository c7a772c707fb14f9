package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/finflow/pkg/finbot/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant interactively",
	Long: `Opens the room with a greeting and answers one line at a time.
Type /reset to forget the conversation and exit to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		key := sessionKey(cmd)
		out := cmd.OutOrStdout()

		reply, err := a.session.Open(ctx, key)
		if err != nil {
			return err
		}
		printReply(out, reply)

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			switch line {
			case "":
				continue
			case "exit", "quit":
				return nil
			case "/reset":
				if err := a.session.Reset(ctx, key); err != nil {
					return err
				}
				fmt.Fprintln(out, "(대화를 초기화했습니다)")
				continue
			}

			reply, err := a.session.Ask(ctx, key, line)
			if err != nil {
				return err
			}
			printReply(out, reply)
		}
		return scanner.Err()
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message and print the reply",
	Long: `Sends one message. If the previous turn is waiting for an answer the
message answers it. Use a persistent store (FINBOT_STORE=sqlite or redis)
to keep the conversation between invocations.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		reply, err := a.session.Ask(cmd.Context(), sessionKey(cmd), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return writeReply(cmd, reply)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <token> <answer>",
	Short: "Answer the pending question identified by token",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		reply, err := a.session.Resume(cmd.Context(), sessionKey(cmd), args[0], strings.Join(args[1:], " "))
		if werr := writeReply(cmd, reply); werr != nil {
			return werr
		}
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{askCmd, resumeCmd} {
		c.Flags().Bool("json", false, "Print the reply as JSON")
	}
	rootCmd.AddCommand(chatCmd, askCmd, resumeCmd)
}

func writeReply(cmd *cobra.Command, reply session.Reply) error {
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(reply)
	}
	printReply(out, reply)
	if reply.Awaiting {
		fmt.Fprintf(out, "(token: %s)\n", reply.Token)
	}
	return nil
}

func printReply(w io.Writer, reply session.Reply) {
	fmt.Fprintln(w, reply.Answer)
	if reply.Error != "" {
		fmt.Fprintf(w, "(error: %s)\n", reply.Error)
	}
}
