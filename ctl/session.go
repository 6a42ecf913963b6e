package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	ghostline "github.com/Paranoid-AF/ghostline"
)

func newCancelCmd(root *rootOptions) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the in-flight completion of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp ghostline.CancelResponse
			req := ghostline.CancelRequest{Type: "cancel", SessionID: session}
			if err := root.client().call(cmd.Context(), req, &resp); err != nil {
				return err
			}
			if err := responseError(resp.Error); err != nil {
				return err
			}
			if resp.Cancelled {
				fmt.Fprintf(cmd.OutOrStdout(), "%s cancelled %s\n", successMark, session)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", dimStyle.Render("nothing in flight for "+session))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&session, "session", "s", "", "session id")
	cmd.MarkFlagRequired("session")

	return cmd
}

func newWarmCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "warm [dir]",
		Short: "Pre-gather project context for a directory",
		Long: `Ask the daemon to gather project context (git root, manifests, package
manager) for a directory ahead of the first completion. Defaults to the
current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}

			var resp ghostline.ContextResponse
			if err := root.client().call(cmd.Context(), ghostline.ContextRequest{Type: "context", Cwd: abs}, &resp); err != nil {
				return err
			}
			if err := responseError(resp.Error); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s warming %s\n", successMark, abs)
			return nil
		},
	}
}

func newAcceptCmd(root *rootOptions) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "accept <text>|-",
		Short: "Record an accepted suggestion in the snippet index",
		Long: `Record an accepted suggestion. Accepted snippets are offered to the model
as examples in later completions. Pass "-" to read the snippet from stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = string(data)
			}

			var resp ghostline.AcceptResponse
			req := ghostline.AcceptRequest{Type: "accept", LanguageID: language, Text: text}
			if err := root.client().call(cmd.Context(), req, &resp); err != nil {
				return err
			}
			if err := responseError(resp.Error); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s recorded\n", successMark)
			return nil
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "language id of the snippet")

	return cmd
}
