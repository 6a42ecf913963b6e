package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	ghostline "github.com/Paranoid-AF/ghostline"
	"github.com/Paranoid-AF/ghostline/logger"
)

const rootLongDesc string = `ghostline talks to the ghostlined daemon over its Unix socket.

Socket resolution: --socket > $GHOSTLINE_SOCKET > $XDG_RUNTIME_DIR/ghostline.sock
> /tmp/ghostline-<uid>.sock

Examples:
  ghostline complete --file main.go --offset 120
  ghostline warm ~/src/project
  ghostline config validate`

const rootShortDesc string = "ghostline - inline code completion client"

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	socket  string
	timeout time.Duration
	debug   bool
}

func (o *rootOptions) client() *client {
	return &client{sockPath: o.socket, timeout: o.timeout}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "ghostline",
		Short:        rootShortDesc,
		Long:         rootLongDesc,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logger.New(
				logger.WithDebug(opts.debug),
				logger.WithWriter(cmd.ErrOrStderr()),
			))
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.socket, "socket", ghostline.SocketPath(), "daemon socket path")
	flags.DurationVar(&opts.timeout, "timeout", 60*time.Second, "give up after this long")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")

	cmd.AddCommand(
		newCompleteCmd(opts),
		newCancelCmd(opts),
		newWarmCmd(opts),
		newAcceptCmd(opts),
		newConfigCmd(opts),
		newModelsCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ghostline", Version)
		},
	}
}
