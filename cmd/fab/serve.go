// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"time"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/issue"
	"github.com/fabgo/fab/internal/sshserver"
	"github.com/fabgo/fab/pkg/types"

	"github.com/spf13/cobra"
)

type serveFlags struct {
	host           string
	port           int
	user           string
	password       string
	shell          string
	authorizedKeys string
	hostKey        string
	tokenTTL       time.Duration
}

// newServeCommand creates the `fab serve` command, a development SSH target
// that runs exec requests through a local shell.
func newServeCommand(app *App, root *rootFlags) *cobra.Command {
	flags := &serveFlags{}
	defaults := sshserver.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local SSH server to try tasks against",
		Long: `Run a local SSH server that executes commands through a shell on this
machine. It is meant for trying out fabfiles without real servers:

  fab serve --port 2222 --password secret
  FAB_SSH_PASSWORD=secret fab -H localhost:2222 -- uptime

A one-time login token is printed on start and is accepted as the password
until it expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.serve(cmd, flags, root.verbose)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.host, "host", defaults.Host.String(), "address to listen on")
	f.IntVar(&flags.port, "port", 0, "port to listen on (0 picks a free port)")
	f.StringVar(&flags.user, "user", "", "only accept this login name")
	f.StringVar(&flags.password, "password", "", "accept this password for every login")
	f.StringVar(&flags.shell, "shell", defaults.Shell, "shell that runs exec requests")
	f.StringVar(&flags.authorizedKeys, "authorized-keys", "", "authorized_keys file for public key logins")
	f.StringVar(&flags.hostKey, "host-key", "", "host key path (created if missing; empty uses an ephemeral key)")
	f.DurationVar(&flags.tokenTTL, "token-ttl", defaults.TokenTTL, "lifetime of the printed login token")

	return cmd
}

func (a *App) serve(cmd *cobra.Command, flags *serveFlags, verbose bool) error {
	ctx := cmd.Context()

	cfg := sshserver.DefaultConfig()
	cfg.Host = sshserver.HostAddress(flags.host)
	cfg.Port = types.ListenPort(flags.port)
	cfg.User = flags.user
	cfg.Password = flags.password
	cfg.Shell = flags.shell
	cfg.AuthorizedKeysFile = flags.authorizedKeys
	cfg.HostKeyPath = flags.hostKey
	cfg.TokenTTL = flags.tokenTTL

	srv := sshserver.New(cfg)
	srv.SetLogger(a.newLogger(verbose))
	if err := srv.Start(ctx); err != nil {
		return renderError(cmd, a.stderr, issue.Op("start SSH server", fmt.Sprintf("%s:%d", flags.host, flags.port), err), verbose, config.ColorSchemeAuto)
	}

	info, err := srv.GetConnectionInfo("cli")
	if err != nil {
		_ = srv.Stop()
		return err
	}

	fmt.Fprintf(a.stdout, "%s Listening on %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(fmt.Sprintf("%s:%d", info.Host, info.Port)))
	fmt.Fprintf(a.stdout, "  user:  %s\n", info.User)
	fmt.Fprintf(a.stdout, "  token: %s %s\n", info.Token, SubtitleStyle.Render("(expires "+info.ExpireAt.Format(time.Kitchen)+")"))
	fmt.Fprintf(a.stdout, "  try:   FAB_SSH_PASSWORD=%s fab -H %s@%s:%d -- uptime\n", info.Token, info.User, info.Host, info.Port)

	done := make(chan error, 1)
	go func() { done <- srv.Wait() }()

	select {
	case <-ctx.Done():
		fmt.Fprintln(a.stderr, SubtitleStyle.Render("shutting down"))
	case err := <-done:
		if err != nil {
			_ = srv.Stop()
			return err
		}
	}
	return srv.Stop()
}
