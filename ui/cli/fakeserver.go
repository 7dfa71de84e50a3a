// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flavienbert/digitalocean/internal/fakeapi"
	"github.com/flavienbert/digitalocean/internal/logging"
)

func newFakeServerCmd(a *app) *cobra.Command {
	var addr, token string
	var opts fakeapi.Options
	cmd := &cobra.Command{
		Use:   "fake-server",
		Short: "Serve an in-memory imitation of the SSH keys API",
		Long: `Serve an in-memory /v2/account/keys API whose listing lags behind writes,
for exercising the other commands without a real account. Point them at it
with --api-url http://<addr>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = a.cfg.API.Token
			}
			opts.Token = token

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Serving fake API on http://%s\n", ln.Addr())
			return serveFake(ctx, ln, fakeapi.New(opts))
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	f.StringVar(&token, "token", "", "only accept this bearer token (default api.token; empty accepts any)")
	f.DurationVar(&opts.Lag, "lag", 0, "minimum time before a write shows up in listings")
	f.IntVar(&opts.ListLag, "list-lag", 2, "number of listings that still miss a write")
	return cmd
}

// serveFake serves h on ln until ctx is done, then shuts down gracefully.
func serveFake(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Infof("shutting down fake API")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
