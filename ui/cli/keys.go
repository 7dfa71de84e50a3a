// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/flavienbert/digitalocean/internal/api"
	"github.com/flavienbert/digitalocean/internal/logging"
	"github.com/flavienbert/digitalocean/internal/model"
	"github.com/flavienbert/digitalocean/internal/sshkey"
	"github.com/flavienbert/digitalocean/internal/waiter"
)

// isFingerprint reports whether ref names a key by fingerprint rather than
// by id. Provider ids are numeric, fingerprints are colon-separated hex.
func isFingerprint(ref string) bool {
	return strings.Contains(ref, ":")
}

// readPublicKey returns arg, or the content of the file it names when it
// starts with '@'.
func readPublicKey(arg string) (string, error) {
	if !strings.HasPrefix(arg, "@") {
		return strings.TrimSpace(arg), nil
	}
	data, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
	if err != nil {
		return "", fmt.Errorf("read public key: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func newKeyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the SSH keys of the account",
	}
	cmd.AddCommand(
		newKeyListCmd(a),
		newKeyGetCmd(a),
		newKeyCreateCmd(a),
		newKeyRenameCmd(a),
		newKeyDeleteCmd(a),
		newKeyWaitCmd(a),
	)
	return cmd
}

func newKeyListCmd(a *app) *cobra.Command {
	var output, prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List SSH keys",
		Long:  `List the SSH keys of the account as the provider currently lists them.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			keys, err := c.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}
			if prefix != "" {
				keys = model.WithNamePrefix(keys, prefix)
			}
			return writeKeys(cmd.OutOrStdout(), output, keys)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	cmd.Flags().StringVar(&prefix, "prefix", "", "only list keys whose name starts with this prefix")
	return cmd
}

func newKeyGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id|fingerprint>",
		Short: "Show a single SSH key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			k, err := c.Get(cmd.Context(), model.KeyID(args[0]))
			if err != nil {
				return fmt.Errorf("failed to get key %s: %w", args[0], err)
			}
			writeKey(cmd.OutOrStdout(), k)
			return nil
		},
	}
}

func newKeyCreateCmd(a *app) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "create <name> <public-key|@file>",
		Short: "Register a public key",
		Long: `Register a public key under name. The key is given inline or, prefixed
with '@', as the path of a file holding it (e.g. @~/.ssh/id_ed25519.pub).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			publicKey, err := readPublicKey(args[1])
			if err != nil {
				return err
			}
			if _, err := sshkey.Validate(publicKey); err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}

			k, err := c.Create(cmd.Context(), args[0], publicKey)
			if err != nil {
				return fmt.Errorf("failed to create key: %w", err)
			}
			logging.Infof("created key %s", k)
			if wait {
				if err := a.awaitKey(cmd.Context(), c, waiter.Present(k)); err != nil {
					return err
				}
			}
			writeKey(cmd.OutOrStdout(), k)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the key shows up in the listing")
	return cmd
}

func newKeyRenameCmd(a *app) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "rename <id|fingerprint> <new-name>",
		Short: "Rename an SSH key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}

			ref, newName := args[0], args[1]
			var k model.Key
			if isFingerprint(ref) {
				k, err = c.RenameByFingerprint(cmd.Context(), ref, newName)
			} else {
				k, err = c.RenameByID(cmd.Context(), model.KeyID(ref), newName)
			}
			if err != nil {
				return fmt.Errorf("failed to rename key %s: %w", ref, err)
			}
			logging.Infof("renamed key %s", k)
			if wait {
				if err := a.awaitKey(cmd.Context(), c, waiter.RenameVisible(k)); err != nil {
					return err
				}
			}
			writeKey(cmd.OutOrStdout(), k)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the listing shows the new name only")
	return cmd
}

func newKeyDeleteCmd(a *app) *cobra.Command {
	var wait, ignoreMissing bool
	cmd := &cobra.Command{
		Use:   "delete <id|fingerprint>",
		Short: "Delete an SSH key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}

			ref := args[0]
			if isFingerprint(ref) {
				err = c.DeleteByFingerprint(cmd.Context(), ref)
			} else {
				err = c.DeleteByID(cmd.Context(), model.KeyID(ref))
			}
			if errors.Is(err, api.ErrNotFound) && ignoreMissing {
				fmt.Fprintf(cmd.OutOrStdout(), "Key %s does not exist.\n", ref)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to delete key %s: %w", ref, err)
			}
			if wait {
				if err := a.awaitKey(cmd.Context(), c, absentPredicate(ref)); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key %s deleted.\n", ref)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the key is gone from the listing")
	cmd.Flags().BoolVar(&ignoreMissing, "ignore-missing", false, "do not fail when the key does not exist")
	return cmd
}

func newKeyWaitCmd(a *app) *cobra.Command {
	var present, absent bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "wait (--present|--absent) <id|fingerprint>",
		Short: "Wait until a key is listed or gone",
		Long: `Poll the key listing at the configured interval until the key is listed
(--present) or no longer listed (--absent), or until the timeout expires.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if present == absent {
				return errors.New("exactly one of --present or --absent is required")
			}
			c, err := a.client()
			if err != nil {
				return err
			}

			ref := args[0]
			pred := absentPredicate(ref)
			if present {
				pred = waiter.Not(pred)
			}
			if timeout <= 0 {
				timeout = a.scenarioTimeout()
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			res, err := a.waiter(c).Until(ctx, pred)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Converged after %d listing(s) in %s.\n", res.Attempts, res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&present, "present", false, "wait until the key is listed")
	cmd.Flags().BoolVar(&absent, "absent", false, "wait until the key is no longer listed")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (default scenario.timeout)")
	return cmd
}

// absentPredicate holds once no listed key matches ref.
func absentPredicate(ref string) waiter.Predicate {
	if isFingerprint(ref) {
		return waiter.Not(waiter.FingerprintListed(ref))
	}
	return waiter.Absent(model.KeyID(ref))
}

// awaitKey waits for pred under the configured scenario timeout.
func (a *app) awaitKey(ctx context.Context, c api.Client, pred waiter.Predicate) error {
	ctx, cancel := context.WithTimeout(ctx, a.scenarioTimeout())
	defer cancel()
	res, err := a.waiter(c).Until(ctx, pred)
	if err != nil {
		return err
	}
	logging.Debugf("listing converged after %d attempt(s)", res.Attempts)
	return nil
}
