// Command rustconn-vaultctl is the operator CLI of spec §6a: a narrow,
// scriptable front end onto the C1 credential-resolution core, built with
// cobra the way the teacher's tool/tctl and tool/tsh are. It never prints a
// plaintext secret.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gravitational/rustconn/lib/config"
	"github.com/gravitational/rustconn/lib/pipeline/vars"
	"github.com/gravitational/rustconn/lib/store"
	"github.com/gravitational/rustconn/lib/vault"
	"github.com/gravitational/rustconn/lib/vault/cache"
	"github.com/gravitational/rustconn/lib/vault/libsecret"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "rustconn-vaultctl",
		Short: "Inspect and operate the RustConn credential resolution core",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to rustconn settings YAML")

	root.AddCommand(newProbeCmd(&configPath))
	root.AddCommand(newFlushCmd(&configPath))
	root.AddCommand(newRenameCmd(&configPath))
	root.AddCommand(newResolveCmd(&configPath))
	return root
}

func buildResolver(configPath string) (*vault.Resolver, *store.Manager, *config.Settings, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	st, err := store.Load(cfg.StorePath)
	if err != nil {
		return nil, nil, nil, err
	}
	registry := vault.NewRegistry()
	backend, err := libsecret.New("rustconn")
	if err != nil {
		return nil, nil, nil, err
	}
	registry.Register(vault.KindLibSecret, backend)

	c := cache.New(cfg.CacheTTL, cfg.CacheCapacity, nil)
	resolver := vault.NewResolver(registry, c, vault.Kind(cfg.PreferredBackend), st)
	return resolver, st, cfg, nil
}

func newProbeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report availability of every registered credential backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, _, _, err := buildResolver(*configPath)
			if err != nil {
				return err
			}
			for _, a := range resolver.Registry.ProbeAll(cmd.Context()) {
				fmt.Printf("%-12s available=%v\n", a.Kind, a.Available)
			}
			return nil
		},
	}
}

func newFlushCmd(configPath *string) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Invalidate the credential cache for one key, or the whole cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, _, _, err := buildResolver(*configPath)
			if err != nil {
				return err
			}
			if key == "" {
				resolver.InvalidateAll()
				fmt.Println("cache flushed")
				return nil
			}
			resolver.Invalidate(key)
			fmt.Printf("invalidated %q\n", key)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "display key to invalidate; omit to flush everything")
	return cmd
}

func newRenameCmd(configPath *string) *cobra.Command {
	var oldKey, newKey string
	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Drive the retrieve/store/delete rename propagation for a backend key",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, _, _, err := buildResolver(*configPath)
			if err != nil {
				return err
			}
			if err := resolver.Rename(cmd.Context(), oldKey, newKey); err != nil {
				return err
			}
			fmt.Printf("renamed %q -> %q\n", oldKey, newKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&oldKey, "old-key", "", "current backend key")
	cmd.Flags().StringVar(&newKey, "new-key", "", "new backend key")
	cmd.MarkFlagRequired("old-key")
	cmd.MarkFlagRequired("new-key")
	return cmd
}

func newResolveCmd(configPath *string) *cobra.Command {
	var connectionID string
	var promptOnMiss bool
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve credentials for a connection and print only whether it succeeded",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, st, _, err := buildResolver(*configPath)
			if err != nil {
				return err
			}
			snap := st.Snapshot()

			var found bool
			for _, c := range snap.Connections {
				if c.ID != connectionID {
					continue
				}
				found = true
				scope := &vars.Scope{Local: c.LocalVars, Global: snap.Variables, MaxDepth: vars.DefaultMaxDepth}
				res, err := resolver.Resolve(context.Background(), c, snap.Groups, scope)
				if err != nil {
					return err
				}
				if !res.NeedsPrompt {
					fmt.Printf("result: ok username=%q\n", res.Credentials.Username)
					break
				}
				if !promptOnMiss {
					fmt.Println("result: needs_prompt")
					break
				}
				// Complete the prompt without the password ever touching
				// argv or a config file: read it interactively from stdin
				// with echo disabled, the same way the teacher's tsh reads
				// its own login passwords.
				fmt.Fprintf(cmd.OutOrStdout(), "password for %s: ", connectionID)
				raw, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("reading password: %w", err)
				}
				creds, err := resolver.CompletePrompt(cmd.Context(), c, res.Credentials.Username, res.Credentials.Domain, string(raw), true)
				if err != nil {
					return err
				}
				fmt.Printf("result: ok username=%q\n", creds.Username)
				break
			}
			if !found {
				return fmt.Errorf("no connection with id %q", connectionID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&connectionID, "connection-id", "", "connection ID to resolve")
	cmd.Flags().BoolVar(&promptOnMiss, "prompt-password", false, "read a password from stdin (no echo) and store it when resolution needs a prompt")
	cmd.MarkFlagRequired("connection-id")
	return cmd
}
