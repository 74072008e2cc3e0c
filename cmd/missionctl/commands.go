package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/localstore"
	"github.com/pkordes/missionmap/internal/remote"
)

var errNoRemote = errors.New("no remote backend configured (REMOTE_BACKEND=none)")

// opener provides the stores a command works on. Commands open them lazily so
// that purely local commands never touch the network.
type opener interface {
	OpenLocal(ctx context.Context) (localstore.Store, error)
	OpenRemote(ctx context.Context, local localstore.Store) (remote.Store, func() error, error)
}

// cli carries the state shared by all subcommands of one invocation.
type cli struct {
	open  opener
	local localstore.Store
}

func newRootCmd(o opener) *cobra.Command {
	c := &cli{open: o}

	root := &cobra.Command{
		Use:   "missionctl",
		Short: "Inspect and repair a missionmap install",
		Long: `missionctl works on the local store of a missionmap install and on the
remote slot it mirrors to. It reads the same environment as the API server
(LOCAL_DB_PATH, REMOTE_BACKEND, ...), including .env.local.

Examples:
  missionctl identity show
  missionctl identity link AM-3F9C01B2
  missionctl credential set -          # read the secret from stdin
  missionctl push
  missionctl export > backup.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			local, err := c.open.OpenLocal(cmd.Context())
			if err != nil {
				return fmt.Errorf("open local store: %w", err)
			}
			c.local = local
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.local == nil {
				return nil
			}
			return c.local.Close()
		},
	}

	identity := &cobra.Command{
		Use:   "identity",
		Short: "Show or change the sync identity",
	}
	identity.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print this install's sync identity",
			Args:  cobra.NoArgs,
			RunE:  c.identityShow,
		},
		&cobra.Command{
			Use:   "link <sync-id>",
			Short: "Pair with another device's sync identity",
			Long: `Pair this install with the identity shown on another device.
When the remote slot holds a document it replaces the local snapshot; when
the slot is empty the local snapshot is pushed there.`,
			Args: cobra.ExactArgs(1),
			RunE: c.identityLink,
		},
	)

	credential := &cobra.Command{
		Use:   "credential",
		Short: "Manage the stored remote credential",
	}
	credential.AddCommand(&cobra.Command{
		Use:   "set <value|->",
		Short: "Store the remote credential on this device",
		Long:  `Store the secret used by the remote backend. Pass "-" to read it from stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE:  c.credentialSet,
	})

	root.AddCommand(
		identity,
		credential,
		&cobra.Command{
			Use:   "push",
			Short: "Upload the local snapshot to the remote slot",
			Args:  cobra.NoArgs,
			RunE:  c.push,
		},
		&cobra.Command{
			Use:   "pull",
			Short: "Replace the local snapshot with the remote slot",
			Args:  cobra.NoArgs,
			RunE:  c.pull,
		},
		newExportCmd(c),
	)
	return root
}

func (c *cli) identityShow(cmd *cobra.Command, _ []string) error {
	id, err := c.syncID(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

// identityLink records the new identity only once its slot has been read or
// seeded, so a failed fetch leaves the install on its current identity.
func (c *cli) identityLink(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := domain.NormalizeSyncID(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	store, closeRemote, err := c.open.OpenRemote(ctx, c.local)
	if errors.Is(err, errNoRemote) {
		if err := c.saveSyncID(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "linked to %s\n", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open remote: %w", err)
	}
	defer closeRemote()

	env, err := store.Fetch(ctx, id)
	switch {
	case err == nil:
		if err := c.local.SaveSnapshot(ctx, env); err != nil {
			return fmt.Errorf("save pulled document: %w", err)
		}
		if err := c.saveSyncID(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "linked to %s\n", id)
		fmt.Fprintf(out, "pulled revision %d from the remote slot\n", env.Stamp.Revision)
		return nil
	case errors.Is(err, domain.ErrNotFound):
		env, ok := c.local.LoadSnapshot(ctx)
		if ok {
			if err := store.Upsert(ctx, id, env); err != nil {
				return fmt.Errorf("seed remote slot: %w", err)
			}
		}
		if err := c.saveSyncID(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "linked to %s\n", id)
		if !ok {
			fmt.Fprintln(out, "remote slot is empty and there is no local document to seed it")
			return nil
		}
		fmt.Fprintf(out, "remote slot was empty; pushed revision %d\n", env.Stamp.Revision)
		return nil
	default:
		return fmt.Errorf("fetch remote slot: %w", err)
	}
}

func (c *cli) saveSyncID(ctx context.Context, id string) error {
	if err := c.local.Set(ctx, localstore.KeySyncID, id); err != nil {
		return fmt.Errorf("save sync identity: %w", err)
	}
	return nil
}

func (c *cli) credentialSet(cmd *cobra.Command, args []string) error {
	value := args[0]
	if value == "-" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read credential: %w", err)
		}
		value = line
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("credential must not be empty")
	}
	if err := c.local.Set(cmd.Context(), localstore.KeyCredential, value); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "credential stored")
	return nil
}

// push uploads the local snapshot as a new revision stamped above both the
// local and the remote one, so running dashboards apply it.
func (c *cli) push(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	id, err := c.syncID(ctx)
	if err != nil {
		return err
	}
	env, ok := c.local.LoadSnapshot(ctx)
	if !ok {
		return errors.New("no local document to push")
	}
	store, closeRemote, err := c.open.OpenRemote(ctx, c.local)
	if err != nil {
		return err
	}
	defer closeRemote()

	base := env.Stamp
	current, err := store.Fetch(ctx, id)
	switch {
	case err == nil:
		if base.Less(current.Stamp) {
			base = current.Stamp
		}
	case errors.Is(err, domain.ErrNotFound):
	default:
		return fmt.Errorf("push: %w", err)
	}
	env.Stamp = base.Next(c.writer(ctx))
	env.UpdatedAt = time.Now().UTC()

	if err := store.Upsert(ctx, id, env); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if err := c.local.SaveSnapshot(ctx, env); err != nil {
		return fmt.Errorf("save pushed revision: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pushed revision %d to %s\n", env.Stamp.Revision, id)
	return nil
}

// writer is the stamp writer for revisions made by the CLI: this install's
// device id when the server has created one.
func (c *cli) writer(ctx context.Context) string {
	if id, err := c.local.Get(ctx, localstore.KeyDeviceID); err == nil && id != "" {
		return id
	}
	return "missionctl"
}

func (c *cli) pull(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	id, err := c.syncID(ctx)
	if err != nil {
		return err
	}
	store, closeRemote, err := c.open.OpenRemote(ctx, c.local)
	if err != nil {
		return err
	}
	defer closeRemote()

	env, err := store.Fetch(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("remote slot %s is empty", id)
	}
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	if err := c.local.SaveSnapshot(ctx, env); err != nil {
		return fmt.Errorf("save pulled document: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pulled revision %d from %s\n", env.Stamp.Revision, id)
	return nil
}

func newExportCmd(c *cli) *cobra.Command {
	var envelope bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the local document as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, ok := c.local.LoadSnapshot(cmd.Context())
			if !ok {
				env = domain.Envelope{Document: domain.Empty()}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if envelope {
				return enc.Encode(env)
			}
			return enc.Encode(env.Document)
		},
	}
	cmd.Flags().BoolVar(&envelope, "envelope", false, "include the revision stamp")
	return cmd
}

func (c *cli) syncID(ctx context.Context) (string, error) {
	id, err := c.local.Get(ctx, localstore.KeySyncID)
	if err != nil {
		return "", fmt.Errorf("read sync identity: %w", err)
	}
	if id == "" {
		return "", errors.New("no sync identity yet; start the server once or run `missionctl identity link`")
	}
	return id, nil
}
