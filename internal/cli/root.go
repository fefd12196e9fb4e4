// Package cli implements roomctl, the operator CLI for the coordinator.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sgerhart/roomlink/internal/client"
	"github.com/sgerhart/roomlink/internal/model"
)

const defaultCoordinatorURL = "http://localhost:42069"

// Execute runs the root command
func Execute() error {
	return newRootCmd().Execute()
}

type options struct {
	coordinator string
	channel     string
	asJSON      bool
}

func (o *options) client() *client.Client {
	return client.New(o.coordinator)
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	coordinator := os.Getenv("ROOMCTL_COORDINATOR_URL")
	if coordinator == "" {
		coordinator = defaultCoordinatorURL
	}

	rootCmd := &cobra.Command{
		Use:           "roomctl",
		Short:         "Inspect rooms and dispatch commands through the coordinator",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.coordinator, "coordinator", coordinator, "coordinator base URL")
	rootCmd.PersistentFlags().StringVar(&opts.channel, "channel", "", "chat channel to report results to")
	rootCmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print raw JSON")

	rootCmd.AddCommand(
		newRoomsCmd(opts),
		newOpenCmd(opts),
		newCreateCmd(opts),
		newSelectCmd(opts),
		newRemoveCmd(opts),
	)

	return rootCmd
}

func newRoomsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List registered rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rooms, err := opts.client().Rooms(cmd.Context())
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), rooms)
			}

			ids := make([]string, 0, len(rooms.Rooms))
			for id := range rooms.Rooms {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tADDRESS")
			for _, id := range ids {
				room := rooms.Rooms[id]
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", id, room.Name, room.Address)
			}
			_, _ = fmt.Fprintf(tw, "rooms: %d\n", rooms.Total)
			return tw.Flush()
		},
	}
}

func newOpenCmd(opts *options) *cobra.Command {
	var room string

	cmd := &cobra.Command{
		Use:   "open <url>",
		Short: "Open a link in a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, opts, model.VerbOpen, args[0], room)
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "dispatch directly to this room instead of proposing targets")
	return cmd
}

func newCreateCmd(opts *options) *cobra.Command {
	var room string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a meeting in a room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommand(cmd, opts, model.VerbCreate, "", room)
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "dispatch directly to this room instead of proposing targets")
	return cmd
}

func runCommand(cmd *cobra.Command, opts *options, verb model.Verb, payload, room string) error {
	c := opts.client()

	if room != "" {
		outcome, err := c.Dispatch(cmd.Context(), verb, payload, opts.channel, room)
		if err != nil {
			return err
		}
		return writeOutcome(cmd.OutOrStdout(), outcome, opts.asJSON)
	}

	proposal, err := c.Propose(cmd.Context(), verb, payload, opts.channel)
	if err != nil {
		return err
	}
	if opts.asJSON {
		return writeJSON(cmd.OutOrStdout(), proposal)
	}

	out := cmd.OutOrStdout()
	if proposal.Warning != "" {
		_, _ = fmt.Fprintf(out, "warning: %s\n", proposal.Warning)
	}
	_, _ = fmt.Fprintf(out, "correlation: %s\n", proposal.Correlation)
	for _, target := range proposal.Targets {
		_, _ = fmt.Fprintf(out, "  %s\t%s\n", target.Token, target.Label)
	}
	_, _ = fmt.Fprintf(out, "resolve with: roomctl select %s <token>\n", proposal.Correlation)
	return nil
}

func newSelectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "select <correlation> <token>",
		Short: "Resolve a pending proposal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := opts.client().Select(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return writeOutcome(cmd.OutOrStdout(), outcome, opts.asJSON)
		},
	}
}

func newRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a room from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func writeOutcome(w io.Writer, outcome model.Outcome, asJSON bool) error {
	if asJSON {
		return writeJSON(w, outcome)
	}
	where := "local"
	if outcome.Remote {
		where = "remote"
	}
	_, err := fmt.Fprintf(w, "%s %s on %s (%s)\n", outcome.Status, outcome.Verb, outcome.Target, where)
	if err == nil && outcome.Message != "" {
		_, err = fmt.Fprintln(w, outcome.Message)
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
