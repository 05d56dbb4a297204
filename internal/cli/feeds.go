package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/bryan-buckman/rinton/internal/opml"
	"github.com/spf13/cobra"
)

func newFeedsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Manage RSS sources",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:     "ls",
			Aliases: []string{"list"},
			Short:   "List RSS sources",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := e.app()
				if err != nil {
					return err
				}
				defer func() {
					_ = app.Close()
				}()
				links, err := app.Feeds.Links(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(links) == 0 {
					fmt.Fprintln(out, gray("No RSS sources."))
					return nil
				}
				fmt.Fprintln(out, cyan("RSS sources:"))
				for _, l := range links {
					fmt.Fprintf(out, "  %s\n", l.URL)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <url>",
			Short: "Add an RSS source",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := e.app()
				if err != nil {
					return err
				}
				defer func() {
					_ = app.Close()
				}()
				added, err := app.Feeds.AddLink(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if added {
					fmt.Fprintf(cmd.OutOrStdout(), "%s added %s\n", green("✓"), args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s is already registered\n", yellow("•"), args[0])
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <url>",
			Short: "Remove an RSS source",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := e.app()
				if err != nil {
					return err
				}
				defer func() {
					_ = app.Close()
				}()
				if err := app.Feeds.RemoveLink(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s removed %s\n", green("✓"), args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "import <file.opml>",
			Short: "Add every feed of an OPML file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()

				app, err := e.app()
				if err != nil {
					return err
				}
				defer func() {
					_ = app.Close()
				}()
				res, err := opml.Import(cmd.Context(), app.Feeds, f)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s imported %d, already present %d\n", green("✓"), res.Added, res.Skipped)
				for _, u := range res.Invalid {
					fmt.Fprintf(out, "%s skipped invalid %s\n", yellow("•"), u)
				}
				if n := len(res.Rejected); n > 0 {
					fmt.Fprintf(out, "%s rejected %d, source limit %d reached\n", yellow("•"), n, app.Feeds.MaxLinks())
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "export [file.opml]",
			Short: "Write the RSS sources as OPML to a file or stdout",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := e.app()
				if err != nil {
					return err
				}
				defer func() {
					_ = app.Close()
				}()
				links, err := app.Feeds.Links(cmd.Context())
				if err != nil {
					return err
				}
				entries := make([]opml.FeedEntry, 0, len(links))
				for _, l := range links {
					entries = append(entries, opml.FeedEntry{URL: l.URL})
				}
				data, err := opml.Export("Rinton Feeds", entries, time.Now())
				if err != nil {
					return err
				}
				if len(args) == 0 {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				return os.WriteFile(args[0], data, 0o644)
			},
		},
	)
	return cmd
}
