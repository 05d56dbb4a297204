package cli

import (
	"fmt"

	"github.com/bryan-buckman/rinton/internal/model"
	"github.com/spf13/cobra"
)

func newPollCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "poll [feed]",
		Short: "Run one poll cycle for a feed, or for every feed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := e.app()
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			schedules, err := app.Schedules(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ran, failed := 0, 0
			for _, s := range schedules {
				p := s.Pipeline
				if len(args) == 1 && p.Name() != args[0] {
					continue
				}
				ran++
				res, err := p.RunCycle(ctx)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s %s: %v\n", red("✗"), p.Name(), err)
					continue
				}
				fmt.Fprintf(out, "%s %s: fetched %d, delivered %d, failed %d, watermark %s %s\n",
					green("✓"), res.Feed, res.Fetched, res.Delivered, res.Failed,
					res.Watermark.Format(model.WatermarkLayout), gray("("+res.ID+")"))
			}

			if ran == 0 {
				if len(args) == 1 {
					return fmt.Errorf("%w: feed %s", model.ErrNotFound, args[0])
				}
				fmt.Fprintln(out, yellow("No feeds configured."))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d cycles failed", failed, ran)
			}
			return nil
		},
	}
}
