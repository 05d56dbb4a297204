package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <prompt...>",
		Short: "Ask the configured language model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.app()
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()
			responder, err := app.Responder()
			if err != nil {
				return err
			}
			if responder == nil {
				return errors.New("LLM_API_KEY is not set")
			}
			reply, err := responder.Reply(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}
