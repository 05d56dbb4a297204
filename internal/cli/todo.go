package cli

import (
	"fmt"
	"strings"

	"github.com/bryan-buckman/rinton/internal/todo"
	"github.com/spf13/cobra"
)

func newTodoCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Manage the todo list",
	}

	// run opens the backend, executes one todo command and prints the reply.
	run := func(cmd *cobra.Command, op, id, message string) error {
		app, err := e.app()
		if err != nil {
			return err
		}
		defer func() {
			_ = app.Close()
		}()
		fmt.Fprintln(cmd.OutOrStdout(), app.Todos.Run(cmd.Context(), op, id, message))
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <message...>",
			Short: "Add a todo",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, todo.OpAdd, "", strings.Join(args, " "))
			},
		},
		&cobra.Command{
			Use:     "ls",
			Aliases: []string{"list"},
			Short:   "List todos, newest first",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, todo.OpList, "", "")
			},
		},
		&cobra.Command{
			Use:   "rm <id|message...>",
			Short: "Remove the todo matching an id or message",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, todo.OpRemove, "", strings.Join(args, " "))
			},
		},
		&cobra.Command{
			Use:   "edit <id|message> <new message...>",
			Short: "Replace a todo's message, keeping its id",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, todo.OpEdit, args[0], strings.Join(args[1:], " "))
			},
		},
	)
	return cmd
}
