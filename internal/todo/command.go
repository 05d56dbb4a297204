package todo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bryan-buckman/rinton/internal/model"
)

// Command operations accepted by Run.
const (
	OpAdd    = "add"
	OpRemove = "rm"
	OpList   = "ls"
	OpEdit   = "edit"
)

// Run executes one todo command and returns the text shown to the user.
// Failures are reported in the text; nothing here is fatal.
func (m *Manager) Run(ctx context.Context, op, id, message string) string {
	switch op {
	case OpAdd:
		e, err := m.Add(ctx, message)
		if err != nil {
			return failure("add", err)
		}
		return fmt.Sprintf("Added %d: %s", e.ID, e.Message)
	case OpRemove:
		e, err := m.Remove(ctx, message, id)
		if err != nil {
			return failure("remove", err)
		}
		return fmt.Sprintf("Removed %d: %s", e.ID, e.Message)
	case OpList:
		entries, err := m.List(ctx)
		if err != nil {
			return failure("list", err)
		}
		return FormatList(entries)
	case OpEdit:
		e, err := m.Edit(ctx, id, message)
		if err != nil {
			return failure("edit", err)
		}
		return fmt.Sprintf("Edited %d: %s", e.ID, e.Message)
	default:
		return fmt.Sprintf("Unknown operation %q (use add, rm, ls or edit)", op)
	}
}

// FormatList renders entries one per line, or a notice when empty.
func FormatList(entries []Entry) string {
	if len(entries) == 0 {
		return "The todo list is empty."
	}
	var b strings.Builder
	b.WriteString("Todo list:")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n- %d %s", e.ID, e.Message)
	}
	return b.String()
}

func failure(action string, err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "No matching todo was found."
	case errors.Is(err, model.ErrInvalidInput):
		return "A todo message is required."
	case errors.Is(err, model.ErrStoreUnavailable):
		slog.Error("Todo store unavailable", "action", action, "error", err)
		return "The todo store could not be read."
	default:
		slog.Error("Todo command failed", "action", action, "error", err)
		return fmt.Sprintf("Failed to %s the todo.", action)
	}
}
