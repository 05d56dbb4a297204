package todo

import (
	"context"
	"testing"

	"github.com/bryan-buckman/rinton/internal/channel"
	"github.com/bryan-buckman/rinton/internal/model"
	"github.com/bryan-buckman/rinton/internal/recordstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*Manager, *channel.Memory) {
	t.Helper()
	mem := channel.NewMemory()
	return NewManager(recordstore.New(mem, "db")), mem
}

func TestAdd_IDsStrictlyIncreaseFromOne(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	prev := 0
	for i, msg := range []string{"one", "two", "three", "four"} {
		e, err := m.Add(ctx, msg)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, 1, e.ID)
		}
		assert.Greater(t, e.ID, prev)
		prev = e.ID
	}
}

func TestAdd_UsesMaxExistingID(t *testing.T) {
	m, mem := newManager(t)
	ctx := context.Background()
	_, err := mem.Send(ctx, "db", "todo 7 legacy")
	require.NoError(t, err)
	_, err = mem.Send(ctx, "db", "todo 3 older")
	require.NoError(t, err)
	_, err = mem.Send(ctx, "db", "todo notanumber junk")
	require.NoError(t, err)

	e, err := m.Add(ctx, "  spaced   out message ")
	require.NoError(t, err)
	assert.Equal(t, 8, e.ID)
	assert.Equal(t, "spaced out message", e.Message)
}

func TestAdd_EmptyMessage(t *testing.T) {
	m, mem := newManager(t)
	_, err := m.Add(context.Background(), "   ")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Empty(t, mem.Messages("db"))
}

func TestEdit_LeavesSingleRecord(t *testing.T) {
	m, mem := newManager(t)
	ctx := context.Background()
	_, err := m.Add(ctx, "first")
	require.NoError(t, err)
	_, err = m.Add(ctx, "second")
	require.NoError(t, err)

	e, err := m.Edit(ctx, "1", "first revised")
	require.NoError(t, err)
	assert.Equal(t, 1, e.ID)

	entries, err := m.List(ctx)
	require.NoError(t, err)
	count := 0
	for _, entry := range entries {
		if entry.ID == 1 {
			count++
			assert.Equal(t, "first revised", entry.Message)
		}
	}
	assert.Equal(t, 1, count)
	assert.Len(t, mem.Messages("db"), 2)
}

func TestEdit_MatchesByMessage(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	_, err := m.Add(ctx, "alpha")
	require.NoError(t, err)

	e, err := m.Edit(ctx, "99", "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, e.ID)
}

func TestEdit_NotFound(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	_, err := m.Add(ctx, "alpha")
	require.NoError(t, err)

	_, err = m.Edit(ctx, "5", "beta")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRemove(t *testing.T) {
	m, mem := newManager(t)
	ctx := context.Background()
	_, err := m.Add(ctx, "alpha")
	require.NoError(t, err)
	_, err = m.Add(ctx, "beta gamma")
	require.NoError(t, err)

	e, err := m.Remove(ctx, "beta gamma")
	require.NoError(t, err)
	assert.Equal(t, 2, e.ID)

	e, err = m.Remove(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", e.Message)
	assert.Empty(t, mem.Messages("db"))
}

func TestRemove_NotFoundLeavesStoreUnchanged(t *testing.T) {
	m, mem := newManager(t)
	ctx := context.Background()
	_, err := m.Add(ctx, "alpha")
	require.NoError(t, err)
	before := mem.Messages("db")

	_, err = m.Remove(ctx, "42")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = m.Remove(ctx, "nothing like this")
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.Equal(t, before, mem.Messages("db"))
}

func TestRemove_AmbiguousQueryPrefersNewest(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	// Entry 1's message reads like entry 2's id.
	_, err := m.Add(ctx, "2")
	require.NoError(t, err)
	_, err = m.Add(ctx, "other")
	require.NoError(t, err)

	e, err := m.Remove(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, 2, e.ID)
	assert.Equal(t, "other", e.Message)
}

func TestList_Empty(t *testing.T) {
	m, _ := newManager(t)
	entries, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, "The todo list is empty.", FormatList(entries))
}

func TestList_StoreUnavailable(t *testing.T) {
	m, mem := newManager(t)
	mem.FailList = true
	_, err := m.List(context.Background())
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestRun(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	assert.Equal(t, "The todo list is empty.", m.Run(ctx, OpList, "", ""))
	assert.Equal(t, "Added 1: water plants", m.Run(ctx, OpAdd, "", "water plants"))
	assert.Equal(t, "Added 2: pay rent", m.Run(ctx, OpAdd, "", "pay rent"))
	assert.Equal(t, "Todo list:\n- 2 pay rent\n- 1 water plants", m.Run(ctx, OpList, "", ""))
	assert.Equal(t, "Edited 2: pay rent today", m.Run(ctx, OpEdit, "2", "pay rent today"))
	assert.Equal(t, "Removed 1: water plants", m.Run(ctx, OpRemove, "1", ""))
	assert.Equal(t, "No matching todo was found.", m.Run(ctx, OpRemove, "9", ""))
	assert.Equal(t, "No matching todo was found.", m.Run(ctx, OpRemove, "9", "pay rent"))
	assert.Equal(t, "Removed 2: pay rent today", m.Run(ctx, OpRemove, "", "pay rent today"))
	assert.Equal(t, "A todo message is required.", m.Run(ctx, OpAdd, "", ""))
	assert.Contains(t, m.Run(ctx, "frobnicate", "", ""), "Unknown operation")
}

func TestRun_RemoveMatchesIDOrMessage(t *testing.T) {
	m, mem := newManager(t)
	ctx := context.Background()
	_, err := m.Add(ctx, "buy milk")
	require.NoError(t, err)
	_, err = m.Add(ctx, "call mom")
	require.NoError(t, err)

	// A mistyped message still removes the entry named by id.
	assert.Equal(t, "Removed 1: buy milk", m.Run(ctx, OpRemove, "1", "buy mlk"))
	// A wrong id still removes the entry named by message.
	assert.Equal(t, "Removed 2: call mom", m.Run(ctx, OpRemove, "7", "call mom"))
	assert.Empty(t, mem.Messages("db"))
}
