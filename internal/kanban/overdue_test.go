package kanban

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanlito/internal/core"
)

func TestMigrateOverdue(t *testing.T) {
	now := time.Date(2025, time.March, 10, 15, 30, 0, 0, time.UTC)
	list := []core.Transaction{
		expense("yesterday", "Água", 100, core.Pending, day(2025, time.March, 9), 0),
		expense("midnight", "Luz", 100, core.Pending, day(2025, time.March, 10), 1),
		expense("paid", "Gás", 100, core.Paid, day(2025, time.March, 1), 2),
		expense("overdue", "Internet", 100, core.Overdue, day(2025, time.February, 1), 3),
		expense("tomorrow", "Aluguel", 100, core.Pending, day(2025, time.March, 11), 4),
		income("salary", "Salário", 100, day(2025, time.March, 1), 5),
	}
	list[5].Status = core.Pending

	got, changed := MigrateOverdue(list, now)

	assert.Equal(t, []string{"yesterday", "salary"}, changed)
	want := map[string]core.Status{
		"yesterday": core.Overdue,
		"midnight":  core.Pending,
		"paid":      core.Paid,
		"overdue":   core.Overdue,
		"tomorrow":  core.Pending,
		"salary":    core.Overdue,
	}
	for _, tx := range got {
		assert.Equal(t, want[tx.ID], tx.Status, tx.ID)
	}
	assert.Equal(t, core.Pending, list[0].Status, "input must not be modified")

	again, changedAgain := MigrateOverdue(got, now)
	assert.Empty(t, changedAgain)
	assert.Equal(t, got, again)
}

func TestBoardMigrateOverdueIsIdempotent(t *testing.T) {
	now := day(2025, time.March, 10)
	svc := newRecordingService(
		expense("a", "Água", 100, core.Pending, day(2025, time.March, 1), 0),
		expense("b", "Luz", 100, core.Pending, day(2025, time.March, 2), 1),
		expense("c", "Gás", 100, core.Pending, day(2025, time.March, 20), 2),
	)
	opts := DefaultOptions()
	opts.Clock = fixedClock(now)
	b := NewBoard(svc, opts)

	_, err := b.Load(context.Background(), 2025, testToken)
	require.NoError(t, err)
	updates := svc.Calls("update")
	assert.ElementsMatch(t, []call{{Op: "update", ID: "a"}, {Op: "update", ID: "b"}}, updates)

	n, err := b.MigrateOverdue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, svc.Calls("update"), 2, "no duplicate persistence calls")

	for _, tx := range svc.Stored(t, 2025) {
		if tx.ID == "c" {
			assert.Equal(t, core.Pending, tx.Status)
			continue
		}
		assert.Equal(t, core.Overdue, tx.Status)
	}
}

func TestMigrateOverdueFailureIsLoggedOnly(t *testing.T) {
	now := day(2025, time.March, 10)
	svc := newRecordingService(
		expense("a", "Água", 100, core.Pending, day(2025, time.March, 1), 0),
	)
	svc.failOps["update"] = errBackend
	opts := DefaultOptions()
	opts.Clock = fixedClock(now)
	b := NewBoard(svc, opts)

	list, err := b.Load(context.Background(), 2025, testToken)

	require.NoError(t, err)
	assert.Equal(t, core.Overdue, list[0].Status, "memory keeps the migrated status")
	assert.Equal(t, core.Pending, svc.Stored(t, 2025)[0].Status)
}

func TestMigrateOverdueAfterDayRollover(t *testing.T) {
	now := day(2025, time.March, 10)
	svc := newRecordingService(
		expense("a", "Água", 100, core.Pending, day(2025, time.March, 10), 0),
	)
	opts := DefaultOptions()
	opts.Clock = func() time.Time { return now }
	b := NewBoard(svc, opts)
	_, err := b.Load(context.Background(), 2025, testToken)
	require.NoError(t, err)

	now = now.AddDate(0, 0, 1)
	n, err := b.MigrateOverdue(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, _ := b.Get("a")
	assert.Equal(t, core.Overdue, got.Status)
}
