package views

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/store"
)

func loadedWorksheet(t *testing.T, fs *fakeStore) *Worksheet {
	t.Helper()
	fs.records = []models.WorkRecord{
		{ID: "w1", Email: "ann@x.io", Task: models.TaskSales, Hours: 2, Date: "2024-03-01"},
	}
	w := NewWorksheet(fs)
	require.NoError(t, w.Load(context.Background(), "ann@x.io"))
	fs.calls = nil
	return w
}

func TestWorksheet_RejectsInvalidBeforeRequest(t *testing.T) {
	fs := newFakeStore()
	w := loadedWorksheet(t, fs)
	ctx := context.Background()

	for _, hours := range []models.Amount{0, -3} {
		_, err := w.Add(ctx, models.TaskSales, hours, "2024-03-02")
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	_, err := w.Add(ctx, "Cooking", 1, "2024-03-02")
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad := models.Amount(0)
	_, err = w.Edit(ctx, "w1", WorkPatch{Hours: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, fs.calls)
	assert.Len(t, w.Records(), 1)
}

func TestWorksheet_Lifecycle(t *testing.T) {
	fs := newFakeStore()
	w := loadedWorksheet(t, fs)
	ctx := context.Background()

	rec, err := w.Add(ctx, models.TaskResearch, 3, "2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, "w-new", rec.ID)
	assert.Equal(t, "ann@x.io", rec.Email)

	recs := w.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "w-new", recs[0].ID, "new records are prepended")

	hours := models.Amount(5)
	edited, err := w.Edit(ctx, "w-new", WorkPatch{Hours: &hours})
	require.NoError(t, err)
	assert.Equal(t, models.TaskResearch, edited.Task)
	assert.Equal(t, hours, w.Records()[0].Hours)

	require.NoError(t, w.Delete(ctx, "w-new"))
	require.Len(t, w.Records(), 1)
	assert.Equal(t, "w1", w.Records()[0].ID)

	assert.Equal(t, []string{"CreateWorkRecord", "UpdateWorkRecord w-new", "DeleteWorkRecord w-new"}, fs.calls)
}

func TestWorksheet_RollbackOnFailure(t *testing.T) {
	fs := newFakeStore()
	w := loadedWorksheet(t, fs)
	ctx := context.Background()
	fs.fail = true

	_, err := w.Add(ctx, models.TaskSales, 1, "2024-03-02")
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "add work record", ce.Op)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Len(t, w.Records(), 1)

	task := models.TaskContent
	_, err = w.Edit(ctx, "w1", WorkPatch{Task: &task})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, models.TaskSales, w.Records()[0].Task)

	err = w.Delete(ctx, "w1")
	assert.ErrorIs(t, err, errStoreDown)
	assert.Len(t, w.Records(), 1)
}

func TestWorksheet_NotApplied(t *testing.T) {
	fs := newFakeStore()
	w := loadedWorksheet(t, fs)
	fs.modified = 0

	assert.ErrorIs(t, w.Delete(context.Background(), "w1"), ErrNotApplied)
	assert.Len(t, w.Records(), 1)

	assert.ErrorIs(t, w.Delete(context.Background(), "nope"), ErrUnknownRecord)
}

func TestWorksheet_LoadError(t *testing.T) {
	fs := newFakeStore()
	fs.fail = true
	err := NewWorksheet(fs).Load(context.Background(), "ann@x.io")
	assert.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}
