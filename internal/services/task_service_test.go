package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmhub/internal/models"
	"crmhub/internal/repositories/repotest"
)

func newTaskService(db *repotest.DB) *taskService {
	s := NewTaskService(db.Tasks()).(*taskService)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestTaskCreateDefaults(t *testing.T) {
	s := newTaskService(repotest.New())

	task, err := s.Create(context.Background(), TaskInput{Title: ptr("Call back"), DueDate: ptr("2024-05-20")}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, task.Status)
	assert.Equal(t, models.PriorityMedium, task.Priority)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, "2024-05-20", task.DueDate.Format("2006-01-02"))
	assert.Equal(t, "user-1", *task.CreatedBy)
}

func TestTaskValidation(t *testing.T) {
	s := newTaskService(repotest.New())
	ctx := context.Background()

	_, err := s.Create(ctx, TaskInput{}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.Create(ctx, TaskInput{Title: ptr("x"), Priority: ptr(models.TaskPriority("critical"))}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.Create(ctx, TaskInput{Title: ptr("x"), Status: ptr(models.TaskStatus("done"))}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTaskStatusMaintainsCompletedAt(t *testing.T) {
	s := newTaskService(repotest.New())
	ctx := context.Background()

	task, err := s.Create(ctx, TaskInput{Title: ptr("Send quote")}, "")
	require.NoError(t, err)

	done, err := s.UpdateStatus(ctx, task.ID, models.StatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, done.CompletedAt.Equal(fixedNow))

	// completing again keeps the first timestamp
	s.now = func() time.Time { return fixedNow.Add(time.Hour) }
	again, err := s.UpdateStatus(ctx, task.ID, models.StatusCompleted)
	require.NoError(t, err)
	assert.True(t, again.CompletedAt.Equal(fixedNow))

	reopened, err := s.UpdateStatus(ctx, task.ID, models.StatusInProgress)
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)

	_, err = s.UpdateStatus(ctx, task.ID, "bogus")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTaskListOrderedByDueDate(t *testing.T) {
	s := newTaskService(repotest.New())
	ctx := context.Background()

	_, err := s.Create(ctx, TaskInput{Title: ptr("later"), DueDate: ptr("2024-06-01")}, "")
	require.NoError(t, err)
	_, err = s.Create(ctx, TaskInput{Title: ptr("undated")}, "")
	require.NoError(t, err)
	_, err = s.Create(ctx, TaskInput{Title: ptr("sooner"), DueDate: ptr("2024-05-15")}, "")
	require.NoError(t, err)

	tasks, err := s.GetAll(ctx, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"sooner", "later", "undated"}, []string{tasks[0].Title, tasks[1].Title, tasks[2].Title})
}

func TestActivityCompleteAndReopen(t *testing.T) {
	db := repotest.New()
	s := NewActivityService(db.Activities())
	s.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	a, err := s.Create(ctx, ActivityInput{Type: ptr(models.ActivityCall), Subject: ptr("Intro call")}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, a.Status)

	done, err := s.Complete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	back, err := s.Update(ctx, a.ID, ActivityInput{Status: ptr(models.StatusPending)})
	require.NoError(t, err)
	assert.Nil(t, back.CompletedAt)

	_, err = s.Create(ctx, ActivityInput{Type: ptr(models.ActivityType("fax")), Subject: ptr("x")}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.Create(ctx, ActivityInput{Type: ptr(models.ActivityNote)}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
