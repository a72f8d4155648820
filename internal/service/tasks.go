package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/staff-scheduler/internal/models"
)

func (s *DefaultService) taskView(t *models.Task) *models.TaskView {
	return &models.TaskView{Task: *t, Overdue: t.IsOverdue(s.today())}
}

func (s *DefaultService) CreateTask(ctx context.Context, actorID string, req models.CreateTaskRequest) (*models.TaskView, error) {
	a, err := s.authorize(ctx, actorID, models.PermTasksCreate)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, validationError("title is required")
	}

	task := &models.Task{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Status:      models.TaskStatusPending,
		Category:    strings.TrimSpace(req.Category),
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}
	creator := a.id()
	task.AssignedBy = &creator

	if req.AssignedTo != nil && *req.AssignedTo != "" {
		assignee, err := s.repo.GetUserByID(ctx, *req.AssignedTo)
		if err != nil {
			return nil, fmt.Errorf("error getting assignee: %w", err)
		}
		if assignee == nil || !assignee.IsActive {
			return nil, validationError("assignee does not exist or is inactive")
		}
		id := assignee.ID
		task.AssignedTo = &id
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, wrapRepoError("creating task", err)
	}

	ev := Event{
		ActorID:    a.id(),
		Action:     "task.created",
		EntityType: "task",
		EntityID:   task.ID,
		Details:    map[string]interface{}{"title": task.Title, "priority": task.Priority},
	}
	if task.AssignedTo != nil && *task.AssignedTo != a.id() {
		ev.Notify = &NotificationSpec{
			UserIDs:     []string{*task.AssignedTo},
			Title:       "New Task Assigned",
			Message:     fmt.Sprintf("You have been assigned: %s", task.Title),
			Type:        "task",
			Popup:       true,
			RelatedID:   task.ID,
			RelatedType: "task",
		}
	}
	s.emit(ctx, ev)

	return s.taskView(task), nil
}

// ListTasks returns the caller's tasks, or every task when all is set and
// the caller holds tasks.view_all.
func (s *DefaultService) ListTasks(ctx context.Context, actorID string, all bool) ([]models.TaskView, error) {
	a, err := s.authorize(ctx, actorID, models.PermTasksViewOwn)
	if err != nil {
		return nil, err
	}
	assignee := a.id()
	if all {
		if err := a.require(models.PermTasksViewAll); err != nil {
			return nil, err
		}
		assignee = ""
	}

	tasks, err := s.repo.ListTasks(ctx, assignee)
	if err != nil {
		return nil, fmt.Errorf("error listing tasks: %w", err)
	}
	out := make([]models.TaskView, 0, len(tasks))
	for i := range tasks {
		out = append(out, *s.taskView(&tasks[i]))
	}
	return out, nil
}

func (s *DefaultService) GetTask(ctx context.Context, actorID, id string) (*models.TaskView, error) {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	task, err := s.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAssignee(task, a.id()) && !a.can(models.PermTasksViewAll) {
		return nil, permissionDenied(models.PermTasksViewAll)
	}
	return s.taskView(task), nil
}

// UpdateTaskStatus moves a task. The assignee may always update their own
// task; anyone else needs tasks.edit.
func (s *DefaultService) UpdateTaskStatus(ctx context.Context, actorID, id, status string) (*models.TaskView, error) {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	switch status {
	case models.TaskStatusPending, models.TaskStatusInProgress, models.TaskStatusCompleted, models.TaskStatusCancelled:
	default:
		return nil, validationError("unknown task status %q", status)
	}

	task, err := s.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAssignee(task, a.id()) && !a.can(models.PermTasksEdit) {
		return nil, permissionDenied(models.PermTasksEdit)
	}
	if task.Status == status {
		return s.taskView(task), nil
	}

	previous := task.Status
	task.Status = status
	task.CompletedAt = nil
	if status == models.TaskStatusCompleted {
		now := s.now()
		task.CompletedAt = &now
	}
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("error updating task: %w", err)
	}

	ev := Event{
		ActorID:    a.id(),
		Action:     "task.status_changed",
		EntityType: "task",
		EntityID:   task.ID,
		Details:    map[string]interface{}{"from": previous, "to": status},
	}
	if status == models.TaskStatusCompleted && task.AssignedBy != nil && *task.AssignedBy != a.id() {
		ev.Notify = &NotificationSpec{
			UserIDs:     []string{*task.AssignedBy},
			Title:       "Task Completed",
			Message:     fmt.Sprintf("%s completed: %s", a.user.FullName(), task.Title),
			Type:        "success",
			RelatedID:   task.ID,
			RelatedType: "task",
		}
	}
	s.emit(ctx, ev)

	return s.taskView(task), nil
}

func (s *DefaultService) DeleteTask(ctx context.Context, actorID, id string) error {
	a, err := s.authorize(ctx, actorID, models.PermTasksDelete)
	if err != nil {
		return err
	}
	task, err := s.loadTask(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTask(ctx, task.ID); err != nil {
		return fmt.Errorf("error deleting task: %w", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "task.deleted",
		EntityType: "task",
		EntityID:   task.ID,
		Details:    map[string]interface{}{"title": task.Title},
	})
	return nil
}

func (s *DefaultService) loadTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting task: %w", err)
	}
	if task == nil {
		return nil, notFound("task")
	}
	return task, nil
}

func isAssignee(t *models.Task, userID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}
