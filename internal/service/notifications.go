package service

import (
	"context"
	"fmt"

	"github.com/rongwang/staff-scheduler/internal/models"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

func (s *DefaultService) ListNotifications(ctx context.Context, actorID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	out, err := s.repo.ListNotifications(ctx, a.id(), unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing notifications: %w", err)
	}
	return out, nil
}

func (s *DefaultService) UnreadNotificationCount(ctx context.Context, actorID string) (int, error) {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.CountUnreadNotifications(ctx, a.id())
	if err != nil {
		return 0, fmt.Errorf("error counting notifications: %w", err)
	}
	return n, nil
}

// PopupNotifications returns pending popups and clears their popup flag so
// each one is shown once.
func (s *DefaultService) PopupNotifications(ctx context.Context, actorID string) ([]models.Notification, error) {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	out, err := s.repo.TakePopupNotifications(ctx, a.id())
	if err != nil {
		return nil, fmt.Errorf("error taking popups: %w", err)
	}
	return out, nil
}

func (s *DefaultService) MarkNotificationRead(ctx context.Context, actorID, id string) error {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return err
	}
	n, err := s.repo.GetNotification(ctx, id)
	if err != nil {
		return fmt.Errorf("error getting notification: %w", err)
	}
	// someone else's notification is reported as missing
	if n == nil || n.UserID != a.id() {
		return notFound("notification")
	}
	if n.IsRead {
		return nil
	}
	if err := s.repo.MarkNotificationRead(ctx, n.ID); err != nil {
		return fmt.Errorf("error marking notification read: %w", err)
	}
	return nil
}

func (s *DefaultService) MarkAllNotificationsRead(ctx context.Context, actorID string) error {
	a, err := s.loadActor(ctx, actorID)
	if err != nil {
		return err
	}
	if err := s.repo.MarkAllNotificationsRead(ctx, a.id()); err != nil {
		return fmt.Errorf("error marking notifications read: %w", err)
	}
	return nil
}
