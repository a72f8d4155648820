package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/staff-scheduler/internal/models"
)

const upcomingEventLimit = 5

func (s *DefaultService) ListPosts(ctx context.Context, actorID string) ([]models.BoardPost, error) {
	if _, err := s.authorize(ctx, actorID, models.PermBoardView); err != nil {
		return nil, err
	}
	posts, err := s.repo.ListActivePosts(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *DefaultService) UpcomingEvents(ctx context.Context, actorID string) ([]models.BoardPost, error) {
	if _, err := s.authorize(ctx, actorID, models.PermBoardView); err != nil {
		return nil, err
	}
	posts, err := s.repo.ListUpcomingEvents(ctx, s.today(), upcomingEventLimit)
	if err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}
	return posts, nil
}

// CreatePost publishes to the board. NotifyAll fans a notification out to
// every other active user.
func (s *DefaultService) CreatePost(ctx context.Context, actorID string, req models.CreatePostRequest) (*models.BoardPost, error) {
	a, err := s.authorize(ctx, actorID, models.PermBoardCreate)
	if err != nil {
		return nil, err
	}

	post := &models.BoardPost{
		Title:     strings.TrimSpace(req.Title),
		Content:   strings.TrimSpace(req.Content),
		PostType:  req.PostType,
		Priority:  req.Priority,
		ExpiresAt: req.ExpiresAt,
		EventDate: req.EventDate,
		IsActive:  true,
	}
	if post.Title == "" || post.Content == "" {
		return nil, validationError("title and content are required")
	}
	if post.PostType == "" {
		post.PostType = "announcement"
	}
	if post.Priority == "" {
		post.Priority = "normal"
	}
	if post.PostType == "event" && post.EventDate.IsZero() {
		return nil, validationError("events need an event date")
	}
	if post.ExpiresAt != nil && !post.ExpiresAt.After(s.now()) {
		return nil, validationError("expiry must be in the future")
	}
	creator := a.id()
	post.CreatedBy = &creator

	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, wrapRepoError("creating post", err)
	}

	ev := Event{
		ActorID:    a.id(),
		Action:     "board.post_created",
		EntityType: "board_post",
		EntityID:   post.ID,
		Details:    map[string]interface{}{"title": post.Title, "type": post.PostType},
	}
	if req.NotifyAll {
		users, err := s.repo.ListUsers(ctx, true)
		if err != nil {
			s.logger.Warnf("could not list users to notify about post %s: %v", post.ID, err)
		} else {
			ids := make([]string, 0, len(users))
			for _, u := range users {
				if u.ID != a.id() {
					ids = append(ids, u.ID)
				}
			}
			ev.Notify = &NotificationSpec{
				UserIDs:     ids,
				Title:       post.Title,
				Message:     summarize(post.Content, 140),
				Type:        "announcement",
				Popup:       post.Priority == "high" || post.Priority == "urgent",
				RelatedID:   post.ID,
				RelatedType: "board_post",
			}
		}
	}
	s.emit(ctx, ev)

	return post, nil
}

func (s *DefaultService) TogglePin(ctx context.Context, actorID, id string) (*models.BoardPost, error) {
	a, err := s.authorize(ctx, actorID, models.PermBoardPin)
	if err != nil {
		return nil, err
	}
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting post: %w", err)
	}
	if post == nil {
		return nil, notFound("post")
	}

	post.IsPinned = !post.IsPinned
	if err := s.repo.UpdatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("error updating post: %w", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "board.post_pinned",
		EntityType: "board_post",
		EntityID:   post.ID,
		Details:    map[string]interface{}{"pinned": post.IsPinned},
	})
	return post, nil
}

func (s *DefaultService) DeletePost(ctx context.Context, actorID, id string) error {
	a, err := s.authorize(ctx, actorID, models.PermBoardDelete)
	if err != nil {
		return err
	}
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return fmt.Errorf("error getting post: %w", err)
	}
	if post == nil {
		return notFound("post")
	}
	if err := s.repo.DeletePost(ctx, post.ID); err != nil {
		return fmt.Errorf("error deleting post: %w", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "board.post_deleted",
		EntityType: "board_post",
		EntityID:   post.ID,
		Details:    map[string]interface{}{"title": post.Title},
	})
	return nil
}

// summarize cuts s to at most n runes
func summarize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
