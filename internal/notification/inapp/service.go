package inapp

import (
	"context"

	"consultation_backend/internal/events"
	"consultation_backend/internal/metrics"
	"consultation_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence the service needs; *Repository implements it.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, userID string, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string, notificationID uuid.UUID) error
}

// MailQueue schedules the e-mail copy of a notification.
type MailQueue interface {
	EnqueueNotificationEmail(ctx context.Context, notificationID uuid.UUID, userID, notificationType, message string) error
}

type Service struct {
	repo     Store
	eventBus events.Bus
	mail     MailQueue
	log      *logger.Logger
}

func NewService(repo Store, eventBus events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		log:      log,
	}
}

// SetMailQueue enables e-mail delivery. Without it only in-app copies exist.
func (s *Service) SetMailQueue(q MailQueue) {
	s.mail = q
}

// Create persists the notification, announces it to the user's stream and
// queues the e-mail copy. Only the persist step can fail the call.
func (s *Service) Create(ctx context.Context, userID, notificationType string, subjectID int64, message string) error {
	notif, err := s.repo.Create(ctx, CreateParams{
		UserID:    userID,
		Type:      notificationType,
		SubjectID: subjectID,
		Message:   message,
	})
	if err != nil {
		s.log.WithContext(ctx).Error("failed to persist in-app notification", "error", err, "user_id", userID, "type", notificationType)
		return err
	}

	if s.eventBus != nil {
		s.eventBus.Publish(ctx, events.NotificationCreated{
			BaseEvent:      events.NewBaseEvent(),
			NotificationID: notif.ID.String(),
			UserID:         notif.UserID,
			Type:           notif.Type,
			SubjectID:      notif.SubjectID,
			Message:        notif.Message,
			CreatedAt:      notif.CreatedAt,
		})
	}

	if s.mail != nil {
		if err := s.mail.EnqueueNotificationEmail(ctx, notif.ID, notif.UserID, notif.Type, notif.Message); err != nil {
			metrics.RecordEmail("enqueue_failed")
			s.log.WithContext(ctx).DependencyFailure("email_queue", "enqueue_notification_email", err)
		}
	}

	return nil
}

func (s *Service) List(ctx context.Context, userID string, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, userID, pageSize, offset)
}

func (s *Service) CountUnread(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID string, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}
