package service

import (
	"context"

	"consultation_backend/internal/consultations/domain"
)

// Store is durable consultation storage. Update must fail with a Conflict
// error when the stored version differs from the record's Version.
type Store interface {
	GetByID(ctx context.Context, id int64) (domain.Consultation, error)
	Find(ctx context.Context, filter domain.Filter) ([]domain.Consultation, error)
	Insert(ctx context.Context, c domain.Consultation) (domain.Consultation, error)
	Update(ctx context.Context, c domain.Consultation) (domain.Consultation, error)
	Delete(ctx context.Context, id int64) error
}

// Notifier persists and delivers one notification. Failures never undo the
// transition that produced the notification.
type Notifier interface {
	Create(ctx context.Context, userID, notificationType string, subjectID int64, message string) error
}

// Directory resolves display names and tracks the free quota flag.
// DisplayName returns "" for users without a name.
type Directory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
	HasConsumedFreeQuota(ctx context.Context, userID string) (bool, error)
	SetConsumedFreeQuota(ctx context.Context, userID string) error
}

// Classifier assigns a category from the fixed set and never fails.
type Classifier interface {
	Classify(ctx context.Context, title, description string) string
}
