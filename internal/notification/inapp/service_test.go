package inapp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"consultation_backend/internal/events"
	"consultation_backend/platform/apperr"
	"consultation_backend/platform/logger"

	"github.com/google/uuid"
)

type memStore struct {
	mu        sync.Mutex
	items     []Notification
	createErr error
}

func (s *memStore) Create(_ context.Context, p CreateParams) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Notification{}, s.createErr
	}
	n := Notification{ID: uuid.New(), UserID: p.UserID, Type: p.Type, SubjectID: p.SubjectID, Message: p.Message, CreatedAt: time.Now()}
	s.items = append(s.items, n)
	return n, nil
}

func (s *memStore) List(_ context.Context, userID string, limit, offset int) ([]Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var mine []Notification
	for _, n := range s.items {
		if n.UserID == userID {
			mine = append(mine, n)
		}
	}
	total := len(mine)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return mine[offset:end], total, nil
}

func (s *memStore) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *memStore) MarkRead(_ context.Context, userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].UserID == userID {
			s.items[i].IsRead = true
			return nil
		}
	}
	return apperr.NotFound("notification not found")
}

func (s *memStore) MarkAllRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].UserID == userID {
			s.items[i].IsRead = true
		}
	}
	return nil
}

func (s *memStore) Delete(_ context.Context, userID string, id uuid.UUID) error {
	return nil
}

type recordingQueue struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (q *recordingQueue) EnqueueNotificationEmail(_ context.Context, _ uuid.UUID, userID, _, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, userID)
	return q.err
}

func TestCreatePersistsPublishesAndQueuesEmail(t *testing.T) {
	store := &memStore{}
	queue := &recordingQueue{}
	bus := events.NewInMemoryBus(logger.Discard())

	var mu sync.Mutex
	var published []events.NotificationCreated
	bus.Subscribe(events.NotificationCreated{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, e.(events.NotificationCreated))
		return nil
	}))

	svc := NewService(store, bus, logger.Discard())
	svc.SetMailQueue(queue)

	if err := svc.Create(context.Background(), "client-1", "ConsultationAccepted", 7, "Dr. Bob accepted"); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	bus.Wait()

	if len(store.items) != 1 || store.items[0].SubjectID != 7 {
		t.Fatalf("unexpected stored items: %+v", store.items)
	}
	if len(published) != 1 || published[0].UserID != "client-1" || published[0].NotificationID != store.items[0].ID.String() {
		t.Fatalf("unexpected published events: %+v", published)
	}
	if len(queue.calls) != 1 || queue.calls[0] != "client-1" {
		t.Fatalf("unexpected queued e-mails: %v", queue.calls)
	}
}

func TestCreateSurvivesQueueFailureButNotStoreFailure(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, nil, logger.Discard())
	svc.SetMailQueue(&recordingQueue{err: errors.New("redis down")})

	if err := svc.Create(context.Background(), "client-1", "PriceSet", 1, "m"); err != nil {
		t.Fatalf("queue failure must not fail Create: %v", err)
	}

	store.createErr = apperr.Dependency("notification storage unavailable", errors.New("db down"))
	if err := svc.Create(context.Background(), "client-1", "PriceSet", 1, "m"); !apperr.Is(err, apperr.KindDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestListClampsPaging(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, nil, logger.Discard())
	for i := 0; i < 3; i++ {
		if err := svc.Create(context.Background(), "u", "PriceSet", int64(i), "m"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	items, total, err := svc.List(context.Background(), "u", 0, 2)
	if err != nil || total != 3 || len(items) != 2 {
		t.Fatalf("page 1: %d items of %d, err %v", len(items), total, err)
	}
	items, _, _ = svc.List(context.Background(), "u", 2, 2)
	if len(items) != 1 {
		t.Fatalf("page 2: expected 1 item, got %d", len(items))
	}

	if err := svc.MarkRead(context.Background(), "u", items[0].ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := svc.MarkRead(context.Background(), "other", items[0].ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("foreign notification should be not found, got %v", err)
	}
	if n, _ := svc.CountUnread(context.Background(), "u"); n != 2 {
		t.Fatalf("expected 2 unread, got %d", n)
	}
	if err := svc.MarkAllRead(context.Background(), "u"); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if n, _ := svc.CountUnread(context.Background(), "u"); n != 0 {
		t.Fatalf("expected 0 unread, got %d", n)
	}
}
