package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"consultation_backend/internal/notification/inapp"
	"consultation_backend/platform/apperr"
	"consultation_backend/platform/httpkit"
	"consultation_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type sliceStore struct {
	mu    sync.Mutex
	items []inapp.Notification
}

func (s *sliceStore) Create(_ context.Context, p inapp.CreateParams) (inapp.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := inapp.Notification{ID: uuid.New(), UserID: p.UserID, Type: p.Type, SubjectID: p.SubjectID, Message: p.Message, CreatedAt: time.Now()}
	s.items = append(s.items, n)
	return n, nil
}

func (s *sliceStore) List(_ context.Context, userID string, limit, offset int) ([]inapp.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var mine []inapp.Notification
	for _, n := range s.items {
		if n.UserID == userID {
			mine = append(mine, n)
		}
	}
	total := len(mine)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)
	return mine[offset:end], total, nil
}

func (s *sliceStore) CountUnread(_ context.Context, userID string) (int, error) {
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

func (s *sliceStore) MarkRead(_ context.Context, userID string, id uuid.UUID) error {
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

func (s *sliceStore) MarkAllRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].UserID == userID {
			s.items[i].IsRead = true
		}
	}
	return nil
}

func (s *sliceStore) Delete(_ context.Context, userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.items {
		if n.ID == id && n.UserID == userID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("notification not found")
}

func newTestRouter(t *testing.T, store *sliceStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	group := r.Group("/notifications", func(c *gin.Context) {
		if user := c.GetHeader("X-User"); user != "" {
			c.Set(httpkit.ContextUserIDKey, user)
		}
		c.Next()
	})
	NewHTTPHandler(inapp.NewService(store, nil, logger.Discard())).RegisterRoutes(group)
	return r
}

func do(r *gin.Engine, method, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T, store *sliceStore, userID, message string) uuid.UUID {
	t.Helper()
	n, err := store.Create(context.Background(), inapp.CreateParams{UserID: userID, Type: "consultation_accepted", SubjectID: 1, Message: message})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return n.ID
}

func unreadCount(t *testing.T, r *gin.Engine, user string) int {
	t.Helper()
	rec := do(r, http.MethodGet, "/notifications/unread-count", user)
	if rec.Code != http.StatusOK {
		t.Fatalf("unread-count: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body.Count
}

func TestNotificationRoutesRequireIdentity(t *testing.T) {
	r := newTestRouter(t, &sliceStore{})
	for _, path := range []string{"/notifications", "/notifications/unread-count"} {
		if rec := do(r, http.MethodGet, path, ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s without identity: %d", path, rec.Code)
		}
	}
}

func TestListReturnsOnlyCallersNotifications(t *testing.T) {
	store := &sliceStore{}
	seed(t, store, "client-1", "Your consultation was accepted")
	seed(t, store, "client-1", "A price was proposed")
	seed(t, store, "client-2", "Not yours")
	r := newTestRouter(t, store)

	rec := do(r, http.MethodGet, "/notifications?page=1&limit=1", "client-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Items []inapp.Notification `json:"items"`
		Total int                  `json:"total"`
		Page  int                  `json:"page"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if body.Total != 2 || body.Page != 1 || len(body.Items) != 1 {
		t.Fatalf("unexpected page: %+v", body)
	}
	if body.Items[0].UserID != "client-1" {
		t.Fatalf("listed another user's notification: %+v", body.Items[0])
	}
}

func TestMarkReadAndReadAll(t *testing.T) {
	store := &sliceStore{}
	first := seed(t, store, "client-1", "one")
	seed(t, store, "client-1", "two")
	r := newTestRouter(t, store)

	if got := unreadCount(t, r, "client-1"); got != 2 {
		t.Fatalf("expected 2 unread, got %d", got)
	}

	if rec := do(r, http.MethodPatch, "/notifications/"+first.String()+"/read", "client-1"); rec.Code != http.StatusOK {
		t.Fatalf("mark read: %d %s", rec.Code, rec.Body.String())
	}
	if got := unreadCount(t, r, "client-1"); got != 1 {
		t.Fatalf("expected 1 unread, got %d", got)
	}

	if rec := do(r, http.MethodPatch, "/notifications/read-all", "client-1"); rec.Code != http.StatusOK {
		t.Fatalf("read-all: %d %s", rec.Code, rec.Body.String())
	}
	if got := unreadCount(t, r, "client-1"); got != 0 {
		t.Fatalf("expected 0 unread, got %d", got)
	}
}

func TestMarkReadRejectsUnknownOrForeignIDs(t *testing.T) {
	store := &sliceStore{}
	foreign := seed(t, store, "client-2", "not yours")
	r := newTestRouter(t, store)

	if rec := do(r, http.MethodPatch, "/notifications/not-a-uuid/read", "client-1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed id: %d", rec.Code)
	}
	if rec := do(r, http.MethodPatch, "/notifications/"+uuid.NewString()+"/read", "client-1"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: %d", rec.Code)
	}
	if rec := do(r, http.MethodPatch, "/notifications/"+foreign.String()+"/read", "client-1"); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign id: %d", rec.Code)
	}
}

func TestDeleteRemovesNotification(t *testing.T) {
	store := &sliceStore{}
	id := seed(t, store, "client-1", "bye")
	r := newTestRouter(t, store)

	if rec := do(r, http.MethodDelete, "/notifications/"+id.String(), "client-2"); rec.Code != http.StatusNotFound {
		t.Fatalf("delete by another user: %d", rec.Code)
	}
	if rec := do(r, http.MethodDelete, "/notifications/"+id.String(), "client-1"); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(r, http.MethodDelete, "/notifications/"+id.String(), "client-1"); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", rec.Code)
	}
	if got := unreadCount(t, r, "client-1"); got != 0 {
		t.Fatalf("expected no notifications left, got %d", got)
	}
}
