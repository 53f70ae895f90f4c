package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"consultation_backend/internal/consultations/domain"
	"consultation_backend/internal/events"
	"consultation_backend/platform/apperr"
	"consultation_backend/platform/logger"
)

// =============================================================================
// Fakes
// =============================================================================

type memStore struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]domain.Consultation
	updateErr error
	insertErr error
	updates   int
	deleted   []int64
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, rows: make(map[int64]domain.Consultation)}
}

func (s *memStore) GetByID(_ context.Context, id int64) (domain.Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return domain.Consultation{}, apperr.NotFound("consultation not found")
	}
	return c, nil
}

func (s *memStore) Find(_ context.Context, f domain.Filter) ([]domain.Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Consultation, 0)
	for id := int64(1); id < s.nextID; id++ {
		if c, ok := s.rows[id]; ok && f.Matches(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) Insert(_ context.Context, c domain.Consultation) (domain.Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return domain.Consultation{}, s.insertErr
	}
	c.ID = s.nextID
	c.Version = 1
	s.nextID++
	s.rows[c.ID] = c
	return c, nil
}

func (s *memStore) Update(_ context.Context, c domain.Consultation) (domain.Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return domain.Consultation{}, s.updateErr
	}
	stored, ok := s.rows[c.ID]
	if !ok {
		return domain.Consultation{}, apperr.NotFound("consultation not found")
	}
	if stored.Version != c.Version {
		return domain.Consultation{}, apperr.Conflict("consultation was modified concurrently")
	}
	c.Version++
	s.rows[c.ID] = c
	s.updates++
	return c, nil
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return apperr.NotFound("consultation not found")
	}
	delete(s.rows, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *memStore) put(c domain.Consultation) domain.Consultation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextID
	if c.Version == 0 {
		c.Version = 1
	}
	s.nextID++
	s.rows[c.ID] = c
	return c
}

func (s *memStore) row(t *testing.T, id int64) domain.Consultation {
	t.Helper()
	c, err := s.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("row %d: %v", id, err)
	}
	return c
}

type sentNotification struct {
	userID    string
	typ       string
	subjectID int64
	message   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Create(_ context.Context, userID, typ string, subjectID int64, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{userID: userID, typ: typ, subjectID: subjectID, message: message})
	return n.err
}

func (n *recordingNotifier) ofType(typ domain.NotificationType) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentNotification, 0)
	for _, s := range n.sent {
		if s.typ == string(typ) {
			out = append(out, s)
		}
	}
	return out
}

type fakeDirectory struct {
	mu       sync.Mutex
	names    map[string]string
	consumed map[string]bool
	readErr  error
	writeErr error
	nameErr  error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		names:    map[string]string{"client-1": "Alice", "expert1": "Dr. Bob"},
		consumed: make(map[string]bool),
	}
}

func (d *fakeDirectory) DisplayName(_ context.Context, userID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.nameErr != nil {
		return "", d.nameErr
	}
	return d.names[userID], nil
}

func (d *fakeDirectory) HasConsumedFreeQuota(_ context.Context, userID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		return false, d.readErr
	}
	return d.consumed[userID], nil
}

func (d *fakeDirectory) SetConsumedFreeQuota(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return d.writeErr
	}
	d.consumed[userID] = true
	return nil
}

type classifierFunc func(title, description string) string

func (f classifierFunc) Classify(_ context.Context, title, description string) string {
	return f(title, description)
}

func softwareClassifier() Classifier {
	return classifierFunc(func(_, description string) string {
		if strings.Contains(description, "software") {
			return "technology"
		}
		return "nonsense"
	})
}

type harness struct {
	svc       *Service
	store     *memStore
	notifier  *recordingNotifier
	directory *fakeDirectory
	mu        sync.Mutex
	published []events.ConsultationTransitioned
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     newMemStore(),
		notifier:  &recordingNotifier{},
		directory: newFakeDirectory(),
	}
	bus := events.NewInMemoryBus(logger.Discard())
	bus.Subscribe(events.ConsultationTransitioned{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.published = append(h.published, e.(events.ConsultationTransitioned))
		return nil
	}))
	h.svc = New(h.store, h.notifier, h.directory, softwareClassifier(), bus, logger.Discard())
	h.svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func (h *harness) actions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.published))
	for _, e := range h.published {
		out = append(out, e.Action)
	}
	return out
}

func (h *harness) create(t *testing.T, p CreateParams) int64 {
	t.Helper()
	id, err := h.svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return id
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if got := apperr.GetKind(err); got != kind {
		t.Fatalf("expected kind %v, got %v (%v)", kind, got, err)
	}
}

func strPtr(s string) *string { return &s }

func centsPtr(v int64) *int64 { return &v }

func openRequest() CreateParams {
	return CreateParams{ClientID: "client-1", Title: "T", Description: "D contains software", IsOpenRequest: true}
}

// =============================================================================
// Tests
// =============================================================================

func TestCreateOpenRequestClassifiesAndStaysSilent(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, CreateParams{
		ClientID:      "client-1",
		Title:         "<b>T</b>",
		Description:   "D contains software",
		ExpertID:      "expert-9",
		IsOpenRequest: true,
	})

	c := h.store.row(t, id)
	if c.Category != "Technology" {
		t.Fatalf("expected Technology, got %q", c.Category)
	}
	if c.Title != "T" || c.ExpertID != nil || c.Status != domain.StatusPending {
		t.Fatalf("unexpected record: %+v", c)
	}
	if len(h.notifier.sent) != 0 {
		t.Fatalf("open request must not notify, got %+v", h.notifier.sent)
	}
	if got := h.actions(); !reflect.DeepEqual(got, []string{domain.EventCreated}) {
		t.Fatalf("unexpected published actions: %v", got)
	}
}

func TestCreateFallsBackToOtherForUnknownCategory(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, CreateParams{ClientID: "client-1", Title: "T", Description: "gardening", IsOpenRequest: true})
	if got := h.store.row(t, id).Category; got != "Other" {
		t.Fatalf("expected Other, got %q", got)
	}
}

func TestCreateWithoutExpertIsListedAsOpenRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(t, CreateParams{ClientID: "client-1", Title: "T", Description: "D"})

	c := h.store.row(t, id)
	if c.ExpertID != nil || !c.IsOpenRequest {
		t.Fatalf("untargeted request must be open, got %+v", c)
	}
	open, err := h.svc.ListOpenRequests(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListOpenRequests returned error: %v", err)
	}
	if len(open) != 1 || open[0].ID != id {
		t.Fatalf("expected the request among open requests, got %+v", open)
	}
	if _, err := h.svc.GetForParticipant(ctx, id, "expert-2", true); err != nil {
		t.Fatalf("experts should see the untargeted request: %v", err)
	}
}

func TestCreateTargetedNotifiesExpertByName(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, CreateParams{ClientID: "client-1", Title: "Taxes", Description: "D", ExpertID: "expert1"})

	sent := h.notifier.ofType(domain.NotificationConsultationRequest)
	if len(sent) != 1 || sent[0].userID != "expert1" || sent[0].subjectID != id {
		t.Fatalf("expected one ConsultationRequest for expert1, got %+v", h.notifier.sent)
	}
	if !strings.HasPrefix(sent[0].message, "Alice ") {
		t.Fatalf("message should name the client: %q", sent[0].message)
	}
}

func TestCreateValidationHappensBeforeAnyWrite(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), CreateParams{ClientID: "client-1", Title: " ", Description: "D"})
	requireKind(t, err, apperr.KindValidation)

	_, err = h.svc.Create(context.Background(), CreateParams{ClientID: "", Title: "T", Description: "D"})
	requireKind(t, err, apperr.KindValidation)

	if len(h.store.rows) != 0 || len(h.actions()) != 0 {
		t.Fatal("failed create must not store or publish anything")
	}
}

func TestAcceptNotifiesClientOnce(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, openRequest())

	if err := h.svc.Accept(context.Background(), id, "expert1"); err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	c := h.store.row(t, id)
	if c.Status != domain.StatusAccepted || c.AssignedExpert() != "expert1" {
		t.Fatalf("unexpected record: %+v", c)
	}
	sent := h.notifier.ofType(domain.NotificationConsultationAccepted)
	if len(sent) != 1 || sent[0].userID != "client-1" || !strings.HasPrefix(sent[0].message, "Dr. Bob ") {
		t.Fatalf("expected one ConsultationAccepted for the client naming the expert, got %+v", sent)
	}
}

func TestPriceNegotiationFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(t, openRequest())

	if err := h.svc.Accept(ctx, id, "expert1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := h.svc.SetPrice(ctx, id, "expert1", 5000); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	c := h.store.row(t, id)
	if c.Status != domain.StatusAwaitingPayment || c.PriceCents == nil || *c.PriceCents != 5000 {
		t.Fatalf("unexpected record after SetPrice: %+v", c)
	}
	priceSet := h.notifier.ofType(domain.NotificationPriceSet)
	if len(priceSet) != 1 || !strings.Contains(priceSet[0].message, "50.00") {
		t.Fatalf("expected PriceSet with the amount, got %+v", priceSet)
	}

	requireKind(t, h.svc.SetPrice(ctx, id, "expert2", 5000), apperr.KindForbidden)

	if err := h.svc.AcceptPrice(ctx, id, "client-1"); err != nil {
		t.Fatalf("AcceptPrice: %v", err)
	}
	c = h.store.row(t, id)
	if !c.IsPaid || c.Status != domain.StatusInProgress {
		t.Fatalf("unexpected record after AcceptPrice: %+v", c)
	}
	if got := h.notifier.ofType(domain.NotificationPaymentReceived); len(got) != 1 || got[0].userID != "expert1" {
		t.Fatalf("expected PaymentReceived for the expert, got %+v", got)
	}

	requireKind(t, h.svc.SetPrice(ctx, id, "expert1", 7000), apperr.KindInvalidTransition)

	if err := h.svc.Complete(ctx, id); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := []string{domain.EventCreated, domain.EventAccepted, domain.EventPriceSet, domain.EventPriceAccepted, domain.EventCompleted}
	if got := h.actions(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected published actions:\n got %v\nwant %v", got, want)
	}
}

func TestRejectPriceReopensAndNotifiesPreviousExpert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(t, CreateParams{ClientID: "client-1", Title: "T", Description: "D", ExpertID: "expert1"})

	if err := h.svc.Accept(ctx, id, "expert1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := h.svc.SetPrice(ctx, id, "expert1", 12345); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	requireKind(t, h.svc.RejectPrice(ctx, id, "expert1"), apperr.KindForbidden)
	if err := h.svc.RejectPrice(ctx, id, "client-1"); err != nil {
		t.Fatalf("RejectPrice: %v", err)
	}

	c := h.store.row(t, id)
	if c.ExpertID != nil || c.PriceCents != nil || c.IsPaid || !c.IsOpenRequest || c.Status != domain.StatusPending {
		t.Fatalf("unexpected record after reject: %+v", c)
	}
	if got := h.notifier.ofType(domain.NotificationPriceRejected); len(got) != 1 || got[0].userID != "expert1" {
		t.Fatalf("expected PriceRejected for the previous expert, got %+v", got)
	}

	// Reopened requests can be taken by anyone.
	if err := h.svc.Accept(ctx, id, "expert-2"); err != nil {
		t.Fatalf("re-accept by another expert: %v", err)
	}
}

func TestAcceptThenCancelSendsExactlyOneDecline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(t, openRequest())

	if err := h.svc.Accept(ctx, id, "expert1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := h.svc.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	declines := h.notifier.ofType(domain.NotificationConsultationDeclined)
	if len(declines) != 1 {
		t.Fatalf("expected exactly one decline, got %d", len(declines))
	}
	if declines[0].userID != "client-1" || !strings.HasPrefix(declines[0].message, "Dr. Bob ") {
		t.Fatalf("decline should reach the client naming the expert: %+v", declines[0])
	}
}

func TestCancelCompletedIsRejectedWithoutSideEffects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(t, openRequest())
	if err := h.svc.Accept(ctx, id, "expert1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := h.svc.Complete(ctx, id); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	before := h.store.row(t, id)
	sentBefore := len(h.notifier.sent)
	actionsBefore := len(h.actions())

	requireKind(t, h.svc.Cancel(ctx, id), apperr.KindInvalidTransition)
	requireKind(t, h.svc.UpdateCategory(ctx, id, "client-1", "Legal"), apperr.KindInvalidTransition)
	requireKind(t, h.svc.Accept(ctx, id, "expert1"), apperr.KindInvalidTransition)
	requireKind(t, h.svc.Complete(ctx, id), apperr.KindInvalidTransition)

	if after := h.store.row(t, id); !reflect.DeepEqual(before, after) {
		t.Fatalf("terminal record mutated:\nbefore %+v\nafter  %+v", before, after)
	}
	if len(h.notifier.sent) != sentBefore || len(h.actions()) != actionsBefore {
		t.Fatal("rejected operation must not notify or publish")
	}
}

func TestFreeQuotaRoundTripIsAdvisory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := openRequest()
	p.RequestedFree = true
	first := h.create(t, p)
	if !h.store.row(t, first).IsFree {
		t.Fatal("first free request should be free")
	}
	if err := h.svc.Accept(ctx, first, "expert1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	requireKind(t, h.svc.SetPrice(ctx, first, "expert1", 100), apperr.KindInvalidTransition)
	if err := h.svc.Complete(ctx, first); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !h.directory.consumed["client-1"] {
		t.Fatal("completing a free consultation should set the quota flag")
	}
	if h.store.row(t, first).PriceCents != nil {
		t.Fatal("free consultation acquired a price")
	}

	second := h.create(t, p)
	if !h.store.row(t, second).IsFree {
		t.Fatal("advisory policy keeps the second request free")
	}
}

func TestStrictQuotaDowngradesSilently(t *testing.T) {
	h := newHarness(t)
	h.svc.SetQuotaPolicy(QuotaStrict)
	h.directory.consumed["client-1"] = true

	p := openRequest()
	p.RequestedFree = true
	id := h.create(t, p)
	if h.store.row(t, id).IsFree {
		t.Fatal("strict policy should create a paid consultation")
	}

	h.directory.readErr = errors.New("directory down")
	id = h.create(t, p)
	if !h.store.row(t, id).IsFree {
		t.Fatal("an unreadable quota flag counts as not consumed")
	}
}

func TestNotificationAndQuotaFailuresDoNotFailTheOperation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.notifier.err = errors.New("smtp down")
	h.directory.writeErr = errors.New("directory down")
	h.directory.nameErr = errors.New("directory down")

	p := openRequest()
	p.RequestedFree = true
	id := h.create(t, p)
	if err := h.svc.Accept(ctx, id, "expert1"); err != nil {
		t.Fatalf("Accept should succeed despite notifier failure: %v", err)
	}
	if err := h.svc.Complete(ctx, id); err != nil {
		t.Fatalf("Complete should succeed despite quota failure: %v", err)
	}
	if h.store.row(t, id).Status != domain.StatusCompleted {
		t.Fatal("state must be committed even when side effects fail")
	}

	accepted := h.notifier.ofType(domain.NotificationConsultationAccepted)
	if len(accepted) != 1 || !strings.HasPrefix(accepted[0].message, domain.FallbackExpertName) {
		t.Fatalf("expected the fallback name when the directory fails, got %+v", accepted)
	}
}

func TestCommitFailureSurfacesAsDependencyAndSkipsSideEffects(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, openRequest())
	h.store.updateErr = errors.New("connection reset")

	err := h.svc.Accept(context.Background(), id, "expert1")
	requireKind(t, err, apperr.KindDependency)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || strings.Contains(appErr.Message, "connection reset") {
		t.Fatalf("dependency detail must stay out of the message: %v", err)
	}
	if len(h.notifier.ofType(domain.NotificationConsultationAccepted)) != 0 {
		t.Fatal("no notification may fire when the commit fails")
	}
	if got := h.actions(); len(got) != 1 {
		t.Fatalf("only the create event should be published, got %v", got)
	}
}

func TestStaleWriterGetsConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.store.put(domain.Consultation{
		ClientID:    "client-1",
		ExpertID:    strPtr("expert1"),
		Title:       "T",
		Description: "D",
		Status:      domain.StatusAwaitingPayment,
		PriceCents:  centsPtr(5000),
	})

	// Both callers read version 1; the first commit bumps it to 2.
	stale := h.store.row(t, c.ID)
	if err := h.svc.AcceptPrice(ctx, c.ID, "client-1"); err != nil {
		t.Fatalf("AcceptPrice: %v", err)
	}
	out, err := domain.RejectPrice(stale, "client-1")
	if err != nil {
		t.Fatalf("RejectPrice on stale copy: %v", err)
	}
	_, err = h.store.Update(ctx, out.Next)
	requireKind(t, err, apperr.KindConflict)

	if got := h.store.row(t, c.ID); got.Status != domain.StatusInProgress || !got.IsPaid {
		t.Fatalf("winner's write must survive: %+v", got)
	}
}

func TestConcurrentAcceptPriceAndRejectPriceHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	c := h.store.put(domain.Consultation{
		ClientID:    "client-1",
		ExpertID:    strPtr("expert1"),
		Title:       "T",
		Description: "D",
		Status:      domain.StatusAwaitingPayment,
		PriceCents:  centsPtr(5000),
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = h.svc.AcceptPrice(context.Background(), c.ID, "client-1") }()
	go func() { defer wg.Done(); errs[1] = h.svc.RejectPrice(context.Background(), c.ID, "client-1") }()
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		kind := apperr.GetKind(err)
		if kind != apperr.KindConflict && kind != apperr.KindInvalidTransition {
			t.Fatalf("loser should see Conflict or InvalidTransition, got %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one winner, got %d (%v)", successes, errs)
	}
	if h.store.updates != 1 {
		t.Fatalf("expected one committed update, got %d", h.store.updates)
	}
}

func TestUpdateCategory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(t, openRequest())

	requireKind(t, h.svc.UpdateCategory(ctx, id, "client-1", "Astrology"), apperr.KindValidation)
	requireKind(t, h.svc.UpdateCategory(ctx, id, "expert1", "legal"), apperr.KindForbidden)

	if err := h.svc.UpdateCategory(ctx, id, "client-1", "legal"); err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	if got := h.store.row(t, id).Category; got != "Legal" {
		t.Fatalf("expected canonical Legal, got %q", got)
	}
}

func TestParticipantRestrictedOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(t, openRequest())
	if err := h.svc.Accept(ctx, id, "expert1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	requireKind(t, h.svc.CompleteAs(ctx, id, "stranger"), apperr.KindForbidden)
	requireKind(t, h.svc.CancelAs(ctx, id, "stranger"), apperr.KindForbidden)
	if err := h.svc.CompleteAs(ctx, id, "expert1"); err != nil {
		t.Fatalf("CompleteAs by expert: %v", err)
	}
}

func TestNotFound(t *testing.T) {
	h := newHarness(t)
	requireKind(t, h.svc.Accept(context.Background(), 404, "expert1"), apperr.KindNotFound)
	_, err := h.svc.GetForParticipant(context.Background(), 404, "client-1", false)
	requireKind(t, err, apperr.KindNotFound)
}

func TestReadsAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	open := h.create(t, openRequest())
	targeted := h.create(t, CreateParams{ClientID: "client-1", Title: "T", Description: "D", ExpertID: "expert1"})
	h.create(t, CreateParams{ClientID: "client-2", Title: "T", Description: "D", IsOpenRequest: true})

	mine, err := h.svc.ListForClient(ctx, "client-1", nil, 0, 0)
	if err != nil || len(mine) != 2 {
		t.Fatalf("ListForClient: %d items, err %v", len(mine), err)
	}
	assigned, err := h.svc.ListForExpert(ctx, "expert1", []domain.Status{domain.StatusPending}, 0, 0)
	if err != nil || len(assigned) != 1 || assigned[0].ID != targeted {
		t.Fatalf("ListForExpert: %+v err %v", assigned, err)
	}
	openItems, err := h.svc.ListOpenRequests(ctx, 0, 0)
	if err != nil || len(openItems) != 2 {
		t.Fatalf("ListOpenRequests: %d items, err %v", len(openItems), err)
	}

	if _, err := h.svc.GetForParticipant(ctx, targeted, "expert-2", true); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("other experts must not read a targeted request: %v", err)
	}
	if _, err := h.svc.GetForParticipant(ctx, open, "expert-2", true); err != nil {
		t.Fatalf("experts may read open requests: %v", err)
	}

	requireKind(t, h.svc.Delete(ctx, open, "client-2"), apperr.KindForbidden)
	if err := h.svc.Delete(ctx, open, "client-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !reflect.DeepEqual(h.store.deleted, []int64{open}) {
		t.Fatalf("unexpected deletions: %v", h.store.deleted)
	}
	requireKind(t, h.svc.Delete(ctx, open, "client-1"), apperr.KindNotFound)
}

func TestParseQuotaPolicy(t *testing.T) {
	for raw, want := range map[string]QuotaPolicy{"": QuotaAdvisory, "Advisory": QuotaAdvisory, " STRICT ": QuotaStrict} {
		got, err := ParseQuotaPolicy(raw)
		if err != nil || got != want {
			t.Fatalf("ParseQuotaPolicy(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseQuotaPolicy("lenient"); err == nil {
		t.Fatal("expected unknown policy to fail")
	}
}
