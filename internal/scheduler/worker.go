package scheduler

import (
	"context"
	"fmt"

	"consultation_backend/internal/email"
	"consultation_backend/internal/metrics"
	"consultation_backend/platform/config"
	"consultation_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Recipients resolves the contact details of a notification recipient.
type Recipients interface {
	Email(ctx context.Context, userID string) (string, error)
	DisplayName(ctx context.Context, userID string) (string, error)
}

type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	recipients Recipients
	sender     email.Sender
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, recipients Recipients, sender email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := newWorker(recipients, sender, log)
	w.server = server
	return w, nil
}

func newWorker(recipients Recipients, sender email.Sender, log *logger.Logger) *Worker {
	if sender == nil {
		sender = email.NoopSender{}
	}
	w := &Worker{
		mux:        asynq.NewServeMux(),
		recipients: recipients,
		sender:     sender,
		log:        log,
	}
	w.mux.HandleFunc(TaskNotificationEmail, w.handleNotificationEmail)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleNotificationEmail(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNotificationEmailPayload(task)
	if err != nil {
		metrics.RecordEmail("failed")
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	to, err := w.recipients.Email(ctx, payload.UserID)
	if err != nil {
		return err
	}
	if to == "" {
		metrics.RecordEmail("skipped")
		w.log.Debug("no e-mail address for recipient", "userId", payload.UserID, "notificationId", payload.NotificationID)
		return nil
	}

	name, err := w.recipients.DisplayName(ctx, payload.UserID)
	if err != nil {
		w.log.Warn("recipient name lookup failed", "userId", payload.UserID, "error", err)
		name = ""
	}

	if err := w.sender.SendNotificationEmail(ctx, to, name, payload.Type, payload.Message); err != nil {
		metrics.RecordEmail("failed")
		w.log.DependencyFailure("smtp", "send_notification_email", err)
		return err
	}

	metrics.RecordEmail("sent")
	w.log.Info("notification e-mail sent", "notificationId", payload.NotificationID, "type", payload.Type)
	return nil
}
