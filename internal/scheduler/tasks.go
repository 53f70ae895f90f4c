package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
)

const TaskNotificationEmail = "notification.email"

// NotificationEmailPayload carries everything the worker needs to mail a
// notification without reading the notifications table again.
type NotificationEmailPayload struct {
	NotificationID string `json:"notificationId"`
	UserID         string `json:"userId"`
	Type           string `json:"type"`
	Message        string `json:"message"`
}

func NewNotificationEmailTask(payload NotificationEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationEmail, data), nil
}

func ParseNotificationEmailPayload(task *asynq.Task) (NotificationEmailPayload, error) {
	var payload NotificationEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationEmailPayload{}, err
	}
	if strings.TrimSpace(payload.UserID) == "" {
		return NotificationEmailPayload{}, fmt.Errorf("notification email task %s: missing user id", payload.NotificationID)
	}
	return payload, nil
}
