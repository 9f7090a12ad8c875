package worker

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"newsdesk/internal/models"
)

// TaskAction names the background work a task carries.
type TaskAction string

const (
	// ActionPublish runs the publish pipeline for one content item.
	ActionPublish TaskAction = "publish"
	// ActionKickQueue admits the next queued item without publishing
	// anything itself.
	ActionKickQueue TaskAction = "kick_queue"
)

// Task is the envelope handed to the background worker. The chat reference
// tells the worker where the outcome report goes; the attempt counter lets a
// durable transport cap redelivery.
type Task struct {
	TaskID  string         `json:"task_id"`
	Action  TaskAction     `json:"action"`
	Params  TaskParams     `json:"params"`
	Chat    models.ChatRef `json:"chat"`
	Attempt int            `json:"attempt"`
}

type TaskParams struct {
	ContentID string `json:"content_id"`
}

// NewPublishTask builds a publish task for one item, reporting into ref.
func NewPublishTask(contentID string, ref models.ChatRef) Task {
	return Task{
		TaskID: uuid.NewString(),
		Action: ActionPublish,
		Params: TaskParams{ContentID: contentID},
		Chat:   ref,
	}
}

func (t Task) Validate() error {
	switch t.Action {
	case ActionPublish:
		if t.Params.ContentID == "" {
			return fmt.Errorf("task %s: publish task without content_id", t.TaskID)
		}
	case ActionKickQueue:
	default:
		return fmt.Errorf("task %s: unknown action %q", t.TaskID, t.Action)
	}
	return nil
}

func (t Task) Encode() ([]byte, error) {
	return json.Marshal(t)
}

func DecodeTask(data []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}
