package worker

import (
	"context"
	"fmt"
	"strconv"

	"newsdesk/pkg/kafka"
	"newsdesk/pkg/logging"
)

// maxTaskAttempts caps redelivery of one task through the durable queue.
// Anything past this goes to the dead letter topic.
const maxTaskAttempts = 3

// taskProducer is the slice of kafka.Producer the task queue needs.
type taskProducer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KafkaDispatcher publishes tasks to a Kafka topic instead of running them
// in process. Tasks survive restarts and are retried on consumer failure.
type KafkaDispatcher struct {
	producer taskProducer
	topic    string
	logger   logging.Logger
}

func NewKafkaDispatcher(producer *kafka.Producer, topic string, logger logging.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{producer: producer, topic: topic, logger: logger}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	payload, err := task.Encode()
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	// Key by content so all tasks for one item land on one partition and
	// run in order.
	key := []byte(task.Params.ContentID)
	if len(key) == 0 {
		key = []byte(task.TaskID)
	}

	err = d.producer.Produce(ctx, d.topic, key, payload, map[string]string{
		"content_id": task.Params.ContentID,
		"task_id":    task.TaskID,
		"attempt":    strconv.Itoa(task.Attempt),
	})
	if err != nil {
		return fmt.Errorf("dispatch task to kafka: %w", err)
	}

	d.logger.WithField("task_id", task.TaskID).Debug("Task dispatched to kafka")
	return nil
}

// TaskConsumer drains the task topic into a Worker. Undecodable and
// exhausted tasks are routed to the dead letter topic so one poison message
// never wedges the partition.
type TaskConsumer struct {
	consumer  *kafka.Consumer
	producer  taskProducer
	worker    *Worker
	taskTopic string
	dlqTopic  string
	logger    logging.Logger
}

func NewTaskConsumer(consumer *kafka.Consumer, producer *kafka.Producer, w *Worker, taskTopic, dlqTopic string, logger logging.Logger) *TaskConsumer {
	tc := &TaskConsumer{
		consumer:  consumer,
		producer:  producer,
		worker:    w,
		taskTopic: taskTopic,
		dlqTopic:  dlqTopic,
		logger:    logger,
	}
	consumer.AddHandler(taskTopic, tc.handle)
	return tc
}

func (tc *TaskConsumer) Start(ctx context.Context) error {
	return tc.consumer.Start(ctx)
}

func (tc *TaskConsumer) handle(ctx context.Context, msg kafka.Message) error {
	task, err := DecodeTask(msg.Value)
	if err != nil {
		tc.logger.WithError(err).Warn("Dropping undecodable task to dead letter topic")
		tc.deadLetter(ctx, msg, err)
		return nil
	}

	if attempt, ok := msg.Headers["attempt"]; ok {
		if n, err := strconv.Atoi(attempt); err == nil {
			task.Attempt = n
		}
	}
	if task.Attempt >= maxTaskAttempts {
		tc.logger.WithField("task_id", task.TaskID).
			Warn("Task exhausted its attempts, moving to dead letter topic")
		tc.deadLetter(ctx, msg, fmt.Errorf("task exceeded %d attempts", maxTaskAttempts))
		return nil
	}

	// Execute reports and advances the queue itself, so an error here means
	// the task crashed before finishing. Redeliver it with a bumped attempt
	// and commit the original offset either way.
	if err := tc.worker.Execute(ctx, task); err != nil {
		tc.redeliver(ctx, msg, task, err)
	}
	return nil
}

// redeliver hands a crashed task back to the task topic with Attempt+1, or to
// the dead letter topic once it has burned through maxTaskAttempts.
func (tc *TaskConsumer) redeliver(ctx context.Context, msg kafka.Message, task Task, cause error) {
	task.Attempt++
	if task.Attempt >= maxTaskAttempts {
		tc.logger.WithError(cause).WithField("task_id", task.TaskID).
			Warn("Task crashed on its final attempt, moving to dead letter topic")
		tc.deadLetter(ctx, msg, cause)
		return
	}

	payload, err := task.Encode()
	if err != nil {
		tc.logger.WithError(err).Error("Failed to re-encode task for retry")
		tc.deadLetter(ctx, msg, cause)
		return
	}

	headers := map[string]string{
		"content_id": task.Params.ContentID,
		"task_id":    task.TaskID,
		"attempt":    strconv.Itoa(task.Attempt),
	}
	if err := tc.producer.Produce(ctx, tc.taskTopic, msg.Key, payload, headers); err != nil {
		tc.logger.WithError(err).WithField("task_id", task.TaskID).
			Error("Failed to redeliver crashed task")
		return
	}
	tc.logger.WithFields(logging.Fields{
		"task_id": task.TaskID,
		"attempt": task.Attempt,
	}).Warn("Task crashed, redelivered for another attempt")
}

func (tc *TaskConsumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if tc.producer == nil || tc.dlqTopic == "" {
		return
	}

	payload, err := kafka.EncodeDLQMessage(msg, cause, "herald-tasks")
	if err != nil {
		tc.logger.WithError(err).Error("Failed to encode dead letter message")
		return
	}
	if err := tc.producer.Produce(ctx, tc.dlqTopic, msg.Key, payload, msg.Headers); err != nil {
		tc.logger.WithError(err).Error("Failed to produce dead letter message")
	}
}
