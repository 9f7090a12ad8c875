package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
)

func recordKey(topic string, partition int32, offset int64) string {
	return fmt.Sprintf("%s:%d:%d", topic, partition, offset)
}

func TestConsumerProcessRecordsBlocksPartitionOnFailure(t *testing.T) {
	consumer := &Consumer{
		logger:   logrus.New(),
		handlers: make(map[string]Handler),
	}

	var handled []string
	consumer.handlers["herald.tasks"] = func(_ context.Context, msg Message) error {
		handled = append(handled, recordKey(msg.Topic, msg.Partition, msg.Offset))
		if msg.Partition == 0 && msg.Offset == 1 {
			return errors.New("handler failure")
		}
		return nil
	}

	records := []*kgo.Record{
		{Topic: "herald.tasks", Partition: 0, Offset: 0},
		{Topic: "herald.tasks", Partition: 0, Offset: 1},
		{Topic: "herald.tasks", Partition: 0, Offset: 2},
		{Topic: "herald.tasks", Partition: 1, Offset: 0},
		{Topic: "herald.tasks", Partition: 1, Offset: 1},
	}

	commitRecords := consumer.processRecords(context.Background(), records)

	// Offset 2 on partition 0 must not run once offset 1 has failed.
	wantHandled := []string{
		recordKey("herald.tasks", 0, 0),
		recordKey("herald.tasks", 0, 1),
		recordKey("herald.tasks", 1, 0),
		recordKey("herald.tasks", 1, 1),
	}
	sort.Strings(handled)
	sort.Strings(wantHandled)
	if len(handled) != len(wantHandled) {
		t.Fatalf("handled records = %v, want %v", handled, wantHandled)
	}
	for i, value := range handled {
		if value != wantHandled[i] {
			t.Fatalf("handled records = %v, want %v", handled, wantHandled)
		}
	}

	commitKeys := make([]string, 0, len(commitRecords))
	for _, record := range commitRecords {
		commitKeys = append(commitKeys, recordKey(record.Topic, record.Partition, record.Offset))
	}
	sort.Strings(commitKeys)

	// Partition 0 commits up to the last success before the failure,
	// partition 1 commits everything.
	wantCommits := []string{
		recordKey("herald.tasks", 0, 0),
		recordKey("herald.tasks", 1, 1),
	}
	sort.Strings(wantCommits)
	if len(commitKeys) != len(wantCommits) {
		t.Fatalf("commit records = %v, want %v", commitKeys, wantCommits)
	}
	for i, value := range commitKeys {
		if value != wantCommits[i] {
			t.Fatalf("commit records = %v, want %v", commitKeys, wantCommits)
		}
	}
}

func TestConsumerProcessRecordsCommitsUnhandledTopics(t *testing.T) {
	consumer := &Consumer{
		logger:   logrus.New(),
		handlers: make(map[string]Handler),
	}

	records := []*kgo.Record{
		{Topic: "unknown.topic", Partition: 0, Offset: 5},
	}

	commitRecords := consumer.processRecords(context.Background(), records)
	if len(commitRecords) != 1 || commitRecords[0].Offset != 5 {
		t.Fatalf("expected unhandled record to be committed, got %v", commitRecords)
	}
}
