package testutils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Chichichkin/CloudWatchShipper/internal/logging"
)

// PutRequest records one PutBatch call made against the mock sink.
type PutRequest struct {
	Group  string
	Stream string
	Events []logging.LogEvent
}

type MockSinkClient struct {
	mu sync.Mutex

	ExistingStreams []string
	DescribeCalls   int
	CreateCalls     int
	PutRequests     []PutRequest
	CloseCalls      int

	DescribeErr error
	CreateErr   error
	PutErr      error
	Delay       time.Duration
}

func (m *MockSinkClient) DescribeStreams(_ context.Context, _, namePrefix string) ([]string, error) {
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.DescribeCalls++
	if m.DescribeErr != nil {
		return nil, m.DescribeErr
	}

	var matching []string
	for _, name := range m.ExistingStreams {
		if strings.HasPrefix(name, namePrefix) {
			matching = append(matching, name)
		}
	}
	return matching, nil
}

func (m *MockSinkClient) CreateStream(_ context.Context, _, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if m.CreateErr != nil {
		return m.CreateErr
	}

	m.ExistingStreams = append(m.ExistingStreams, name)
	return nil
}

func (m *MockSinkClient) PutBatch(_ context.Context, group, stream string, events []logging.LogEvent) error {
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PutErr != nil {
		return m.PutErr
	}

	m.PutRequests = append(m.PutRequests, PutRequest{Group: group, Stream: stream, Events: events})
	return nil
}

func (m *MockSinkClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}

func (m *MockSinkClient) GetPutRequests() []PutRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PutRequest(nil), m.PutRequests...)
}

// SubmittedMessages flattens every delivered batch into one message list,
// preserving submission order.
func (m *MockSinkClient) SubmittedMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var messages []string
	for _, request := range m.PutRequests {
		for _, event := range request.Events {
			messages = append(messages, event.Message)
		}
	}
	return messages
}

func (m *MockSinkClient) SetPutErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutErr = err
}

type MockEnqueuer struct {
	mu       sync.Mutex
	Records  []map[string]any
	AckCalls int
}

func (m *MockEnqueuer) Enqueue(record map[string]any, ack func()) {
	m.mu.Lock()
	m.Records = append(m.Records, record)
	m.mu.Unlock()

	if ack != nil {
		ack()
		m.mu.Lock()
		m.AckCalls++
		m.mu.Unlock()
	}
}

func (m *MockEnqueuer) GetRecords() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.Records...)
}

func CreateTempLogStructure(t *testing.T) string {
	tempDir := t.TempDir()

	structure := map[string]string{
		"api/access.log":       "GET /healthz 200\nGET /v1/items 200\n",
		"api/error.log":        "upstream timeout\n",
		"worker/worker.log":    "job 42 started\njob 42 finished\n",
		"worker/archive.txt":   "not a log file\n",
		"scheduler/cron.log":   "tick\n",
		"scheduler/notes.json": "{}\n",
	}

	for path, content := range structure {
		fullPath := filepath.Join(tempDir, path)
		dir := filepath.Dir(fullPath)

		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory %s: %v", dir, err)
		}

		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write file %s: %v", fullPath, err)
		}
	}

	return tempDir
}

// AppendLine appends a line to an existing log file, for tests that need new
// content to arrive while a file is being tailed.
func AppendLine(t *testing.T, path, line string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("Failed to open %s for append: %v", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, line); err != nil {
		t.Fatalf("Failed to append to %s: %v", path, err)
	}
}
