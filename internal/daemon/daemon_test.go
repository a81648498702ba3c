package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Chichichkin/CloudWatchShipper/internal/testutils"
	"github.com/stretchr/testify/assert"
)

const defaultScanInterval = 10 * time.Millisecond

func makeTestConfig(root string) Config {
	return Config{
		LogRootPath:   root,
		ScanInterval:  defaultScanInterval,
		Workers:       2,
		FileQueueSize: 10,
	}
}

func TestService_DiscoverLogFiles(t *testing.T) {
	tempDir := testutils.CreateTempLogStructure(t)
	s := NewService(context.Background(), makeTestConfig(tempDir), &testutils.MockEnqueuer{})

	files, err := s.discoverLogFiles()

	assert.NoError(t, err)
	assert.Equal(t, 4, len(files))
	for _, file := range files {
		assert.Equal(t, ".log", filepath.Ext(file))
	}
}

func TestService_ScanDedupesSeenFiles(t *testing.T) {
	tempDir := testutils.CreateTempLogStructure(t)
	s := NewService(context.Background(), makeTestConfig(tempDir), &testutils.MockEnqueuer{})

	s.scanFiles()
	s.scanFiles()

	stamp := s.metrics.GetMetricsStamp()
	assert.Equal(t, 4, stamp.FilesDiscovered)
	assert.Equal(t, 4, stamp.QueuedFiles)
	assert.Equal(t, 4, len(s.fileQueue))
}

func TestService_QueueFullSkipsFile(t *testing.T) {
	tempDir := testutils.CreateTempLogStructure(t)
	config := makeTestConfig(tempDir)
	config.FileQueueSize = 2
	s := NewService(context.Background(), config, &testutils.MockEnqueuer{})

	s.scanFiles()

	assert.Equal(t, 2, len(s.fileQueue))
	// Skipped files are forgotten so a later scan can retry them.
	s.seenMutex.Lock()
	seen := len(s.seenFiles)
	s.seenMutex.Unlock()
	assert.Equal(t, 2, seen)
}

func TestService_ContextCancellation(t *testing.T) {
	tempDir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	s := NewService(ctx, makeTestConfig(tempDir), &testutils.MockEnqueuer{})
	s.Start()

	cancel()
	time.Sleep(20 * time.Millisecond)

	select {
	case <-s.ctx.Done():
	default:
		t.Fatalf("service context not cancelled")
	}

	s.Stop()
}

func TestService_TailedLinesReachEnqueuer(t *testing.T) {
	tempDir := testutils.CreateTempLogStructure(t)
	enqueuer := &testutils.MockEnqueuer{}
	config := makeTestConfig(tempDir)
	config.Workers = 4
	s := NewService(context.Background(), config, enqueuer)
	s.Start()
	defer s.Stop()

	// Wait for the scanner to hand the files to the tailing workers, then
	// append fresh lines (tailing starts at end of file).
	time.Sleep(300 * time.Millisecond)
	logFile := filepath.Join(tempDir, "api", "access.log")
	testutils.AppendLine(t, logFile, "GET /v1/orders 201")

	assert.Eventually(t, func() bool {
		for _, record := range enqueuer.GetRecords() {
			if record["message"] == "GET /v1/orders 201" {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)
}

func TestService_StartStop(t *testing.T) {
	tempDir := testutils.CreateTempLogStructure(t)
	s := NewService(context.Background(), makeTestConfig(tempDir), &testutils.MockEnqueuer{})

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()
}
