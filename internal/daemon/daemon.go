package daemon

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Chichichkin/CloudWatchShipper/internal/logging"
	"github.com/hpcloud/tail"
)

// Service discovers *.log files under a root directory and tails them with a
// fixed worker pool, handing every line to the transport as a structured
// record. It is the local producer side of the shipper; the transport's
// Enqueue never blocks on the network, so workers only wait on file I/O.
type Service struct {
	config        Config
	enqueuer      logging.Enqueuer
	fileQueue     chan string
	workersWg     sync.WaitGroup
	subServicesWg sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	metrics       *Metrics

	seenFiles map[string]struct{}
	seenMutex sync.Mutex
}

type Config struct {
	LogRootPath   string
	ScanInterval  time.Duration
	Workers       int
	FileQueueSize int
	// If > 0, stop tailing a file after this period without new lines
	FileIdleTimeout time.Duration
}

func NewService(ctx context.Context, config Config, enqueuer logging.Enqueuer) *Service {
	nCtx, cancel := context.WithCancel(ctx)

	return &Service{
		config:    config,
		enqueuer:  enqueuer,
		fileQueue: make(chan string, config.FileQueueSize),
		ctx:       nCtx,
		cancel:    cancel,
		metrics: &Metrics{
			FilesQueueCapacity: config.FileQueueSize,
		},
		seenFiles: make(map[string]struct{}),
	}
}

func (s *Service) Start() {
	log.Printf("Starting shipper daemon: workers=%d, queue size=%d, root=%s",
		s.config.Workers, s.config.FileQueueSize, s.config.LogRootPath)

	for i := 0; i < s.config.Workers; i++ {
		s.workersWg.Add(1)
		go s.worker(i)
	}

	s.subServicesWg.Add(1)
	go s.scanner()

	s.subServicesWg.Add(1)
	go s.metricsReporter()

	log.Println("Shipper daemon started")
}

func (s *Service) Stop() {
	log.Println("Stopping shipper daemon...")
	s.cancel()

	s.subServicesWg.Wait()

	close(s.fileQueue)
	s.workersWg.Wait()

	log.Println("Shipper daemon stopped")
}

func (s *Service) worker(id int) {
	defer s.workersWg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker %d panicked: %v", id, r)
		}
	}()

	for {
		select {
		case filePath, ok := <-s.fileQueue:
			if !ok {
				return
			}
			s.metrics.DecQueuedFiles()
			s.metrics.IncWorkersBusy()
			s.processFile(filePath)
			s.metrics.DecWorkersBusy()

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) processFile(filePath string) {
	defer s.metrics.IncFilesProcessed()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("File processing panicked for %s: %v", filePath, r)
			s.metrics.IncFilesFailed()
		}
	}()

	t, err := tail.TailFile(filePath, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     true,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		log.Printf("Failed to tail file %s: %v", filePath, err)
		s.metrics.IncFilesFailed()
		return
	}
	defer t.Cleanup()

	checkTicker := time.NewTicker(1 * time.Second)
	defer checkTicker.Stop()

	lastActivity := time.Now()

	for {
		select {
		case line := <-t.Lines:
			if line == nil {
				continue
			}
			if line.Err != nil {
				log.Printf("Error reading from %s: %v", filePath, line.Err)
				continue
			}

			s.enqueuer.Enqueue(map[string]any{
				"message": line.Text,
				"file":    filePath,
			}, nil)
			s.metrics.IncLinesShipped()
			lastActivity = time.Now()

		case <-checkTicker.C:
			// waking up from blocking line reading to check context status and idle timeout
			if s.config.FileIdleTimeout > 0 && time.Since(lastActivity) > s.config.FileIdleTimeout {
				s.forget(filePath)
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) scanner() {
	defer s.subServicesWg.Done()

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.scanFiles()

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) scanFiles() {
	files, err := s.discoverLogFiles()
	if err != nil {
		log.Printf("Error discovering log files: %v", err)
		return
	}

	for _, file := range files {
		if !s.markSeen(file) {
			continue
		}
		s.metrics.IncFilesDiscovered()

		select {
		case s.fileQueue <- file:
			s.metrics.IncQueuedFiles()
		case <-s.ctx.Done():
			return

		default:
			s.forget(file)
			log.Printf("File queue full (%d/%d), skipping %s",
				len(s.fileQueue), cap(s.fileQueue), file)
		}
	}
}

// markSeen reports whether file was unseen until now. A file released by an
// idle timeout is forgotten and picked up again on a later scan.
func (s *Service) markSeen(file string) bool {
	s.seenMutex.Lock()
	defer s.seenMutex.Unlock()

	if _, ok := s.seenFiles[file]; ok {
		return false
	}
	s.seenFiles[file] = struct{}{}
	return true
}

func (s *Service) forget(file string) {
	s.seenMutex.Lock()
	defer s.seenMutex.Unlock()
	delete(s.seenFiles, file)
}

func (s *Service) metricsReporter() {
	defer s.subServicesWg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics := s.metrics.GetMetricsStamp()
			queueUsage := s.metrics.GetQueueUsage()

			log.Printf(
				"Metrics: workers busy=%d/%d, queue status=%d/%d (%d%%), files=%d/%d, lines shipped=%d",
				metrics.WorkersBusy, s.config.Workers,
				metrics.QueuedFiles, s.config.FileQueueSize, int(queueUsage*100),
				metrics.FilesProcessed, metrics.FilesDiscovered,
				metrics.LinesShipped,
			)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) discoverLogFiles() ([]string, error) {
	var logFiles []string

	err := filepath.Walk(s.config.LogRootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Printf("Error accessing path %s: %v", path, err)
			return nil
		}

		if !info.IsDir() && strings.HasSuffix(info.Name(), ".log") {
			logFiles = append(logFiles, path)
		}
		return nil
	})

	return logFiles, err
}
