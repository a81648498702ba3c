package daemon

import (
	"sync"
)

type Metrics struct {
	FilesDiscovered    int
	FilesProcessed     int
	FilesFailed        int
	QueuedFiles        int
	FilesQueueCapacity int
	WorkersBusy        int
	LinesShipped       int
	mu                 sync.RWMutex
}

func (m *Metrics) IncFilesDiscovered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilesDiscovered++
}

func (m *Metrics) IncFilesProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilesProcessed++
}

func (m *Metrics) IncFilesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilesFailed++
}

func (m *Metrics) IncQueuedFiles() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueuedFiles++
}

func (m *Metrics) DecQueuedFiles() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueuedFiles--
}

func (m *Metrics) IncWorkersBusy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WorkersBusy++
}

func (m *Metrics) DecWorkersBusy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WorkersBusy--
}

func (m *Metrics) IncLinesShipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinesShipped++
}

func (m *Metrics) GetMetricsStamp() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		FilesDiscovered:    m.FilesDiscovered,
		FilesProcessed:     m.FilesProcessed,
		FilesFailed:        m.FilesFailed,
		QueuedFiles:        m.QueuedFiles,
		FilesQueueCapacity: m.FilesQueueCapacity,
		WorkersBusy:        m.WorkersBusy,
		LinesShipped:       m.LinesShipped,
	}
}

func (m *Metrics) GetQueueUsage() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FilesQueueCapacity == 0 {
		return 0
	}
	return float64(m.QueuedFiles) / float64(m.FilesQueueCapacity)
}
