package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/mkoberg/signalmarket/internal/pkg/env"
)

// promoteInterval is how often delayed jobs are checked for due time.
const promoteInterval = 5 * time.Second

// Sweep is a periodic reconciliation task registered by a domain package.
// Sweeps run until the manager stops; errors are logged, never fatal.
type Sweep struct {
	Name     string
	Interval time.Duration
	Run      func() error
}

// Manager manages the global job queue and background tasks
type Manager struct {
	queue   *Queue
	sweeps  []Sweep
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 5
		if v, err := strconv.Atoi(env.GetEnv("JOBQUEUE_WORKERS", "5")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// RegisterSweep adds a periodic task to run while the manager is started.
// Must be called before Start.
func (m *Manager) RegisterSweep(name string, interval time.Duration, run func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps = append(m.sweeps, Sweep{Name: name, Interval: interval, Run: run})
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	// Start the job queue
	m.queue.Start()

	// Delayed job promoter
	m.wg.Add(1)
	go m.promoterWorker()

	// Registered reconciliation sweeps
	for _, sweep := range m.sweeps {
		m.wg.Add(1)
		go m.sweepWorker(sweep)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	// Signal background workers to stop
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// promoterWorker moves due delayed jobs into the pending queue
func (m *Manager) promoterWorker() {
	defer m.wg.Done()
	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()
	log.Infof("[JobQueue Manager] Started delayed job promoter (interval: %s)", promoteInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Delayed job promoter stopping")
			return
		case <-ticker.C:
			if err := m.queue.PromoteDueJobs(); err != nil {
				log.Errorf("[JobQueue Manager] Error promoting delayed jobs: %v", err)
			}
		}
	}
}

// sweepWorker runs one registered sweep on its interval
func (m *Manager) sweepWorker(sweep Sweep) {
	defer m.wg.Done()
	ticker := time.NewTicker(sweep.Interval)
	defer ticker.Stop()
	log.Infof("[JobQueue Manager] Started %s sweep (interval: %s)", sweep.Name, sweep.Interval)

	for {
		select {
		case <-m.stopCh:
			log.Infof("[JobQueue Manager] %s sweep stopping", sweep.Name)
			return
		case <-ticker.C:
			if err := sweep.Run(); err != nil {
				log.Errorf("[JobQueue Manager] %s sweep error: %v", sweep.Name, err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
