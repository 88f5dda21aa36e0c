package memory

import (
	"context"
	"sync"
	"time"

	"github.com/agentloop/agentloop/core"
	"github.com/agentloop/agentloop/logging"
)

// UpdaterOptions configure the background updater.
type UpdaterOptions struct {
	// Workers is the number of goroutines draining the queue.
	Workers int
	// QueueSize bounds pending jobs. Enqueue drops when full.
	QueueSize int
	// JobTimeout caps the processing time of a single job.
	JobTimeout time.Duration
	// Logger receives lifecycle and failure events.
	Logger logging.Logger
}

type updateJob struct {
	userID   string
	messages []core.Message
}

// Updater writes conversation facts to long-term memory off the turn's
// critical path. Enqueue never blocks and failures are logged, not surfaced:
// a lost memory write must not fail a turn.
type Updater struct {
	service Service
	jobs    chan updateJob
	timeout time.Duration
	logger  logging.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewUpdater starts the worker pool.
func NewUpdater(service Service, optFns ...func(o *UpdaterOptions)) *Updater {
	opts := UpdaterOptions{
		Workers:    2,
		QueueSize:  64,
		JobTimeout: 30 * time.Second,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}

	u := &Updater{
		service: service,
		jobs:    make(chan updateJob, opts.QueueSize),
		timeout: opts.JobTimeout,
		logger:  opts.Logger,
	}
	for i := 0; i < opts.Workers; i++ {
		u.wg.Add(1)
		go u.worker()
	}
	return u
}

// Enqueue schedules a memory update. It returns immediately; when the queue
// is full or the updater is closed the job is dropped with a warning.
func (u *Updater) Enqueue(userID string, messages []core.Message) {
	if len(messages) == 0 {
		return
	}
	msgs := make([]core.Message, len(messages))
	copy(msgs, messages)

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		u.logger.Warn("memory.updater.closed", "user_id", userID)
		return
	}
	select {
	case u.jobs <- updateJob{userID: userID, messages: msgs}:
	default:
		u.logger.Warn("memory.updater.queue_full", "user_id", userID)
	}
}

// Close stops accepting jobs and waits for queued work to drain.
func (u *Updater) Close() {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	u.closed = true
	close(u.jobs)
	u.mu.Unlock()
	u.wg.Wait()
}

func (u *Updater) worker() {
	defer u.wg.Done()
	for job := range u.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
		if err := u.service.Add(ctx, job.userID, job.messages); err != nil {
			u.logger.Error("memory.updater.add_failed", "user_id", job.userID, "error", err)
		}
		cancel()
	}
}
