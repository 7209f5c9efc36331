package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultQueueSize bounds pending utterances.
const DefaultQueueSize = 8

// Job is one queued utterance.
type Job struct {
	ID   string
	Text string
	Lang string
}

// Outcome reports a finished Job.
type Outcome struct {
	Job      Job
	Err      error
	Duration time.Duration
}

// Queue speaks jobs one at a time on a worker goroutine so callers never
// block on audio output.
type Queue struct {
	synth   Synthesizer
	timeout time.Duration
	done    func(Outcome)
	log     *slog.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan Job
	wg     sync.WaitGroup
}

// NewQueue creates a Queue. Each job gets at most timeout to finish. done,
// when non-nil, is called from the worker after every job.
func NewQueue(synth Synthesizer, size int, timeout time.Duration, done func(Outcome), logger *slog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		synth:   synth,
		timeout: timeout,
		done:    done,
		log:     logger,
		jobs:    make(chan Job, size),
	}
}

// Start launches the worker. It stops when ctx is done or Close is called.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-q.jobs:
				if !ok {
					return
				}
				q.run(ctx, job)
			}
		}
	}()
}

func (q *Queue) run(ctx context.Context, job Job) {
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	start := time.Now()
	err := q.synth.Speak(ctx, job.Text, job.Lang)
	out := Outcome{Job: job, Err: err, Duration: time.Since(start)}

	if err != nil {
		q.log.Warn("speech synthesis failed", "id", job.ID, "lang", job.Lang, "error", err)
	}
	if q.done != nil {
		q.done(out)
	}
}

// Enqueue adds a job without blocking. It returns false when the queue is
// full or closed.
func (q *Queue) Enqueue(job Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	select {
	case q.jobs <- job:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued jobs.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Close stops accepting jobs, lets the worker drain the queue and waits
// for it to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
