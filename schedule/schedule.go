// Package schedule sends messages to agents on cron schedules.
//
// A Scheduler only enqueues: each firing calls SendMessage on the runtime and
// publishes the resulting PendingResult on Results. The owner of the runtime
// keeps driving it (for example with Drive on each published result), so
// scheduled work is delivered by the same single logical thread as
// everything else.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/engine"
	"github.com/hupe1980/agentrt/logging"
)

// Sender enqueues messages. *engine.Engine and *agentrt.Runtime implement it.
type Sender interface {
	SendMessage(payload any, recipient core.AgentID, optFns ...func(o *engine.SendOptions)) (*core.PendingResult, error)
}

// Job describes one recurring message.
type Job struct {
	// Name identifies the job in logs and results.
	Name string

	// Spec is a cron expression ("*/5 * * * *") or descriptor ("@hourly",
	// "@every 30s").
	Spec string

	// Recipient receives the message.
	Recipient core.AgentID

	// Payload builds the message for each firing.
	Payload func() any
}

// Fired reports one firing of a job.
type Fired struct {
	Job    string
	At     time.Time
	Result *core.PendingResult
	Err    error
}

// Options configures a Scheduler.
type Options struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Location interprets cron specs. Defaults to time.Local.
	Location *time.Location

	// Seconds enables an optional leading seconds field in cron specs.
	Seconds bool

	// Buffer is the capacity of the Results channel. Defaults to 16.
	Buffer int
}

// Scheduler runs jobs on their cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	sender  Sender
	logger  logging.Logger
	results chan Fired

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
	manual  sync.WaitGroup
}

// New creates an idle Scheduler sending through sender.
func New(sender Sender, optFns ...func(o *Options)) *Scheduler {
	opts := Options{
		Logger:   logging.NoOpLogger{},
		Location: time.Local,
		Buffer:   16,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	cl := cronLogger{opts.Logger}

	cronOpts := []cron.Option{
		cron.WithLocation(opts.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	}

	if opts.Seconds {
		cronOpts = append(cronOpts, cron.WithParser(cron.NewParser(
			cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor,
		)))
	}

	return &Scheduler{
		cron:    cron.New(cronOpts...),
		sender:  sender,
		logger:  opts.Logger,
		results: make(chan Fired, opts.Buffer),
		done:    make(chan struct{}),
	}
}

// Add registers job and returns its entry ID.
func (s *Scheduler) Add(job Job) (cron.EntryID, error) {
	if job.Payload == nil {
		return 0, fmt.Errorf("schedule %q: nil payload builder", job.Name)
	}

	if !job.Recipient.Valid() {
		return 0, fmt.Errorf("schedule %q: %w", job.Name, core.ErrInvalidAgentID)
	}

	id, err := s.cron.AddFunc(job.Spec, func() { s.fire(job) })
	if err != nil {
		return 0, fmt.Errorf("schedule %q: invalid spec %q: %w", job.Name, job.Spec, err)
	}

	s.logger.Debug("job scheduled", "job", job.Name, "spec", job.Spec, "recipient", job.Recipient)

	return id, nil
}

// Remove unregisters a job.
func (s *Scheduler) Remove(id cron.EntryID) { s.cron.Remove(id) }

// Next returns the next activation time of a job, or the zero time if the
// scheduler is not running or the job is unknown.
func (s *Scheduler) Next(id cron.EntryID) time.Time { return s.cron.Entry(id).Next }

// Results delivers one Fired per job firing. It is closed by Stop.
func (s *Scheduler) Results() <-chan Fired { return s.results }

// Start begins firing jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits until ctx is done for running firings,
// including those started by RunNow. Results is closed once no firing can
// publish anymore, even if ctx expires first and its error is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.done)
	s.mu.Unlock()

	drained := make(chan struct{})

	go func() {
		<-s.cron.Stop().Done()
		s.manual.Wait()
		close(s.results)
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow fires the job registered under id immediately, outside its
// schedule, on the calling goroutine. It reports false for unknown IDs and
// after Stop.
func (s *Scheduler) RunNow(id cron.EntryID) bool {
	e := s.cron.Entry(id)
	if !e.Valid() {
		return false
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.manual.Add(1)
	s.mu.Unlock()

	defer s.manual.Done()

	e.WrappedJob.Run()

	return true
}

func (s *Scheduler) fire(job Job) {
	select {
	case <-s.done:
		return
	default:
	}

	f := Fired{Job: job.Name, At: time.Now()}
	f.Result, f.Err = s.sender.SendMessage(job.Payload(), job.Recipient)

	if f.Err != nil {
		s.logger.Warn("scheduled send failed", "job", job.Name, "recipient", job.Recipient, "error", f.Err)
	} else {
		s.logger.Debug("scheduled message enqueued", "job", job.Name, "recipient", job.Recipient, "msg_id", f.Result.ID())
	}

	select {
	case s.results <- f:
	case <-s.done:
		s.logger.Warn("scheduler stopped, result dropped", "job", job.Name)
	}
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
