// Package session owns the state of one mirrored workspace: the file tree,
// open tabs, plan trackers, confirmations and remote errors. Everything it
// owns is mutated on a single event-loop goroutine; transports and request
// completions post work onto that loop.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/grovetools/mirror/errors"
	"github.com/grovetools/mirror/internal/telemetry"
	"github.com/grovetools/mirror/pkg/channel"
	"github.com/grovetools/mirror/pkg/confirm"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/grovetools/mirror/pkg/plan"
	"github.com/grovetools/mirror/pkg/reconcile"
	"github.com/grovetools/mirror/pkg/request"
	"github.com/grovetools/mirror/pkg/tabs"
	"github.com/grovetools/mirror/pkg/workspace"
	"github.com/grovetools/mirror/state"
	"github.com/sirupsen/logrus"
)

const (
	taskQueueSize = 256
	// maxPendingBatches bounds the file batches held back until the initial
	// snapshot lands; the oldest are dropped beyond it.
	maxPendingBatches = 1024
)

// Options configure a Session.
type Options struct {
	// Workspace identifies the mirrored server in persisted state and
	// telemetry, typically its base URL.
	Workspace string
	Plan      plan.Options
	Ignore    []string
	// Store persists tabs across sessions. Optional.
	Store  state.Store
	Logger *logrus.Entry

	// Hooks run on the event loop.
	OnTreeChange func(reconcile.Result)
	OnTracker    func(*plan.Tracker)
	OnError      func(models.ErrorReport)
}

// Session is the session-scoped context object. Accessors that return
// owned components (Tree, Tabs, Orchestrator, Confirmations, Errors) must
// only be used on the event loop, i.e. inside Do or a hook.
type Session struct {
	svc    request.Service
	bus    channel.Bus
	opts   Options
	logger *logrus.Entry

	tasks    chan func()
	stop     chan struct{}
	loopDone chan struct{}
	closing  atomic.Bool

	dispatcher *request.Dispatcher

	mu   sync.Mutex
	subs []channel.Subscription

	closeOnce sync.Once
	started   atomic.Bool

	// loop-owned
	reconciler *reconcile.Reconciler
	tabs       *tabs.Manager
	orch       *plan.Orchestrator
	confirms   *confirm.Queue
	errs       *ErrorRegistry
	saved      models.TabState
	pending    []models.FileEvent
	restored   bool
}

// New creates a session and starts its event loop. Call Start to begin
// mirroring and Close to tear it down.
func New(svc request.Service, bus channel.Bus, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Session{
		svc:      svc,
		bus:      bus,
		opts:     opts,
		logger:   logger.WithField("workspace", opts.Workspace),
		tasks:    make(chan func(), taskQueueSize),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
		tabs:     tabs.NewManager(logger.WithField("part", "tabs")),
		confirms: confirm.NewQueue(logger.WithField("part", "confirm")),
		errs:     NewErrorRegistry(),
	}
	s.dispatcher = request.NewDispatcher(s.post, logger.WithField("part", "request"))
	s.orch = plan.NewOrchestrator(executor{s}, opts.Plan, logger.WithField("part", "plan"))

	go s.loop()
	return s
}

// Start subscribes to every session topic, loads persisted tabs and issues
// the initial fetch-models and fetch-files requests. The session is closed
// when ctx is cancelled.
func (s *Session) Start(ctx context.Context) error {
	if s.closing.Load() {
		return errors.New(errors.ErrCodeInvalidInput, "session is closed")
	}
	if !s.started.CompareAndSwap(false, true) {
		return errors.New(errors.ErrCodeInvalidInput, "session already started")
	}

	var saved models.TabState
	if s.opts.Store != nil {
		st, err := s.opts.Store.Load(s.opts.Workspace)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to load saved tabs")
		} else {
			saved = st
		}
	}

	s.post(func() { s.saved = saved })

	s.mu.Lock()
	for _, topic := range models.SessionTopics {
		topic := topic
		s.subs = append(s.subs, s.bus.Subscribe(topic, func(payload any) {
			s.post(func() {
				if s.closing.Load() {
					return
				}
				s.handle(topic, payload)
			})
		}))
	}
	s.mu.Unlock()

	request.Go(s.dispatcher, request.CallFetchModels, s.svc.FetchModels, func(ms []models.Model, err error) {
		if err != nil {
			s.logger.WithError(err).Warn("Failed to fetch models")
			s.recordError("models", err)
			return
		}
		s.orch.HandleModels(ms)
	})
	request.Go(s.dispatcher, request.CallFetchFiles, s.svc.FetchFiles, func(root models.DirectoryPayload, err error) {
		if err != nil {
			s.logger.WithError(err).Warn("Failed to fetch files")
			s.recordError("files", err)
			return
		}
		s.loadTree(root)
	})

	context.AfterFunc(ctx, func() {
		if err := s.Close(); err != nil {
			s.logger.WithError(err).Warn("Session close failed")
		}
	})
	s.logger.Info("Session started")
	return nil
}

// Do runs fn on the event loop and waits for it. It must not be called
// from the loop itself.
func (s *Session) Do(fn func()) error {
	done := make(chan struct{})
	if !s.post(func() {
		defer close(done)
		fn()
	}) {
		return errors.New(errors.ErrCodeInvalidInput, "session is closed")
	}
	select {
	case <-done:
		return nil
	case <-s.loopDone:
		return errors.New(errors.ErrCodeInvalidInput, "session is closed")
	}
}

// Close cancels every outstanding request, removes every subscription,
// stops the loop and saves the open tabs. It is idempotent.
func (s *Session) Close() error {
	var saveErr error
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.dispatcher.CancelAll()

		s.mu.Lock()
		for _, sub := range s.subs {
			sub.Unsubscribe()
		}
		s.subs = nil
		s.mu.Unlock()

		var snapshot models.TabState
		var save bool
		final := make(chan struct{})
		if s.post(func() {
			defer close(final)
			s.orch.Close()
			snapshot = s.tabs.Snapshot()
			save = s.restored
		}) {
			<-final
		}
		close(s.stop)
		<-s.loopDone

		if s.opts.Store != nil && save {
			if err := s.opts.Store.Save(s.opts.Workspace, snapshot); err != nil {
				saveErr = err
			}
		}
		s.logger.Info("Session closed")
	})
	return saveErr
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closing.Load()
}

// Outstanding returns the number of requests still running.
func (s *Session) Outstanding() int {
	return s.dispatcher.Outstanding()
}

// Subscriptions returns the number of live channel subscriptions.
func (s *Session) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Tree returns the mirrored tree, or nil before the initial snapshot.
func (s *Session) Tree() *workspace.Tree {
	if s.reconciler == nil {
		return nil
	}
	return s.reconciler.Tree()
}

// Tabs returns the tab manager.
func (s *Session) Tabs() *tabs.Manager { return s.tabs }

// Orchestrator returns the plan orchestrator.
func (s *Session) Orchestrator() *plan.Orchestrator { return s.orch }

// Confirmations returns the confirmation queue.
func (s *Session) Confirmations() *confirm.Queue { return s.confirms }

// Errors returns the error registry.
func (s *Session) Errors() *ErrorRegistry { return s.errs }

// Pending returns the number of file batches waiting for the snapshot.
func (s *Session) Pending() int { return len(s.pending) }

// post queues fn on the loop. It reports false once the loop has stopped.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.stop:
		return false
	default:
	}
	select {
	case s.tasks <- fn:
		return true
	case <-s.stop:
		return false
	}
}

func (s *Session) loop() {
	defer close(s.loopDone)
	for {
		select {
		case fn := <-s.tasks:
			s.run(fn)
		case <-s.stop:
			return
		}
	}
}

// run executes one task; a panicking task is logged and the loop carries on.
func (s *Session) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("Event loop task panicked")
			s.recordError("internal", fmt.Errorf("panic: %v", r))
		}
	}()
	fn()
}

func (s *Session) handle(topic models.Topic, payload any) {
	log := s.logger.WithField("topic", topic)

	switch topic {
	case models.TopicFile:
		batch, err := channel.DecodeFileEvent(payload)
		if err != nil {
			log.WithError(err).Debug("Dropping malformed file batch")
			return
		}
		if s.reconciler == nil {
			s.pending = append(s.pending, batch)
			if len(s.pending) > maxPendingBatches {
				s.pending = s.pending[1:]
				log.Warn("Pending file batches exceeded limit; dropped oldest")
			}
			return
		}
		s.reconciler.Apply(batch)

	case models.TopicModels:
		ms, err := channel.Decode[[]models.Model](topic, payload)
		if err != nil {
			log.WithError(err).Debug("Dropping malformed models payload")
			return
		}
		s.orch.HandleModels(ms)

	case models.TopicErrors:
		rep, err := channel.Decode[models.ErrorReport](topic, payload)
		if err != nil {
			log.WithError(err).Debug("Dropping malformed error report")
			return
		}
		s.report(rep)

	case models.TopicPlanOverview, models.TopicPlanApply, models.TopicPlanCancel:
		u, err := channel.Decode[models.TrackerUpdate](topic, payload)
		if err != nil {
			log.WithError(err).Debug("Dropping malformed tracker update")
			return
		}
		if err := s.orch.HandleTracker(topic, u); err != nil {
			log.WithError(err).Debug("Ignoring tracker update")
			return
		}
		if s.opts.OnTracker != nil {
			s.opts.OnTracker(s.orch.Tracker(topic))
		}
	}
}

// loadTree installs the initial snapshot, restores saved tabs against it
// and replays the file batches that arrived first, in arrival order.
func (s *Session) loadTree(root models.DirectoryPayload) {
	if s.reconciler != nil {
		return
	}
	tree := workspace.NewTree(root, workspace.WithIgnore(s.opts.Ignore))
	s.reconciler = reconcile.New(tree, s.tabs, s.logger.WithField("part", "reconcile"))
	s.reconciler.OnRefresh(func(res reconcile.Result) {
		s.tabs.Revalidate()
		if s.opts.OnTreeChange != nil {
			s.opts.OnTreeChange(res)
		}
	})

	s.tabs.Restore(s.saved, tree.Files())
	s.restored = true

	pending := s.pending
	s.pending = nil
	s.logger.WithFields(logrus.Fields{
		"nodes":    tree.Len(),
		"replayed": len(pending),
	}).Info("Workspace tree loaded")
	for _, batch := range pending {
		s.reconciler.Apply(batch)
	}
	if len(pending) == 0 && s.opts.OnTreeChange != nil {
		s.opts.OnTreeChange(reconcile.Result{})
	}
}

func (s *Session) report(rep models.ErrorReport) {
	key := s.errs.Record(rep)
	rep, _ = s.errs.Get(key)
	s.logger.WithFields(logrus.Fields{"key": key}).Warn(rep.Message)
	telemetry.CaptureReport(s.opts.Workspace, rep)
	if s.opts.OnError != nil {
		s.opts.OnError(rep)
	}
}

func (s *Session) recordError(key string, err error) {
	key = s.errs.RecordError(key, err)
	if s.opts.OnError != nil {
		rep, _ := s.errs.Get(key)
		s.opts.OnError(rep)
	}
}
