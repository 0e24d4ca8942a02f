package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const DefaultStopTimeout = 2 * time.Second

// Task is a handle to one running or finished search.
type Task struct {
	id      string
	request Request
	cancel  context.CancelFunc
	done    chan struct{}
	latest  atomic.Pointer[Result]
}

func (t *Task) ID() string {
	return t.id
}

// Latest returns the result of the last completed iteration. It can be
// called at any time from any goroutine.
func (t *Task) Latest() Result {
	var r = t.latest.Load()
	if r == nil {
		return Result{}
	}
	return *r
}

// Done is closed when the search goroutine has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel asks the search to stop and returns immediately.
func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.Latest(), nil
	case <-ctx.Done():
		return t.Latest(), ctx.Err()
	}
}

// TaskManager runs at most one search at a time. Starting a search cancels
// the previous one and waits for its goroutine before launching the next.
type TaskManager struct {
	Engine      *Engine
	Logger      zerolog.Logger
	StopTimeout time.Duration

	mu      sync.Mutex
	current *Task
}

func NewTaskManager(engine *Engine, logger zerolog.Logger) *TaskManager {
	return &TaskManager{
		Engine:      engine,
		Logger:      logger,
		StopTimeout: DefaultStopTimeout,
	}
}

func (m *TaskManager) Start(request Request) (*Task, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.stopCurrent(); err != nil {
		return nil, err
	}

	m.Engine.Prepare()
	var ctx, cancel = context.WithCancel(context.Background())
	var task = &Task{
		id:      uuid.NewString(),
		request: request,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.current = task

	var logger = m.Logger.With().Str("task", task.id).Logger()
	logger.Info().
		Str("fen", request.Board.FEN()).
		Int("depth", request.Depth).
		Dur("time", request.TimeBudget).
		Dur("movetime", request.MoveTime).
		Bool("infinite", request.Infinite).
		Int("variety", request.MoveVariety).
		Msg("search-started")

	go func() {
		defer close(task.done)
		defer cancel()
		var result = m.Engine.Search(ctx, request, func(r Result) {
			task.latest.Store(&r)
			if r.Depth > 0 {
				logger.Debug().
					Int("depth", r.Depth).
					Int("score", r.Score).
					Int64("nodes", r.Nodes).
					Stringer("move", r.Move).
					Msg("iteration-complete")
			}
			if request.Progress != nil {
				request.Progress(r)
			}
		})
		var event = logger.Info()
		var msg = "search-finished"
		if ctx.Err() != nil {
			msg = "search-cancelled"
		}
		event.
			Stringer("move", result.Move).
			Int("score", result.Score).
			Int("depth", result.Depth).
			Int64("nodes", result.Nodes).
			Dur("elapsed", result.Elapsed).
			Msg(msg)
	}()

	return task, nil
}

// Cancel stops task without waiting for it. A nil or finished task is ignored.
func (m *TaskManager) Cancel(task *Task) {
	if task != nil {
		task.Cancel()
	}
}

// Current returns the most recently started task, or nil.
func (m *TaskManager) Current() *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Stop cancels the current task and waits for its goroutine to exit.
func (m *TaskManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCurrent()
}

func (m *TaskManager) stopCurrent() error {
	var prev = m.current
	if prev == nil {
		return nil
	}
	prev.Cancel()
	var timeout = m.StopTimeout
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	var timer = time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-prev.done:
		m.current = nil
		return nil
	case <-timer.C:
		m.Logger.Error().Str("task", prev.id).Dur("timeout", timeout).Msg("search-stuck")
		return fmt.Errorf("%w: task %v after %v", ErrSearchStuck, prev.id, timeout)
	}
}

func (t *Task) Request() Request {
	return t.request
}
