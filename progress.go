package udefrag

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ProgressInfo is the immutable snapshot delivered to observers (§4.10,
// §5 "Progress callbacks receive an immutable snapshot"). Callers must not
// mutate it.
type ProgressInfo struct {
	CurrentOperation JobKind

	Files         uint64
	Directories   uint64
	Compressed    uint64
	Fragmented    uint64
	MftSize       uint64

	ClustersToProcess uint64
	ProcessedClusters uint64

	CompletionStatus int
}

// Observer is the capability object of §9's "dynamic dispatch via function
// pointers" note: progress_router, termination_router and
// progress_feedback_callback become three methods on one interface passed
// by reference instead of three raw function pointers.
type Observer interface {
	OnProgress(info ProgressInfo)
	OnFeedback(info ProgressInfo, message string)
	ShouldCancel() bool
}

// NullObserver never cancels and ignores every callback. Useful as a
// default when the caller doesn't need progress reporting.
type NullObserver struct{}

func (NullObserver) OnProgress(ProgressInfo)          {}
func (NullObserver) OnFeedback(ProgressInfo, string)  {}
func (NullObserver) ShouldCancel() bool                { return false }

// progressRouter gates Observer.OnProgress delivery to at most once per
// RefreshInterval, plus unconditionally whenever CompletionStatus != 0
// (§4.10). It also owns the cooperative-cancellation surface: Cancelled(),
// Pause()/SetPaused(), and a TimeLimit-derived automatic cancellation.
type progressRouter struct {
	mu sync.Mutex

	observer        Observer
	refreshInterval time.Duration
	lastDelivered   time.Time

	timeLimit time.Time
	hasLimit  bool

	paused    bool
	pauseCond *sync.Cond

	cancelRequested bool

	eg *errgroup.Group
}

func newProgressRouter(observer Observer, refreshInterval time.Duration, timeLimit time.Duration) *progressRouter {
	if observer == nil {
		observer = NullObserver{}
	}
	if refreshInterval <= 0 {
		refreshInterval = 100 * time.Millisecond
	}

	r := &progressRouter{
		observer:        observer,
		refreshInterval: refreshInterval,
	}
	r.pauseCond = sync.NewCond(&r.mu)

	if timeLimit > 0 {
		r.timeLimit = clockNow().Add(timeLimit)
		r.hasLimit = true
	}

	eg, _ := errgroup.WithContext(context.Background())
	r.eg = eg

	return r
}

// Deliver sends a progress snapshot if the refresh interval has elapsed or
// the operation has completed (CompletionStatus != 0), per §4.10. The
// delivery itself runs through an errgroup so a panicking observer
// surfaces as a terminal error on Wait() instead of crashing the worker
// (§10 domain stack: golang.org/x/sync/errgroup).
func (r *progressRouter) Deliver(info ProgressInfo) {
	r.mu.Lock()
	due := info.CompletionStatus != 0 || clockNow().Sub(r.lastDelivered) >= r.refreshInterval
	if due {
		r.lastDelivered = clockNow()
	}
	r.mu.Unlock()

	if !due {
		return
	}

	r.eg.Go(func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = log.Wrap(rec.(error))
			}
		}()
		r.observer.OnProgress(info)
		return nil
	})
}

// Feedback sends an out-of-band message immediately, bypassing the
// refresh-interval gate (used for phase messages such as "analysis started").
func (r *progressRouter) Feedback(info ProgressInfo, message string) {
	r.eg.Go(func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = log.Wrap(rec.(error))
			}
		}()
		r.observer.OnFeedback(info, message)
		return nil
	})
}

// Wait blocks until every delivered callback has returned (or panicked),
// returning the first error encountered, if any.
func (r *progressRouter) Wait() error {
	return r.eg.Wait()
}

// Cancelled reports whether the run should stop: either the caller's
// terminator returned true, TimeLimit was exceeded, or Cancel() was called
// directly (§4.10, §5).
func (r *progressRouter) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancelRequested {
		return true
	}
	if r.hasLimit && clockNow().After(r.timeLimit) {
		return true
	}

	return r.observer.ShouldCancel()
}

// Cancel forces cancellation regardless of the observer or time limit.
func (r *progressRouter) Cancel() {
	r.mu.Lock()
	r.cancelRequested = true
	r.mu.Unlock()
}

// Pause blocks the calling goroutine until SetPaused(false) is called. Every atomic
// task checks this before issuing an OS-visible move (§4.10, §5).
func (r *progressRouter) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.paused {
		r.pauseCond.Wait()
	}
}

// SetPaused toggles the pause flag.
func (r *progressRouter) SetPaused(paused bool) {
	r.mu.Lock()
	r.paused = paused
	r.mu.Unlock()
	if !paused {
		r.pauseCond.Broadcast()
	}
}
