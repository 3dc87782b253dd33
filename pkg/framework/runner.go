package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

type named struct {
	Runnable
	name string
}

func (n named) Name() string {
	return n.name
}

// NamedRun attaches a name to a Runnable for the Runner logs.
func NamedRun(name string, runnable Runnable) Runnable {
	return named{Runnable: runnable, name: name}
}

func nameOf(r Runnable, index int) string {
	if n, ok := r.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("#%d", index)
}

type result struct {
	name string
	err  error
}

// Runner starts Runnables on their own goroutines and collects what they
// return.
type Runner struct {
	ctx     context.Context
	started int
	results chan result
	forced  chan struct{}
}

// NewRunner creates a Runner on context.Background.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a Runner whose Runnables get ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		ctx:     ctx,
		results: make(chan result),
		forced:  make(chan struct{}),
	}
}

// Context is what the Runnables get.
func (r *Runner) Context() context.Context {
	return r.ctx
}

// HandleSignals makes SIGINT and SIGTERM stop the Runnables. It must be
// called before Go. A second signal gives up waiting: Wait returns
// ErrForcedExit.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.ctx)
	r.ctx = ctx
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigs)
		for n := 0; n < 2; n++ {
			sig := <-sigs
			if n == 0 {
				glog.Infof("%v: stopping", sig)
				cancel()
				continue
			}
			glog.Errorf("%v: still stopping, giving up", sig)
			close(r.forced)
		}
	}()
	return r
}

// Go starts runnables.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	for _, run := range runnables {
		name := nameOf(run, r.started)
		r.started++
		glog.V(4).Infof("runner %s: start", name)
		go r.run(name, run)
	}
	return r
}

func (r *Runner) run(name string, run Runnable) {
	err := run.Run(r.ctx)
	glog.V(4).Infof("runner %s: exit %v", name, err)
	select {
	case r.results <- result{name: name, err: err}:
	case <-r.forced:
	}
}

// Wait blocks until every started Runnable returned. Errors other than
// cancellation are aggregated.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for n := 0; n < r.started; n++ {
		select {
		case <-r.forced:
			return ErrForcedExit
		case res := <-r.results:
			if res.err == nil || errors.Is(res.err, context.Canceled) {
				continue
			}
			glog.Warningf("runner %s: %v", res.name, res.err)
			errs.Add(res.err)
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel adapts a blocking fn without a context. When ctx
// is done onCancel must make fn return, and ctx.Err() is returned.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}
	if onCancel != nil {
		onCancel()
	}
	<-done
	return ctx.Err()
}

// RunWithContextCloser is RunWithContextCancel closing closer on cancel.
// closer is closed exactly once either way.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var once sync.Once
	closeOnce := func() { once.Do(func() { closer.Close() }) }
	defer closeOnce()
	return RunWithContextCancel(ctx, closeOnce, fn)
}
