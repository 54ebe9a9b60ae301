package glrender

import (
	"sync"

	"github.com/soypat/sdfgraph"
	"github.com/soypat/sdfgraph/catalog"
	"github.com/soypat/sdfgraph/glbuild"
)

// Result is a shader compiled off the render goroutine, stamped with the
// version of the graph it was compiled from.
type Result struct {
	Stamp  uint64
	Shader glbuild.CompiledShader
}

type compileJob struct {
	stamp uint64
	g     sdfgraph.Graph
}

// AsyncCompiler compiles graph snapshots on a worker goroutine. Submissions
// overwrite any pending submission so only the latest graph gets compiled.
// Results are delivered on [AsyncCompiler.Results] and should be installed with
// [Runtime.Apply] to discard stale ones.
type AsyncCompiler struct {
	reg     *catalog.Registry
	mu      sync.Mutex
	pending *compileJob
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	results chan Result
	wg      sync.WaitGroup
}

// NewAsyncCompiler starts a worker compiling against reg. Call Close to stop it.
func NewAsyncCompiler(reg *catalog.Registry) *AsyncCompiler {
	ac := &AsyncCompiler{
		reg:     reg,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		results: make(chan Result, 1),
	}
	ac.wg.Add(1)
	go ac.run()
	return ac
}

// Submit queues g for compilation, replacing any submission not yet picked up.
// g must be a snapshot not modified after Submit, see [sdfgraph.Scene.Snapshot].
// Submit never blocks and does nothing after Close.
func (ac *AsyncCompiler) Submit(stamp uint64, g sdfgraph.Graph) {
	ac.mu.Lock()
	if ac.closed {
		ac.mu.Unlock()
		return
	}
	ac.pending = &compileJob{stamp: stamp, g: g}
	ac.mu.Unlock()
	select {
	case ac.wake <- struct{}{}:
	default: // Worker already signaled.
	}
}

// Results returns the channel compile results are delivered on. Unreceived
// results are replaced by newer ones.
func (ac *AsyncCompiler) Results() <-chan Result { return ac.results }

// Close stops the worker and waits for it to exit.
func (ac *AsyncCompiler) Close() {
	ac.mu.Lock()
	if ac.closed {
		ac.mu.Unlock()
		return
	}
	ac.closed = true
	ac.pending = nil
	ac.mu.Unlock()
	close(ac.done)
	ac.wg.Wait()
}

func (ac *AsyncCompiler) run() {
	defer ac.wg.Done()
	programmer := glbuild.NewDefaultProgrammer()
	for {
		select {
		case <-ac.done:
			return
		case <-ac.wake:
		}
		ac.mu.Lock()
		job := ac.pending
		ac.pending = nil
		ac.mu.Unlock()
		if job == nil {
			continue
		}
		res := Result{Stamp: job.stamp, Shader: programmer.Compile(ac.reg, &job.g)}
		// Drop an unreceived older result. This goroutine is the only sender
		// so the send below cannot block.
		select {
		case <-ac.results:
		default:
		}
		ac.results <- res
	}
}
