package jsvm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/sakif/jsmemes/internal/executor"
)

// Builder constructs the sandbox a snippet runs in.
//
// WHAT THE SNIPPET CAN SEE:
// A fresh goja runtime carries only the ECMAScript built-ins (Object, Array,
// JSON, Math...). There is no document, window, fetch, require or process to
// begin with. On top of that the builder installs exactly:
//
//	console.log / console.error / console.warn → append to the shared event log
//	setTimeout(fn, ms)                          → schedule fn, ms capped at maxDelay
type Builder struct {
	cfg    Config
	sink   *executor.EventLog
	timers *timerSet
	logger *slog.Logger
}

func newBuilder(cfg Config, sink *executor.EventLog, timers *timerSet, logger *slog.Logger) *Builder {
	return &Builder{cfg: cfg, sink: sink, timers: timers, logger: logger}
}

// Build returns a ready-to-run environment on a new runtime.
func (b *Builder) Build() (*Environment, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(b.cfg.MaxCallStackSize)

	env := &Environment{
		vm:        vm,
		formatter: NewFormatter(vm),
		sink:      b.sink,
		timers:    b.timers,
		maxDelay:  b.cfg.MaxDeferredDelay,
		timeout:   b.cfg.Timeout,
		logger:    b.logger,
	}

	console := vm.NewObject()
	for _, ch := range []executor.Channel{executor.ChannelLog, executor.ChannelError, executor.ChannelWarn} {
		if err := console.Set(string(ch), env.consoleSink(ch)); err != nil {
			return nil, fmt.Errorf("binding console.%s: %w", ch, err)
		}
	}
	if err := vm.Set("console", console); err != nil {
		return nil, fmt.Errorf("binding console: %w", err)
	}
	if err := vm.Set("setTimeout", env.setTimeout); err != nil {
		return nil, fmt.Errorf("binding setTimeout: %w", err)
	}

	return env, nil
}

// Environment is one runtime plus the capabilities bound into it.
//
// goja runtimes are not safe for concurrent use. The snippet body and any
// deferred callbacks it scheduled all take mu before touching vm.
type Environment struct {
	mu        sync.Mutex
	vm        *goja.Runtime
	formatter *Formatter
	sink      *executor.EventLog
	timers    *timerSet
	maxDelay  time.Duration
	timeout   time.Duration
	logger    *slog.Logger

	nextTimerID int64
	// tainted is set once the runtime has been interrupted; pending
	// callbacks are dropped instead of running on it.
	tainted bool
}

// Evaluate runs source as the body of an immediately invoked function and
// returns whatever that function returned.
//
// A JavaScript exception thrown by the body is not a failure: it is written
// to the error channel as its message and the body counts as having returned
// undefined. Only a compile error (*executor.SyntaxError) or an interrupt
// (executor.ErrInterrupted) come back as errors.
func (env *Environment) Evaluate(ctx context.Context, source string) (goja.Value, error) {
	prog, err := goja.Compile("snippet.js", wrapSource(source), false)
	if err != nil {
		return nil, &executor.SyntaxError{Message: err.Error()}
	}

	env.mu.Lock()
	defer env.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		env.vm.Interrupt(context.Cause(ctx))
	})
	val, err := env.vm.RunProgram(prog)
	if !stop() {
		// The interrupt fired (or is firing). Whatever it hit, this runtime
		// may still carry the flag, so nothing else runs on it.
		env.tainted = true
	}

	if err == nil {
		return val, nil
	}

	if exc := asException(err); exc != nil {
		if err := env.recordFault(exc); err != nil {
			return nil, err
		}
		return goja.Undefined(), nil
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		env.tainted = true
		return nil, fmt.Errorf("%w: %v", executor.ErrInterrupted, interrupted.Value())
	}

	return nil, fmt.Errorf("jsvm: running snippet: %w", err)
}

// Render formats v with this environment's formatter. It fails only when an
// interrupt lands while a toJSON method runs.
func (env *Environment) Render(v goja.Value) (string, error) {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.renderOutside(v)
}

// renderOutside formats v from Go code that is not inside a script, where
// an interrupt panic from the formatter has no JavaScript frame to unwind.
// Callers hold mu.
func (env *Environment) renderOutside(v goja.Value) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			interrupted, ok := r.(*goja.InterruptedError)
			if !ok {
				panic(r)
			}
			env.tainted = true
			err = fmt.Errorf("%w: %v", executor.ErrInterrupted, interrupted.Value())
		}
	}()
	return env.formatter.Render(v), nil
}

// wrapSource puts the snippet inside a function so `return` works at the
// top level. The newline before the closing brace keeps a trailing line
// comment from swallowing it.
func wrapSource(source string) string {
	return "(function() {\n" + source + "\n})()"
}

func (env *Environment) consoleSink(ch executor.Channel) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = env.formatter.Render(arg)
		}
		env.sink.Append(ch, args)
		return goja.Undefined()
	}
}

func (env *Environment) setTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(env.vm.NewTypeError("setTimeout: callback is not a function"))
	}

	delay := ClampDelay(delayArg(call.Argument(1)), env.maxDelay)

	id := env.nextTimerID + 1
	if !env.timers.schedule(delay, func() { env.fire(fn, id) }) {
		// The engine is closed: nothing will ever run, so there is no id.
		return goja.Undefined()
	}
	env.nextTimerID = id

	return env.vm.ToValue(id)
}

// fire runs a deferred callback. It may run long after Execute returned;
// its console output still lands in the shared event log.
//
// The callback gets the same Timeout as the snippet body and is also
// interrupted when the engine is closed.
func (env *Environment) fire(fn goja.Callable, id int64) {
	env.mu.Lock()
	defer env.mu.Unlock()

	if env.tainted {
		return
	}

	ctx := env.timers.context()
	if env.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, env.timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, func() {
		env.vm.Interrupt(context.Cause(ctx))
	})
	_, err := fn(goja.Undefined())
	if !stop() {
		env.tainted = true
	}
	if err == nil {
		return
	}

	if exc := asException(err); exc != nil {
		// An interrupt while rendering the fault taints env; nothing else to do.
		_ = env.recordFault(exc)
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		env.tainted = true
	}
	env.logger.Warn("deferred callback failed",
		slog.Int64("timer", id),
		slog.String("error", err.Error()),
	)
}

// asException returns the JavaScript exception behind err, if any. Blowing
// the call stack cap is reported as an uncatchable *goja.StackOverflowError;
// it is treated like any other thrown error.
func asException(err error) *goja.Exception {
	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return &overflow.Exception
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return exc
	}
	return nil
}

// recordFault writes e.message to the error channel, as `catch (e) {
// console.error(e.message) }` would.
// It fails only when an interrupt lands while the message is formatted.
func (env *Environment) recordFault(exc *goja.Exception) error {
	var msg goja.Value
	switch v := exc.Value().(type) {
	case *goja.Object:
		msg = v.Get("message")
	case nil:
		msg = env.vm.ToValue(exc.Error())
	default:
		// throw "plain string" has no message property.
		msg = goja.Undefined()
	}
	rendered, err := env.renderOutside(msg)
	if err != nil {
		return err
	}
	env.sink.Append(executor.ChannelError, []string{rendered})
	return nil
}
