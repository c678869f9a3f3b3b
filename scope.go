package bootstrap

import (
	"context"
	"time"

	"github.com/GoCodeAlone/bootstrap/profiling"
)

// begin starts a profiling scope that cannot break the runtime. A profiler
// that panics or returns no scope, and a scope that panics in Fail or End,
// are logged and ignored.
func (r *CoreRuntime) begin(ctx context.Context, name string) (context.Context, profiling.Scope) {
	var (
		scopeCtx context.Context
		scope    profiling.Scope
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Warn("Profiler panicked starting scope", "scope", name, "panic", p)
			}
		}()
		scopeCtx, scope = r.profiler.Begin(ctx, name)
	}()
	if scopeCtx == nil {
		scopeCtx = ctx
	}
	return scopeCtx, &guardedScope{name: name, scope: scope, logger: r.logger}
}

type guardedScope struct {
	name   string
	scope  profiling.Scope
	logger Logger
}

func (g *guardedScope) Name() string { return g.name }

func (g *guardedScope) Fail(err error) {
	g.call("fail", func() { g.scope.Fail(err) })
}

func (g *guardedScope) Failed() bool {
	var failed bool
	g.call("failed", func() { failed = g.scope.Failed() })
	return failed
}

func (g *guardedScope) End() time.Duration {
	var elapsed time.Duration
	g.call("end", func() { elapsed = g.scope.End() })
	return elapsed
}

func (g *guardedScope) call(op string, fn func()) {
	if isNil(g.scope) {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			g.logger.Warn("Profiling scope panicked", "scope", g.name, "op", op, "panic", p)
		}
	}()
	fn()
}
