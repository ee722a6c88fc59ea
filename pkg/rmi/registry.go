package rmi

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/photon/pkg/conn"
	"github.com/vango-dev/photon/pkg/protocol"
	"github.com/vango-dev/photon/pkg/variant"
)

const tracerName = "github.com/vango-dev/photon/pkg/rmi"

// MethodList is the built-in method returning the sorted names of every
// registered method.
const MethodList = "rmi.methods"

// Observer is notified after every dispatched call.
type Observer interface {
	ObserveCall(method string, d time.Duration, faulted bool)
}

// Option configures a Registry.
type Option func(*Registry)

// WithTracer sets the tracer used for call spans.
// Default: the global provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) {
		r.tracer = t
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithObserver sets the call observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.observer = o
	}
}

// WithBaseContext sets the context calls received from a connection start
// from. Default: context.Background().
func WithBaseContext(ctx context.Context) Option {
	return func(r *Registry) {
		r.base = ctx
	}
}

// Registry maps method names to bindings and dispatches calls to them.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]*Binding

	tracer   trace.Tracer
	logger   *slog.Logger
	observer Observer
	base     context.Context
}

// NewRegistry creates a registry holding only the built-in methods.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		methods: make(map[string]*Binding),
		base:    context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	if r.logger == nil {
		r.logger = slog.Default().With("component", "rmi")
	}

	r.methods[MethodList] = NewBinding(variant.TypeArray, nil,
		func(context.Context, variant.Array) (*variant.Variant, error) {
			names := r.Methods()
			out := make(variant.Array, len(names))
			for i, name := range names {
				out[i] = variant.NewString(name)
			}
			return variant.NewArrayOf(out), nil
		})
	return r
}

// Register binds name to b. Registering a name twice is an error.
func (r *Registry) Register(name string, b *Binding) error {
	if name == "" {
		return fmt.Errorf("rmi: empty method name")
	}
	if b == nil {
		return fmt.Errorf("rmi: nil binding for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.methods[name]; ok {
		return fmt.Errorf("rmi: method %q already registered", name)
	}
	r.methods[name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, b *Binding) {
	if err := r.Register(name, b); err != nil {
		panic(err)
	}
}

// Lookup returns the binding registered under name.
func (r *Registry) Lookup(name string) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.methods[name]
	return b, ok
}

// Methods returns every registered method name in sorted order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Call dispatches m to its binding. Unknown methods, signature mismatches,
// handler errors and handler panics all become faults.
func (r *Registry) Call(ctx context.Context, m *protocol.RemoteMethodInfo) (res Result) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "rmi "+m.Name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rmi.method", m.Name),
			attribute.String("rmi.return_type", m.ReturnType.String()),
			attribute.Int("rmi.params", len(m.Params)),
		))

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("method panicked",
				"method", m.Name,
				"panic", p,
				"stack", string(debug.Stack()))
			res = Faultf("internal error: %v", p)
		}
		if res.Faulted() {
			span.SetAttributes(attribute.String("rmi.fault", res.FaultMessage()))
			span.SetStatus(codes.Error, res.FaultMessage())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		if r.observer != nil {
			r.observer.ObserveCall(m.Name, time.Since(start), res.Faulted())
		}
	}()

	b, ok := r.Lookup(m.Name)
	if !ok {
		return Fault(FaultMethodNotFound)
	}
	return b.Invoke(ctx, m)
}

// OnRemoteMethodInvoke implements conn.Application. The result is queued as
// a reply on the invoking channel. Inbound call results are accepted and
// ignored.
func (r *Registry) OnRemoteMethodInvoke(c *conn.Conn, inv *conn.Invocation) bool {
	if protocol.IsReturn(inv.Method) {
		r.logger.Debug("unsolicited return ignored", "message_id", inv.Header.MessageID)
		return true
	}

	res := r.Call(WithConn(r.base, c), inv.Method)
	if res.Faulted() {
		r.logger.Debug("call faulted", "method", inv.Method.Name, "fault", res.FaultMessage())
	}
	if err := c.Reply(inv, res.Value, res.Fault); err != nil {
		r.logger.Warn("reply failed", "method", inv.Method.Name, "error", err)
		return false
	}
	return true
}

type connKey struct{}

// WithConn returns a context carrying c.
func WithConn(ctx context.Context, c *conn.Conn) context.Context {
	return context.WithValue(ctx, connKey{}, c)
}

// ConnFromContext returns the connection a call arrived on, or nil.
func ConnFromContext(ctx context.Context) *conn.Conn {
	c, _ := ctx.Value(connKey{}).(*conn.Conn)
	return c
}
