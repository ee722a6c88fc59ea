package rmi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/photon/pkg/conn"
	"github.com/vango-dev/photon/pkg/protocol"
	"github.com/vango-dev/photon/pkg/variant"
)

type counterKey struct{}

// plusIfNotZero concatenates prefix, n and suffix and counts successful
// calls in the *int stored in ctx.
func plusIfNotZero(ctx context.Context, prefix string, n int32, suffix string) (string, error) {
	if n == 0 {
		return "", errors.New("A should not be 0")
	}
	if counter, ok := ctx.Value(counterKey{}).(*int); ok {
		*counter++
	}
	return fmt.Sprint(prefix, n, suffix), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBindingInvoke(t *testing.T) {
	b := Func3(plusIfNotZero)

	tests := []struct {
		name      string
		method    *protocol.RemoteMethodInfo
		wantValue *variant.Variant
		wantFault string
		wantCount int
	}{
		{
			name:      "success",
			method:    protocol.NewRemoteMethod(variant.TypeString, "plus", variant.NewString("Hello "), variant.NewInt32(333), variant.NewString(" world")),
			wantValue: variant.NewString("Hello 333 world"),
			wantCount: 2,
		},
		{
			name:      "handler_error",
			method:    protocol.NewRemoteMethod(variant.TypeString, "plus", variant.NewString("Hello "), variant.NewInt32(0), variant.NewString(" world")),
			wantFault: "A should not be 0",
			wantCount: 1,
		},
		{
			name:      "parameter_type",
			method:    protocol.NewRemoteMethod(variant.TypeString, "plus", variant.NewString("Hello "), variant.NewInt32(333), variant.NewInt32(1)),
			wantFault: FaultParameterMismatch,
			wantCount: 1,
		},
		{
			name:      "arity",
			method:    protocol.NewRemoteMethod(variant.TypeString, "plus", variant.NewString("Hello "), variant.NewInt32(333)),
			wantFault: FaultSignatureMismatch,
			wantCount: 1,
		},
		{
			name:      "return_type",
			method:    protocol.NewRemoteMethod(variant.TypeUint32, "plus", variant.NewString("Hello "), variant.NewInt32(333), variant.NewString(" world")),
			wantFault: FaultSignatureMismatch,
			wantCount: 1,
		},
		{
			name:      "null_parameter",
			method:    protocol.NewRemoteMethod(variant.TypeString, "plus", variant.NewString("Hello "), nil, variant.NewString(" world")),
			wantFault: FaultParameterMismatch,
			wantCount: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			counter := 1
			ctx := context.WithValue(context.Background(), counterKey{}, &counter)

			res := b.Invoke(ctx, tc.method)
			if tc.wantFault != "" {
				if !res.Faulted() {
					t.Fatalf("expected fault %q, got value %s", tc.wantFault, res.Value)
				}
				if got := res.FaultMessage(); got != tc.wantFault {
					t.Errorf("fault = %q, want %q", got, tc.wantFault)
				}
				if !res.Value.IsNull() {
					t.Errorf("faulted value = %s, want Null", res.Value)
				}
			} else {
				if res.Faulted() {
					t.Fatalf("unexpected fault %q", res.FaultMessage())
				}
				if !variant.Equal(res.Value, tc.wantValue) {
					t.Errorf("value = %s, want %s", res.Value, tc.wantValue)
				}
			}
			if counter != tc.wantCount {
				t.Errorf("counter = %d, want %d", counter, tc.wantCount)
			}
		})
	}
}

func TestTypedBindingSignatures(t *testing.T) {
	tests := []struct {
		name   string
		b      *Binding
		ret    variant.Type
		params []variant.Type
	}{
		{"void", Func0(func(context.Context) (Void, error) { return Void{}, nil }), variant.TypeVoid, nil},
		{"bytes", Func1(func(_ context.Context, b []byte) (uint64, error) { return uint64(len(b)), nil }),
			variant.TypeUint64, []variant.Type{variant.TypeByteArray}},
		{"collections", Func2(func(_ context.Context, a variant.Array, kv variant.KVArray) (int64, error) { return 0, nil }),
			variant.TypeInt64, []variant.Type{variant.TypeArray, variant.TypeKVArray}},
		{"narrow", Func4(func(_ context.Context, a int8, b uint8, c int16, d uint16) (uint32, error) { return 0, nil }),
			variant.TypeUint32, []variant.Type{variant.TypeInt8, variant.TypeUint8, variant.TypeInt16, variant.TypeUint16}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.b.ReturnType(); got != tc.ret {
				t.Errorf("ReturnType = %s, want %s", got, tc.ret)
			}
			got := tc.b.ParamTypes()
			if len(got) != len(tc.params) {
				t.Fatalf("ParamTypes = %v, want %v", got, tc.params)
			}
			for i := range got {
				if got[i] != tc.params[i] {
					t.Errorf("param %d = %s, want %s", i, got[i], tc.params[i])
				}
			}
		})
	}
}

func TestVoidBinding(t *testing.T) {
	called := false
	b := Func1(func(_ context.Context, s string) (Void, error) {
		called = s == "x"
		return Void{}, nil
	})
	res := b.Invoke(context.Background(), protocol.NewRemoteMethod(variant.TypeVoid, "v", variant.NewString("x")))
	if !called {
		t.Fatal("handler not called")
	}
	if res.Faulted() || !res.Value.IsNull() {
		t.Errorf("result = (%s, %s), want (Null, Null)", res.Value, res.Fault)
	}
}

func TestUntypedBindingReturnCheck(t *testing.T) {
	b := NewBinding(variant.TypeString, nil, func(context.Context, variant.Array) (*variant.Variant, error) {
		return variant.NewUint8(1), nil
	})
	res := b.Invoke(context.Background(), protocol.NewRemoteMethod(variant.TypeString, "s"))
	if !res.Faulted() {
		t.Fatalf("expected fault, got %s", res.Value)
	}
}

type observation struct {
	method  string
	faulted bool
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (o *recordingObserver) ObserveCall(method string, _ time.Duration, faulted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obs = append(o.obs, observation{method, faulted})
}

func TestRegistryCall(t *testing.T) {
	obs := &recordingObserver{}
	reg := NewRegistry(WithLogger(quietLogger()), WithObserver(obs))
	reg.MustRegister("plus", Func3(plusIfNotZero))
	reg.MustRegister("panic", Func0(func(context.Context) (Void, error) { panic("boom") }))

	if err := reg.Register("plus", Func3(plusIfNotZero)); err == nil {
		t.Error("duplicate Register should fail")
	}
	if err := reg.Register("", Func3(plusIfNotZero)); err == nil {
		t.Error("empty name should fail")
	}

	ctx := context.Background()
	res := reg.Call(ctx, protocol.NewRemoteMethod(variant.TypeString, "plus",
		variant.NewString("a"), variant.NewInt32(1), variant.NewString("b")))
	if res.Faulted() || res.Value.Str() != "a1b" {
		t.Errorf("plus = (%s, %s)", res.Value, res.Fault)
	}

	res = reg.Call(ctx, protocol.NewRemoteMethod(variant.TypeVoid, "missing"))
	if res.FaultMessage() != FaultMethodNotFound {
		t.Errorf("missing fault = %q", res.FaultMessage())
	}

	res = reg.Call(ctx, protocol.NewRemoteMethod(variant.TypeVoid, "panic"))
	if res.FaultMessage() != "internal error: boom" {
		t.Errorf("panic fault = %q", res.FaultMessage())
	}

	want := []observation{{"plus", false}, {"missing", true}, {"panic", true}}
	if len(obs.obs) != len(want) {
		t.Fatalf("observations = %v, want %v", obs.obs, want)
	}
	for i := range want {
		if obs.obs[i] != want[i] {
			t.Errorf("observation %d = %v, want %v", i, obs.obs[i], want[i])
		}
	}
}

func TestRegistryMethodList(t *testing.T) {
	reg := NewRegistry(WithLogger(quietLogger()))
	reg.MustRegister("b", Func0(func(context.Context) (Void, error) { return Void{}, nil }))
	reg.MustRegister("a", Func0(func(context.Context) (Void, error) { return Void{}, nil }))

	res := reg.Call(context.Background(), protocol.NewRemoteMethod(variant.TypeArray, MethodList))
	if res.Faulted() {
		t.Fatalf("fault: %s", res.FaultMessage())
	}
	want := variant.NewArray(variant.NewString("a"), variant.NewString("b"), variant.NewString(MethodList))
	if !variant.Equal(res.Value, want) {
		t.Errorf("methods = %s, want %s", res.Value, want)
	}
}

func TestRegistryOverConnection(t *testing.T) {
	reg := NewRegistry(WithLogger(quietLogger()))
	var seen *conn.Conn
	reg.MustRegister("whoami", Func0(func(ctx context.Context) (string, error) {
		seen = ConnFromContext(ctx)
		return seen.Role().String(), nil
	}))

	cfg := conn.DefaultConfig()
	cfg.RequireHandshake = false
	cfg.Logger = quietLogger()

	var replies []*conn.Invocation
	client := conn.New(conn.RoleClient, conn.ApplicationFunc(func(_ *conn.Conn, inv *conn.Invocation) bool {
		replies = append(replies, inv)
		return true
	}), cfg)
	server := conn.New(conn.RoleServer, reg, cfg)

	calls := []*protocol.RemoteMethodInfo{
		protocol.NewRemoteMethod(variant.TypeString, "whoami"),
		protocol.NewRemoteMethod(variant.TypeString, "nope"),
	}
	var ids []uint16
	for _, m := range calls {
		id, err := client.SendRemoteMethod(0, m)
		if err != nil {
			t.Fatalf("SendRemoteMethod error: %v", err)
		}
		ids = append(ids, id)
	}
	if err := server.OnInboundData(client.TakeOutput()); err != nil {
		t.Fatalf("server error: %v", err)
	}
	if err := client.OnInboundData(server.TakeOutput()); err != nil {
		t.Fatalf("client error: %v", err)
	}

	if seen != server {
		t.Error("handler did not receive the serving connection")
	}
	if len(replies) != 2 {
		t.Fatalf("replies = %d, want 2", len(replies))
	}
	for i, inv := range replies {
		if inv.Header.MessageID != ids[i] {
			t.Errorf("reply %d id = %d, want %d", i, inv.Header.MessageID, ids[i])
		}
	}

	value, fault, err := protocol.ParseReturn(replies[0].Method)
	if err != nil || value.Str() != "server" || !fault.IsNull() {
		t.Errorf("whoami reply = (%s, %s, %v)", value, fault, err)
	}
	value, fault, err = protocol.ParseReturn(replies[1].Method)
	if err != nil || !value.IsNull() || fault.Str() != FaultMethodNotFound {
		t.Errorf("nope reply = (%s, %s, %v)", value, fault, err)
	}

	// A return arriving at the registry is accepted without a reply.
	if err := client.Reply(&conn.Invocation{ChannelID: 0}, variant.NewUint8(1), nil); err != nil {
		t.Fatalf("Reply error: %v", err)
	}
	if err := server.OnInboundData(client.TakeOutput()); err != nil {
		t.Fatalf("server error on return: %v", err)
	}
	if server.HasOutput() {
		t.Error("registry replied to a return")
	}
}

func TestResultErr(t *testing.T) {
	if err := Ok(variant.NewUint8(1)).Err("m"); err != nil {
		t.Errorf("Ok.Err = %v", err)
	}
	err := Fault("bad").Err("m")
	var fe *FaultError
	if !errors.As(err, &fe) || fe.Message != "bad" || fe.Method != "m" {
		t.Fatalf("Fault.Err = %v", err)
	}
	if err.Error() != "rmi: m: fault: bad" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestPanicLogsStack(t *testing.T) {
	var buf bytes.Buffer
	reg := NewRegistry(WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	reg.MustRegister("explode", Func0(func(context.Context) (Void, error) { panic("boom") }))

	res := reg.Call(context.Background(), protocol.NewRemoteMethod(variant.TypeVoid, "explode"))
	if !res.Faulted() {
		t.Fatal("panicking method should fault")
	}
	out := buf.String()
	for _, want := range []string{`"msg":"method panicked"`, `"method":"explode"`, `"panic":"boom"`, `"stack":"goroutine `} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s:\n%s", want, out)
		}
	}
}
