package scripting

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGojaEngine_ContextCancellation(t *testing.T) {
	engine := NewEngine()

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	if _, err := engine.Execute(ctx, "while (true) {}"); err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}

	if _, err := engine.Execute(context.Background(), "1 + 1"); err != nil {
		t.Fatalf("engine should recover after cancellation, got %v", err)
	}
}

func TestGojaEngine_ImmediateCancel(t *testing.T) {
	engine := NewEngine()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Execute(ctx, "42"); err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled error, got %v", err)
	}
}

type fakeField struct{ v interface{} }

func (f *fakeField) GetValue() interface{}  { return f.v }
func (f *fakeField) SetValue(v interface{}) { f.v = v }

type fakeDOM struct {
	fields map[string]*fakeField
	alerts []string
}

func (d *fakeDOM) GetField(name string) (FieldProxy, error) {
	f, ok := d.fields[name]
	if !ok {
		return nil, errors.New("no such field")
	}
	return f, nil
}

func (d *fakeDOM) Alert(msg string) { d.alerts = append(d.alerts, msg) }

func newDOM() *fakeDOM {
	return &fakeDOM{fields: map[string]*fakeField{
		"a":     {v: "2"},
		"b":     {v: 3.5},
		"c":     {v: ""},
		"total": {v: ""},
	}}
}

func TestCalculateSimple(t *testing.T) {
	tests := []struct {
		script string
		want   float64
	}{
		{`AFSimple_Calculate("SUM", new Array("a", "b", "c"));`, 5.5},
		{`AFSimple_Calculate("PRD", "a, b");`, 7},
		{`AFSimple_Calculate("AVG", ["a", "b"]);`, 2.75},
		{`AFSimple_Calculate("MAX", ["a", "b", "missing"]);`, 3.5},
		{`event.value = AFMakeNumber(getField("a").value) * 10;`, 20},
	}
	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			e := NewEngine()
			if err := e.RegisterDOM(newDOM()); err != nil {
				t.Fatal(err)
			}
			v, rc, err := e.Calculate(context.Background(), tt.script, "")
			if err != nil || !rc {
				t.Fatalf("Calculate: %v rc=%v", err, rc)
			}
			var got float64
			switch n := v.(type) {
			case int64:
				got = float64(n)
			case float64:
				got = n
			default:
				t.Fatalf("value %v (%T)", v, v)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateRejectAndSideEffects(t *testing.T) {
	dom := newDOM()
	e := NewEngine()
	if err := e.RegisterDOM(dom); err != nil {
		t.Fatal(err)
	}
	_, rc, err := e.Calculate(context.Background(), `getField("total").value = "x"; app.alert("hi"); event.rc = false;`, "old")
	if err != nil {
		t.Fatal(err)
	}
	if rc {
		t.Errorf("rc should be false")
	}
	if dom.fields["total"].v != "x" {
		t.Errorf("setter not called: %v", dom.fields["total"].v)
	}
	if len(dom.alerts) != 1 || dom.alerts[0] != "hi" {
		t.Errorf("alerts = %v", dom.alerts)
	}
}

func TestCalculateScriptError(t *testing.T) {
	e := NewEngine()
	if _, _, err := e.Calculate(context.Background(), `undefinedFunction()`, ""); err == nil {
		t.Fatal("expected a ReferenceError")
	}
}
