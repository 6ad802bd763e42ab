package scripting

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
)

// GojaEngine is an Engine on top of goja. It is not safe for concurrent
// use; create one per calculation pass.
type GojaEngine struct {
	vm *goja.Runtime
}

func NewEngine() *GojaEngine {
	vm := goja.New()
	if _, err := vm.RunString(prelude); err != nil {
		panic(fmt.Sprintf("scripting prelude: %v", err))
	}
	return &GojaEngine{vm: vm}
}

func (e *GojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	val, err := e.run(ctx, script)
	if err != nil {
		return nil, err
	}
	return val.Export(), nil
}

func (e *GojaEngine) run(ctx context.Context, script string) (goja.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.vm.RunString(script)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return val, nil
}

func (e *GojaEngine) Calculate(ctx context.Context, script string, current interface{}) (interface{}, bool, error) {
	event := e.vm.NewObject()
	if err := event.Set("value", current); err != nil {
		return nil, false, err
	}
	if err := event.Set("rc", true); err != nil {
		return nil, false, err
	}
	if err := e.vm.Set("event", event); err != nil {
		return nil, false, err
	}
	if _, err := e.run(ctx, script); err != nil {
		return nil, false, err
	}
	rc := event.Get("rc")
	return event.Get("value").Export(), rc == nil || rc.ToBoolean(), nil
}

func (e *GojaEngine) RegisterDOM(dom FormDOM) error {
	app := e.vm.NewObject()
	err := app.Set("alert", func(call goja.FunctionCall) goja.Value {
		msg := ""
		if len(call.Arguments) > 0 {
			msg = call.Arguments[0].String()
		}
		dom.Alert(msg)
		return goja.Undefined()
	})
	if err != nil {
		return err
	}
	if err := e.vm.Set("app", app); err != nil {
		return err
	}

	// Document methods are global, as if 'this' were the Doc.
	return e.vm.Set("getField", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		field, err := dom.GetField(call.Arguments[0].String())
		if err != nil || field == nil {
			return goja.Null()
		}
		obj := e.vm.NewObject()
		obj.DefineAccessorProperty("value",
			e.vm.ToValue(func(goja.FunctionCall) goja.Value {
				return e.vm.ToValue(field.GetValue())
			}),
			e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
				if len(call.Arguments) > 0 {
					field.SetValue(call.Arguments[0].Export())
				}
				return goja.Undefined()
			}),
			goja.FLAG_TRUE,
			goja.FLAG_TRUE,
		)
		return obj
	})
}
