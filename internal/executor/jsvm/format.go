package jsvm

import (
	"errors"

	"github.com/dop251/goja"
)

// Formatter turns JavaScript values into the short strings shown in the
// console panel. It is bound to one runtime because objects are rendered
// with that runtime's own JSON.stringify.
type Formatter struct {
	vm        *goja.Runtime
	json      goja.Value
	stringify goja.Callable
}

// NewFormatter captures JSON.stringify from vm before any snippet runs, so a
// snippet that reassigns JSON.stringify can't change how its output renders.
func NewFormatter(vm *goja.Runtime) *Formatter {
	f := &Formatter{vm: vm}
	if obj := vm.Get("JSON"); obj != nil {
		f.json = obj
		if fn, ok := goja.AssertFunction(obj.ToObject(vm).Get("stringify")); ok {
			f.stringify = fn
		}
	}
	return f
}

// Render never fails. Rules, in order:
//
//	null               → null
//	undefined / absent → undefined
//	string             → the string in double quotes, not escaped
//	function           → [Function]
//	object             → JSON.stringify(v, null, 2), or [Object (circular)] if that throws
//	anything else      → String(v)
//
// An interrupt that lands while a toJSON method is running is not a
// rendering failure: Render panics with the *goja.InterruptedError so it
// unwinds the script the same way it would have without the console call.
func (f *Formatter) Render(v goja.Value) (out string) {
	defer func() {
		if r := recover(); r != nil {
			if interrupted, ok := r.(*goja.InterruptedError); ok {
				panic(interrupted)
			}
			out = circularPlaceholder
		}
	}()

	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}

	obj, isObject := v.(*goja.Object)
	if !isObject {
		// Quotes go on as-is: "a"b" stays ambiguous.
		if s, ok := v.Export().(string); ok {
			return `"` + s + `"`
		}
		return v.String()
	}

	if _, ok := goja.AssertFunction(obj); ok {
		return "[Function]"
	}
	return f.renderObject(obj)
}

const circularPlaceholder = "[Object (circular)]"

func (f *Formatter) renderObject(obj *goja.Object) string {
	if f.stringify == nil {
		return circularPlaceholder
	}
	res, err := f.stringify(f.json, obj, goja.Null(), f.vm.ToValue(2))
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			panic(interrupted)
		}
		return circularPlaceholder
	}
	// JSON.stringify yields undefined for values like { toJSON() {} }.
	if res == nil || goja.IsUndefined(res) {
		return "undefined"
	}
	return res.String()
}
