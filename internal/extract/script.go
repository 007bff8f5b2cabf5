package extract

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// evalTimeout bounds how long a state literal may take to evaluate
const evalTimeout = 250 * time.Millisecond

// evalLiteral evaluates a JavaScript array/object literal in an empty VM and
// exports it to Go values. The VM has no host bindings, so the literal cannot
// reach anything outside itself.
func evalLiteral(src string) (result any, err error) {
	vm := goja.New()

	timer := time.AfterFunc(evalTimeout, func() {
		vm.Interrupt("state literal evaluation timed out")
	})
	defer timer.Stop()

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("state literal evaluation panicked: %v", r)
		}
	}()

	val, err := vm.RunString("(" + src + "\n)")
	if err != nil {
		return nil, err
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, fmt.Errorf("state literal evaluated to %v", val)
	}
	return val.Export(), nil
}
