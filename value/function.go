package value

import "github.com/cpodariu/jlrs/memory"

// Function is a value known to be a foreign function. It exists so symbol
// resolution can hand back something directly callable.
type Function struct {
	Value
}

// AsFunction wraps a value without checking its datatype; resolution paths
// that already know the value is callable use this.
func AsFunction(v Value) Function {
	return Function{Value: v}
}

// Callable returns the bridge callable for this function.
func (f Function) Callable() Callable {
	return Callable{kind: callableFunction, fn: f.Value}
}

// Call invokes the function with positional arguments.
func (f Function) Call(t memory.Target, args ...Value) (CallResult, error) {
	return f.Callable().Call(t, args...)
}

// CallTracked invokes the function through the borrow-checked bridge.
func (f Function) CallTracked(t memory.Target, args ...Value) (CallResult, error) {
	return f.Callable().CallTracked(t, args...)
}
