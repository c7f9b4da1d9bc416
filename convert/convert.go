// Package convert boxes host primitives into foreign values and unboxes
// foreign values back, validating the foreign datatype before every
// unboxing dereference. Box conversions allocate on the foreign heap and
// therefore take a target like every other producing operation.
package convert

import (
	"github.com/cpodariu/jlrs/errs"
	"github.com/cpodariu/jlrs/memory"
	"github.com/cpodariu/jlrs/value"
)

func box(t memory.Target, addr uintptr) (value.Value, error) {
	if addr == 0 {
		return value.Value{}, errs.RuntimeErrorf("runtime error: boxing failed")
	}
	h, err := t.Root(addr)
	if err != nil {
		return value.Value{}, err
	}
	return value.Wrap(h), nil
}

func BoxBool(t memory.Target, v bool) (value.Value, error) {
	t.InvalidateUnrooted()
	return box(t, t.Backend().BoxBool(v))
}

func BoxInt8(t memory.Target, v int8) (value.Value, error) {
	t.InvalidateUnrooted()
	return box(t, t.Backend().BoxInt8(v))
}

func BoxInt16(t memory.Target, v int16) (value.Value, error) {
	t.InvalidateUnrooted()
	return box(t, t.Backend().BoxInt16(v))
}

func BoxInt32(t memory.Target, v int32) (value.Value, error) {
	t.InvalidateUnrooted()
	return box(t, t.Backend().BoxInt32(v))
}

func BoxInt64(t memory.Target, v int64) (value.Value, error) {
	t.InvalidateUnrooted()
	return box(t, t.Backend().BoxInt64(v))
}

func BoxUint8(t memory.Target, v uint8) (value.Value, error) {
	t.InvalidateUnrooted()
	return box(t, t.Backend().BoxUint8(v))
}

func BoxUint16(t memory.Target, v uint16) (value.Value, error) {
	t.InvalidateUnrooted()
	return box(t, t.Backend().BoxUint16(v))
}

func BoxUint32(t memory.Target, v uint32) (value.Value, error) {
	t.InvalidateUnrooted()
	return box(t, t.Backend().BoxUint32(v))
}

func BoxUint64(t memory.Target, v uint64) (value.Value, error) {
	t.InvalidateUnrooted()
	return box(t, t.Backend().BoxUint64(v))
}

func BoxFloat32(t memory.Target, v float32) (value.Value, error) {
	t.InvalidateUnrooted()
	return box(t, t.Backend().BoxFloat32(v))
}

func BoxFloat64(t memory.Target, v float64) (value.Value, error) {
	t.InvalidateUnrooted()
	return box(t, t.Backend().BoxFloat64(v))
}

func BoxString(t memory.Target, s string) (value.Value, error) {
	t.InvalidateUnrooted()
	return box(t, t.Backend().BoxString(s))
}

func checkType(t memory.Target, v value.Value, want string) error {
	got := t.Backend().TypeNameOf(v.Addr())
	if got != want {
		return errs.TypeErrorf("type error: cannot unbox %s as %s", got, want)
	}
	return nil
}

func UnboxBool(t memory.Target, v value.Value) (bool, error) {
	if err := checkType(t, v, "Bool"); err != nil {
		return false, err
	}
	return t.Backend().UnboxBool(v.Addr()), nil
}

func UnboxInt8(t memory.Target, v value.Value) (int8, error) {
	if err := checkType(t, v, "Int8"); err != nil {
		return 0, err
	}
	return t.Backend().UnboxInt8(v.Addr()), nil
}

func UnboxInt16(t memory.Target, v value.Value) (int16, error) {
	if err := checkType(t, v, "Int16"); err != nil {
		return 0, err
	}
	return t.Backend().UnboxInt16(v.Addr()), nil
}

func UnboxInt32(t memory.Target, v value.Value) (int32, error) {
	if err := checkType(t, v, "Int32"); err != nil {
		return 0, err
	}
	return t.Backend().UnboxInt32(v.Addr()), nil
}

func UnboxInt64(t memory.Target, v value.Value) (int64, error) {
	if err := checkType(t, v, "Int64"); err != nil {
		return 0, err
	}
	return t.Backend().UnboxInt64(v.Addr()), nil
}

func UnboxUint8(t memory.Target, v value.Value) (uint8, error) {
	if err := checkType(t, v, "UInt8"); err != nil {
		return 0, err
	}
	return t.Backend().UnboxUint8(v.Addr()), nil
}

func UnboxUint16(t memory.Target, v value.Value) (uint16, error) {
	if err := checkType(t, v, "UInt16"); err != nil {
		return 0, err
	}
	return t.Backend().UnboxUint16(v.Addr()), nil
}

func UnboxUint32(t memory.Target, v value.Value) (uint32, error) {
	if err := checkType(t, v, "UInt32"); err != nil {
		return 0, err
	}
	return t.Backend().UnboxUint32(v.Addr()), nil
}

func UnboxUint64(t memory.Target, v value.Value) (uint64, error) {
	if err := checkType(t, v, "UInt64"); err != nil {
		return 0, err
	}
	return t.Backend().UnboxUint64(v.Addr()), nil
}

func UnboxFloat32(t memory.Target, v value.Value) (float32, error) {
	if err := checkType(t, v, "Float32"); err != nil {
		return 0, err
	}
	return t.Backend().UnboxFloat32(v.Addr()), nil
}

func UnboxFloat64(t memory.Target, v value.Value) (float64, error) {
	if err := checkType(t, v, "Float64"); err != nil {
		return 0, err
	}
	return t.Backend().UnboxFloat64(v.Addr()), nil
}

func UnboxString(t memory.Target, v value.Value) (string, error) {
	if err := checkType(t, v, "String"); err != nil {
		return "", err
	}
	return t.Backend().UnboxString(v.Addr()), nil
}
