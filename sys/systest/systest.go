// Package systest provides an in-process stub implementation of
// sys.Backend with a toy mark/sweep heap. The test suite uses it to
// observe rooting behavior across collections, count foreign call entry
// invocations, and script raised exceptions, without a libjulia install.
package systest

import (
	"unsafe"

	"github.com/cpodariu/jlrs/sys"
)

// Kind identifies the layout of a stub heap object.
type Kind uint8

const (
	KindBool Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindSymbol
	KindModule
	KindFunction
	KindArray
	KindTask
	KindNamedTuple
	KindDataType
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindInt8:
		return "Int8"
	case KindInt16:
		return "Int16"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindUint8:
		return "UInt8"
	case KindUint16:
		return "UInt16"
	case KindUint32:
		return "UInt32"
	case KindUint64:
		return "UInt64"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindString:
		return "String"
	case KindSymbol:
		return "Symbol"
	case KindModule:
		return "Module"
	case KindFunction:
		return "Function"
	case KindArray:
		return "Array"
	case KindTask:
		return "Task"
	case KindNamedTuple:
		return "NamedTuple"
	case KindDataType:
		return "DataType"
	}
	return "Any"
}

// Func is the implementation of a stub callable. It may raise by calling
// Backend.Raise and returning zero.
type Func func(b *Backend, args []uintptr) uintptr

type object struct {
	kind    Kind
	marked  bool
	b       bool
	i       int64
	u       uint64
	f32     float32
	f64     float64
	s       string
	fn      Func
	globals map[string]uintptr
	data    uintptr
	f64s    []float64
	i64s    []int64
	failed  bool
	refs    []uintptr

	// Struct and named tuple layout: field names parallel to refs.
	fieldNames []string
	mutable    bool
}

// Backend is a stub foreign runtime. It is not safe for concurrent use,
// matching the thread-confined contract of the real backend.
type Backend struct {
	heap    map[uintptr]*object
	next    uintptr
	scan    sys.RootScanner
	pending uintptr

	main uintptr
	base uintptr
	core uintptr

	symbols   map[string]uintptr
	sorters   map[uintptr]uintptr
	evals     map[string]Func
	available map[string]uintptr

	// CallCount counts invocations of the call entry points. BorrowError
	// tests assert it stays zero when a checked call is rejected.
	CallCount int

	// CollectCount counts completed collections.
	CollectCount int

	// CollectOnCall forces a full collection at the entry of every call,
	// so anything not reachable from the root stack is reclaimed before
	// the callee runs.
	CollectOnCall bool

	// LastCallee and LastArgs record the exact callee address and
	// marshaled argument buffer of the most recent call.
	LastCallee uintptr
	LastArgs   []uintptr
}

var _ sys.Backend = (*Backend)(nil)

// New returns a stub backend with Main, Base, and Core modules and the
// built-in helpers the task and module layers expect: Base.require,
// Base.istaskdone, Base.fetch, and Main.JlrsGo.asynccall.
func New() *Backend {
	b := &Backend{
		heap:      make(map[uintptr]*object),
		next:      0x1000,
		symbols:   make(map[string]uintptr),
		sorters:   make(map[uintptr]uintptr),
		evals:     make(map[string]Func),
		available: make(map[string]uintptr),
	}
	b.main = b.NewModule("Main")
	b.base = b.NewModule("Base")
	b.core = b.NewModule("Core")
	b.DefineGlobal(b.base, "require", b.NewFunction(builtinRequire))
	b.DefineGlobal(b.base, "istaskdone", b.NewFunction(builtinIsTaskDone))
	b.DefineGlobal(b.base, "fetch", b.NewFunction(builtinFetch))
	helper := b.NewModule("JlrsGo")
	b.DefineGlobal(helper, "asynccall", b.NewFunction(builtinAsyncCall))
	b.DefineGlobal(b.main, "JlrsGo", helper)
	return b
}

func (b *Backend) alloc(kind Kind) (uintptr, *object) {
	addr := b.next
	b.next += 0x10
	obj := &object{kind: kind}
	b.heap[addr] = obj
	return addr, obj
}

// Alive reports whether addr still denotes a heap object, i.e. it has not
// been reclaimed by a collection.
func (b *Backend) Alive(addr uintptr) bool {
	_, ok := b.heap[addr]
	return ok
}

// Raise installs exc as the pending raised object.
func (b *Backend) Raise(exc uintptr) {
	b.pending = exc
}

// NewBool, NewInt64 and friends allocate stub values for tests.

func (b *Backend) NewBool(v bool) uintptr {
	addr, obj := b.alloc(KindBool)
	obj.b = v
	return addr
}

func (b *Backend) NewInt64(v int64) uintptr {
	addr, obj := b.alloc(KindInt64)
	obj.i = v
	return addr
}

func (b *Backend) NewFloat64(v float64) uintptr {
	addr, obj := b.alloc(KindFloat64)
	obj.f64 = v
	return addr
}

func (b *Backend) NewString(s string) uintptr {
	addr, obj := b.alloc(KindString)
	obj.s = s
	return addr
}

// NewFunction registers a callable with the given implementation.
func (b *Backend) NewFunction(fn Func) uintptr {
	addr, obj := b.alloc(KindFunction)
	obj.fn = fn
	return addr
}

// NewStruct allocates a struct-like object with the given type name and
// ordered fields. Immutable structs reject SetField with a raise.
func (b *Backend) NewStruct(typeName string, mutable bool, names []string, values []uintptr) uintptr {
	addr, obj := b.alloc(KindStruct)
	obj.s = typeName
	obj.fieldNames = append([]string(nil), names...)
	obj.refs = append([]uintptr(nil), values...)
	obj.mutable = mutable
	return addr
}

// NewDataType allocates a stub type constructor for ApplyType tests.
func (b *Backend) NewDataType(name string) uintptr {
	addr, obj := b.alloc(KindDataType)
	obj.s = name
	return addr
}

// NewModule allocates an empty module.
func (b *Backend) NewModule(name string) uintptr {
	addr, obj := b.alloc(KindModule)
	obj.s = name
	obj.globals = make(map[string]uintptr)
	return addr
}

// DefineGlobal binds a value in a module. The binding keeps the value
// reachable across collections.
func (b *Backend) DefineGlobal(module uintptr, name string, addr uintptr) {
	b.heap[module].globals[name] = addr
}

// ProvideModule makes a module loadable through Base.require.
func (b *Backend) ProvideModule(name string) uintptr {
	mod := b.NewModule(name)
	b.available[name] = mod
	return mod
}

// OnEval scripts the result of evaluating src.
func (b *Backend) OnEval(src string, fn Func) {
	b.evals[src] = fn
}

// Kind returns the stub kind of a heap object.
func (b *Backend) Kind(addr uintptr) Kind {
	return b.heap[addr].kind
}

func (b *Backend) Init() error { return nil }

func (b *Backend) Shutdown() error { return nil }

func (b *Backend) Version() string { return "1.9.0-systest" }

func (b *Backend) BindRoots(scan sys.RootScanner) error {
	b.scan = scan
	return nil
}

func (b *Backend) invoke(f uintptr, args []uintptr) uintptr {
	b.CallCount++
	b.LastCallee = f
	b.LastArgs = append([]uintptr(nil), args...)
	b.pending = 0
	if b.CollectOnCall {
		b.GCCollect(true)
	}
	fn, ok := b.heap[f]
	if !ok || fn.kind != KindFunction {
		b.Raise(b.NewString("MethodError: object is not callable"))
		return 0
	}
	return fn.fn(b, args)
}

func (b *Backend) Call0(f uintptr) uintptr { return b.invoke(f, nil) }

func (b *Backend) Call1(f, a0 uintptr) uintptr { return b.invoke(f, []uintptr{a0}) }

func (b *Backend) Call2(f, a0, a1 uintptr) uintptr { return b.invoke(f, []uintptr{a0, a1}) }

func (b *Backend) Call3(f, a0, a1, a2 uintptr) uintptr {
	return b.invoke(f, []uintptr{a0, a1, a2})
}

func (b *Backend) Call(f uintptr, args []uintptr) uintptr { return b.invoke(f, args) }

// KwSorter returns a per-callable sorter that expects the keyword bundle
// and the original callable ahead of the positional arguments, matching
// the foreign keyword call convention.
func (b *Backend) KwSorter(f uintptr) uintptr {
	if s, ok := b.sorters[f]; ok {
		return s
	}
	s := b.NewFunction(func(be *Backend, args []uintptr) uintptr {
		if len(args) < 2 {
			be.Raise(be.NewString("kwsorter: malformed argument buffer"))
			return 0
		}
		target, ok := be.heap[args[1]]
		if !ok || target.kind != KindFunction {
			be.Raise(be.NewString("kwsorter: callee is not callable"))
			return 0
		}
		return target.fn(be, args)
	})
	b.sorters[f] = s
	return s
}

func (b *Backend) ExceptionOccurred() uintptr { return b.pending }

func (b *Backend) EvalString(src string) uintptr {
	b.pending = 0
	if fn, ok := b.evals[src]; ok {
		return fn(b, nil)
	}
	return b.NewString(src)
}

func (b *Backend) Symbol(name string) uintptr {
	if addr, ok := b.symbols[name]; ok {
		return addr
	}
	addr, obj := b.alloc(KindSymbol)
	obj.s = name
	b.symbols[name] = addr
	return addr
}

func (b *Backend) MainModule() uintptr { return b.main }

func (b *Backend) BaseModule() uintptr { return b.base }

func (b *Backend) CoreModule() uintptr { return b.core }

func (b *Backend) Global(module uintptr, name string) uintptr {
	mod, ok := b.heap[module]
	if !ok || mod.kind != KindModule {
		return 0
	}
	return mod.globals[name]
}

func (b *Backend) TypeNameOf(v uintptr) string {
	obj := b.heap[v]
	if obj.kind == KindStruct {
		return obj.s
	}
	return obj.kind.String()
}

func (b *Backend) NFields(v uintptr) int {
	return len(b.heap[v].fieldNames)
}

func (b *Backend) FieldName(v uintptr, i int) string {
	obj := b.heap[v]
	if i < 0 || i >= len(obj.fieldNames) {
		return ""
	}
	return obj.fieldNames[i]
}

func (b *Backend) GetField(v uintptr, name string) uintptr {
	b.pending = 0
	obj := b.heap[v]
	for i, fname := range obj.fieldNames {
		if fname == name {
			return obj.refs[i]
		}
	}
	b.Raise(b.NewString("FieldError: type " + b.TypeNameOf(v) + " has no field " + name))
	return 0
}

func (b *Backend) GetNthField(v uintptr, i int) uintptr {
	b.pending = 0
	obj := b.heap[v]
	if i < 0 || i >= len(obj.refs) {
		b.Raise(b.NewString("BoundsError: field index out of range"))
		return 0
	}
	return obj.refs[i]
}

func (b *Backend) SetField(v uintptr, name string, val uintptr) {
	b.pending = 0
	obj := b.heap[v]
	if !obj.mutable {
		b.Raise(b.NewString("ErrorException: setfield!: immutable struct of type " +
			b.TypeNameOf(v) + " cannot be changed"))
		return
	}
	for i, fname := range obj.fieldNames {
		if fname == name {
			obj.refs[i] = val
			return
		}
	}
	b.Raise(b.NewString("FieldError: type " + b.TypeNameOf(v) + " has no field " + name))
}

func (b *Backend) ApplyType(tc uintptr, params []uintptr) uintptr {
	b.pending = 0
	obj := b.heap[tc]
	if obj.kind != KindDataType {
		b.Raise(b.NewString("TypeError: not a type constructor"))
		return 0
	}
	addr, applied := b.alloc(KindDataType)
	applied.s = obj.s
	applied.refs = append([]uintptr(nil), params...)
	return addr
}

func (b *Backend) NewNamedTuple(names []string, values []uintptr) uintptr {
	b.pending = 0
	if len(names) != len(values) {
		b.Raise(b.NewString("ArgumentError: names and values differ in length"))
		return 0
	}
	addr, obj := b.alloc(KindNamedTuple)
	obj.fieldNames = append([]string(nil), names...)
	obj.refs = append([]uintptr(nil), values...)
	return addr
}

func (b *Backend) IsArray(v uintptr) bool {
	obj, ok := b.heap[v]
	return ok && obj.kind == KindArray
}

func (b *Backend) ArrayData(v uintptr) uintptr { return b.heap[v].data }

func (b *Backend) BoxBool(v bool) uintptr { return b.NewBool(v) }

func (b *Backend) BoxInt8(v int8) uintptr {
	addr, obj := b.alloc(KindInt8)
	obj.i = int64(v)
	return addr
}

func (b *Backend) BoxInt16(v int16) uintptr {
	addr, obj := b.alloc(KindInt16)
	obj.i = int64(v)
	return addr
}

func (b *Backend) BoxInt32(v int32) uintptr {
	addr, obj := b.alloc(KindInt32)
	obj.i = int64(v)
	return addr
}

func (b *Backend) BoxInt64(v int64) uintptr { return b.NewInt64(v) }

func (b *Backend) BoxUint8(v uint8) uintptr {
	addr, obj := b.alloc(KindUint8)
	obj.u = uint64(v)
	return addr
}

func (b *Backend) BoxUint16(v uint16) uintptr {
	addr, obj := b.alloc(KindUint16)
	obj.u = uint64(v)
	return addr
}

func (b *Backend) BoxUint32(v uint32) uintptr {
	addr, obj := b.alloc(KindUint32)
	obj.u = uint64(v)
	return addr
}

func (b *Backend) BoxUint64(v uint64) uintptr {
	addr, obj := b.alloc(KindUint64)
	obj.u = v
	return addr
}

func (b *Backend) BoxFloat32(v float32) uintptr {
	addr, obj := b.alloc(KindFloat32)
	obj.f32 = v
	return addr
}

func (b *Backend) BoxFloat64(v float64) uintptr { return b.NewFloat64(v) }

func (b *Backend) BoxString(s string) uintptr { return b.NewString(s) }

func (b *Backend) NewFloat64Array(data []float64, dims []uintptr) uintptr {
	if len(dims) != 1 || int(dims[0]) != len(data) {
		b.Raise(b.NewString("DimensionMismatch: staged extents do not match buffer"))
		return 0
	}
	addr, obj := b.alloc(KindArray)
	obj.f64s = data
	if len(data) > 0 {
		obj.data = uintptr(unsafe.Pointer(&data[0]))
	}
	return addr
}

func (b *Backend) NewInt64Array(data []int64, dims []uintptr) uintptr {
	if len(dims) != 1 || int(dims[0]) != len(data) {
		b.Raise(b.NewString("DimensionMismatch: staged extents do not match buffer"))
		return 0
	}
	addr, obj := b.alloc(KindArray)
	obj.i64s = data
	if len(data) > 0 {
		obj.data = uintptr(unsafe.Pointer(&data[0]))
	}
	return addr
}

func (b *Backend) UnboxBool(v uintptr) bool { return b.heap[v].b }

func (b *Backend) UnboxInt8(v uintptr) int8 { return int8(b.heap[v].i) }

func (b *Backend) UnboxInt16(v uintptr) int16 { return int16(b.heap[v].i) }

func (b *Backend) UnboxInt32(v uintptr) int32 { return int32(b.heap[v].i) }

func (b *Backend) UnboxInt64(v uintptr) int64 { return b.heap[v].i }

func (b *Backend) UnboxUint8(v uintptr) uint8 { return uint8(b.heap[v].u) }

func (b *Backend) UnboxUint16(v uintptr) uint16 { return uint16(b.heap[v].u) }

func (b *Backend) UnboxUint32(v uintptr) uint32 { return uint32(b.heap[v].u) }

func (b *Backend) UnboxUint64(v uintptr) uint64 { return b.heap[v].u }

func (b *Backend) UnboxFloat32(v uintptr) float32 { return b.heap[v].f32 }

func (b *Backend) UnboxFloat64(v uintptr) float64 { return b.heap[v].f64 }

func (b *Backend) UnboxString(v uintptr) string { return b.heap[v].s }

// GCCollect runs a full mark/sweep over the stub heap. Reachability starts
// from the bound root scanner, the pending raised object, the modules, the
// symbol table, and backend-internal helpers.
func (b *Backend) GCCollect(full bool) {
	for _, obj := range b.heap {
		obj.marked = false
	}
	if b.scan != nil {
		b.scan(func(addr uintptr) bool {
			b.mark(addr)
			return true
		})
	}
	b.mark(b.pending)
	b.mark(b.main)
	b.mark(b.base)
	b.mark(b.core)
	for _, addr := range b.symbols {
		b.mark(addr)
	}
	for _, addr := range b.sorters {
		b.mark(addr)
	}
	for _, addr := range b.available {
		b.mark(addr)
	}
	for addr, obj := range b.heap {
		if !obj.marked {
			delete(b.heap, addr)
		}
	}
	b.CollectCount++
}

func (b *Backend) mark(addr uintptr) {
	if addr == 0 {
		return
	}
	obj, ok := b.heap[addr]
	if !ok || obj.marked {
		return
	}
	obj.marked = true
	for _, ref := range obj.refs {
		b.mark(ref)
	}
	for _, global := range obj.globals {
		b.mark(global)
	}
}

func builtinRequire(b *Backend, args []uintptr) uintptr {
	if len(args) != 2 {
		b.Raise(b.NewString("require: expected module and symbol"))
		return 0
	}
	name := b.heap[args[1]].s
	mod, ok := b.available[name]
	if !ok {
		b.Raise(b.NewString("ArgumentError: Package " + name + " not found"))
		return 0
	}
	return mod
}

func builtinIsTaskDone(b *Backend, args []uintptr) uintptr {
	if len(args) != 1 || b.heap[args[0]].kind != KindTask {
		b.Raise(b.NewString("istaskdone: expected a task"))
		return 0
	}
	// Stub tasks complete at schedule time.
	return b.NewBool(true)
}

func builtinFetch(b *Backend, args []uintptr) uintptr {
	if len(args) != 1 || b.heap[args[0]].kind != KindTask {
		b.Raise(b.NewString("fetch: expected a task"))
		return 0
	}
	task := b.heap[args[0]]
	if task.failed {
		b.Raise(task.refs[0])
		return 0
	}
	return task.refs[0]
}

// builtinAsyncCall emulates scheduling on the foreign worker pool by
// running the callable synchronously and capturing its outcome in a task
// object. A raise inside the callable is captured by the task, not left
// pending on the scheduling call.
func builtinAsyncCall(b *Backend, args []uintptr) uintptr {
	if len(args) < 1 {
		b.Raise(b.NewString("asynccall: missing callable"))
		return 0
	}
	fn, ok := b.heap[args[0]]
	if !ok || fn.kind != KindFunction {
		b.Raise(b.NewString("asynccall: not callable"))
		return 0
	}
	taskAddr, task := b.alloc(KindTask)
	res := fn.fn(b, args[1:])
	if b.pending != 0 {
		task.failed = true
		task.refs = []uintptr{b.pending}
		b.pending = 0
	} else {
		task.refs = []uintptr{res}
	}
	return taskAddr
}
