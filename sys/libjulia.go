//go:build linux || darwin

package sys

import (
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/cpodariu/jlrs/errs"
)

// namedTupleHelper is installed at init. Named tuples have no single C
// entry point; construction goes through this function with alternating
// name strings and values.
const namedTupleHelper = `function __jlrs_namedtuple__(pairs...)
    n = div(length(pairs), 2)
    NamedTuple{ntuple(i -> Symbol(pairs[2i - 1]), n)}(ntuple(i -> pairs[2i], n))
end`

// LibJulia binds a libjulia shared library loaded at runtime. No cgo is
// involved: every entry point is resolved with purego against the library
// handle when the backend is opened.
type LibJulia struct {
	path        string
	handle      uintptr
	logger      zerolog.Logger
	initialized bool

	mainModule uintptr
	baseModule uintptr
	coreModule uintptr
	anyType    uintptr
	f64Type    uintptr
	i64Type    uintptr
	typeofFn   uintptr
	kwcallFn   uintptr

	// Base/Core function values resolved at init. Invoking them through
	// the call entry points keeps raises caught instead of unwinding
	// through the Go frame.
	getfieldFn   uintptr
	setfieldFn   uintptr
	nfieldsFn    uintptr
	fieldnameFn  uintptr
	applyTypeFn  uintptr
	stringFn     uintptr
	namedTupleFn uintptr

	scan   RootScanner
	markCb uintptr

	jlInit              func()
	jlAtexitHook        func(int32)
	jlVerString         func() string
	jlCall0             func(uintptr) uintptr
	jlCall1             func(uintptr, uintptr) uintptr
	jlCall2             func(uintptr, uintptr, uintptr) uintptr
	jlCall3             func(uintptr, uintptr, uintptr, uintptr) uintptr
	jlCall              func(uintptr, unsafe.Pointer, int32) uintptr
	jlExcOccurred       func() uintptr
	jlEvalString        func(string) uintptr
	jlSymbol            func(string) uintptr
	jlGetGlobal         func(uintptr, uintptr) uintptr
	jlSetGlobal         func(uintptr, uintptr, uintptr)
	jlGetKwsorter       func(uintptr) uintptr
	jlTypeofStr         func(uintptr) string
	jlApplyArrayType    func(uintptr, uintptr) uintptr
	jlPtrToArray1d      func(uintptr, unsafe.Pointer, uintptr, int32) uintptr
	jlGcCollect         func(int32)
	jlGcMarkQueueObj    func(uintptr, uintptr) int32
	jlGetPtlsStates     func() uintptr
	jlNewForeignType    func(uintptr, uintptr, uintptr, uintptr, uintptr, int32, int32) uintptr
	jlGcAllocTyped      func(uintptr, uintptr, uintptr) uintptr
	jlBoxBool           func(int8) uintptr
	jlBoxInt8           func(int8) uintptr
	jlBoxInt16          func(int16) uintptr
	jlBoxInt32          func(int32) uintptr
	jlBoxInt64          func(int64) uintptr
	jlBoxUint8          func(uint8) uintptr
	jlBoxUint16         func(uint16) uintptr
	jlBoxUint32         func(uint32) uintptr
	jlBoxUint64         func(uint64) uintptr
	jlBoxFloat32        func(float32) uintptr
	jlBoxFloat64        func(float64) uintptr
	jlCstrToString      func(string) uintptr
	jlStringPtr         func(uintptr) string
	jlUnboxBool         func(uintptr) int8
	jlUnboxInt8         func(uintptr) int8
	jlUnboxInt16        func(uintptr) int16
	jlUnboxInt32        func(uintptr) int32
	jlUnboxInt64        func(uintptr) int64
	jlUnboxUint8        func(uintptr) uint8
	jlUnboxUint16       func(uintptr) uint16
	jlUnboxUint32       func(uintptr) uint32
	jlUnboxUint64       func(uintptr) uint64
	jlUnboxFloat32      func(uintptr) float32
	jlUnboxFloat64      func(uintptr) float64
}

var _ Backend = (*LibJulia)(nil)

// OpenLibrary loads libjulia from path and resolves every entry point the
// core needs. All missing symbols are reported together.
func OpenLibrary(path string, logger zerolog.Logger) (Backend, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, errs.RuntimeErrorf("runtime error: unable to load %s: %v", path, err)
	}
	l := &LibJulia{path: path, handle: handle, logger: logger}
	var merr *multierror.Error
	register := func(fptr any, name string) {
		if _, err := purego.Dlsym(handle, name); err != nil {
			merr = multierror.Append(merr, errs.SymbolErrorf("symbol error: %s not found in %s", name, path))
			return
		}
		purego.RegisterLibFunc(fptr, handle, name)
	}
	register(&l.jlInit, "jl_init")
	register(&l.jlAtexitHook, "jl_atexit_hook")
	register(&l.jlVerString, "jl_ver_string")
	register(&l.jlCall0, "jl_call0")
	register(&l.jlCall1, "jl_call1")
	register(&l.jlCall2, "jl_call2")
	register(&l.jlCall3, "jl_call3")
	register(&l.jlCall, "jl_call")
	register(&l.jlExcOccurred, "jl_exception_occurred")
	register(&l.jlEvalString, "jl_eval_string")
	register(&l.jlSymbol, "jl_symbol")
	register(&l.jlGetGlobal, "jl_get_global")
	register(&l.jlSetGlobal, "jl_set_global")
	register(&l.jlTypeofStr, "jl_typeof_str")
	register(&l.jlApplyArrayType, "jl_apply_array_type")
	register(&l.jlPtrToArray1d, "jl_ptr_to_array_1d")
	register(&l.jlGcCollect, "jl_gc_collect")
	register(&l.jlGcMarkQueueObj, "jl_gc_mark_queue_obj")
	register(&l.jlGetPtlsStates, "jl_get_ptls_states")
	register(&l.jlNewForeignType, "jl_new_foreign_type")
	register(&l.jlGcAllocTyped, "jl_gc_alloc_typed")
	register(&l.jlBoxBool, "jl_box_bool")
	register(&l.jlBoxInt8, "jl_box_int8")
	register(&l.jlBoxInt16, "jl_box_int16")
	register(&l.jlBoxInt32, "jl_box_int32")
	register(&l.jlBoxInt64, "jl_box_int64")
	register(&l.jlBoxUint8, "jl_box_uint8")
	register(&l.jlBoxUint16, "jl_box_uint16")
	register(&l.jlBoxUint32, "jl_box_uint32")
	register(&l.jlBoxUint64, "jl_box_uint64")
	register(&l.jlBoxFloat32, "jl_box_float32")
	register(&l.jlBoxFloat64, "jl_box_float64")
	register(&l.jlCstrToString, "jl_cstr_to_string")
	register(&l.jlStringPtr, "jl_string_ptr")
	register(&l.jlUnboxBool, "jl_unbox_bool")
	register(&l.jlUnboxInt8, "jl_unbox_int8")
	register(&l.jlUnboxInt16, "jl_unbox_int16")
	register(&l.jlUnboxInt32, "jl_unbox_int32")
	register(&l.jlUnboxInt64, "jl_unbox_int64")
	register(&l.jlUnboxUint8, "jl_unbox_uint8")
	register(&l.jlUnboxUint16, "jl_unbox_uint16")
	register(&l.jlUnboxUint32, "jl_unbox_uint32")
	register(&l.jlUnboxUint64, "jl_unbox_uint64")
	register(&l.jlUnboxFloat32, "jl_unbox_float32")
	register(&l.jlUnboxFloat64, "jl_unbox_float64")

	// The keyword sorter accessor was replaced by the Core.kwcall generic
	// function in newer releases. Resolve whichever is present.
	if _, err := purego.Dlsym(handle, "jl_get_kwsorter"); err == nil {
		purego.RegisterLibFunc(&l.jlGetKwsorter, handle, "jl_get_kwsorter")
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	l.logger.Debug().Str("path", path).Msg("libjulia symbols bound")
	return l, nil
}

// dataGlobal dereferences an exported data symbol holding a foreign address.
func (l *LibJulia) dataGlobal(name string) (uintptr, error) {
	sym, err := purego.Dlsym(l.handle, name)
	if err != nil {
		return 0, errs.SymbolErrorf("symbol error: %s not found in %s", name, l.path)
	}
	return *(*uintptr)(unsafe.Pointer(sym)), nil
}

func (l *LibJulia) Init() error {
	if l.initialized {
		return errs.RuntimeErrorf("runtime error: libjulia already initialized")
	}
	l.jlInit()
	l.initialized = true
	var merr *multierror.Error
	reqGlobal := func(dst *uintptr, name string) {
		v, err := l.dataGlobal(name)
		if err != nil {
			merr = multierror.Append(merr, err)
			return
		}
		*dst = v
	}
	reqGlobal(&l.mainModule, "jl_main_module")
	reqGlobal(&l.baseModule, "jl_base_module")
	reqGlobal(&l.coreModule, "jl_core_module")
	reqGlobal(&l.anyType, "jl_any_type")
	reqGlobal(&l.f64Type, "jl_float64_type")
	reqGlobal(&l.i64Type, "jl_int64_type")
	if err := merr.ErrorOrNil(); err != nil {
		return err
	}
	l.typeofFn = l.jlGetGlobal(l.coreModule, l.jlSymbol("typeof"))
	reqBinding := func(dst *uintptr, module uintptr, name string) {
		v := l.jlGetGlobal(module, l.jlSymbol(name))
		if v == 0 {
			merr = multierror.Append(merr, errs.SymbolErrorf("symbol error: %s is not bound", name))
			return
		}
		*dst = v
	}
	reqBinding(&l.getfieldFn, l.coreModule, "getfield")
	reqBinding(&l.setfieldFn, l.coreModule, "setfield!")
	reqBinding(&l.nfieldsFn, l.coreModule, "nfields")
	reqBinding(&l.fieldnameFn, l.baseModule, "fieldname")
	reqBinding(&l.applyTypeFn, l.coreModule, "apply_type")
	reqBinding(&l.stringFn, l.baseModule, "string")
	if err := merr.ErrorOrNil(); err != nil {
		return err
	}
	l.namedTupleFn = l.jlEvalString(namedTupleHelper)
	if l.namedTupleFn == 0 || l.jlExcOccurred() != 0 {
		return errs.RuntimeErrorf("runtime error: unable to install the named tuple helper")
	}
	if l.jlGetKwsorter == nil {
		l.kwcallFn = l.jlGetGlobal(l.coreModule, l.jlSymbol("kwcall"))
		if l.kwcallFn == 0 {
			return errs.SymbolErrorf("symbol error: neither jl_get_kwsorter nor Core.kwcall is available")
		}
	}
	l.logger.Info().Str("version", l.jlVerString()).Msg("julia runtime initialized")
	return nil
}

func (l *LibJulia) Shutdown() error {
	if !l.initialized {
		return errs.RuntimeErrorf("runtime error: libjulia is not initialized")
	}
	l.jlAtexitHook(0)
	l.initialized = false
	l.logger.Info().Msg("julia runtime shut down")
	return nil
}

func (l *LibJulia) Version() string {
	return l.jlVerString()
}

// BindRoots publishes the root stack to the collector by wrapping it in a
// foreign-typed holder object whose mark callback walks the live slots.
// The holder is stored as a module global so it is itself reachable.
func (l *LibJulia) BindRoots(scan RootScanner) error {
	if l.scan != nil {
		return errs.RuntimeErrorf("runtime error: roots already bound")
	}
	l.scan = scan
	l.markCb = purego.NewCallback(func(ptls, obj uintptr) uintptr {
		var marked uintptr
		l.scan(func(addr uintptr) bool {
			marked += uintptr(l.jlGcMarkQueueObj(ptls, addr))
			return true
		})
		return marked
	})
	fty := l.jlNewForeignType(l.jlSymbol("GoRootStack"), l.mainModule, l.anyType, l.markCb, 0, 1, 0)
	if fty == 0 {
		return errs.RuntimeErrorf("runtime error: unable to register root stack foreign type")
	}
	holder := l.jlGcAllocTyped(l.jlGetPtlsStates(), 0, fty)
	l.jlSetGlobal(l.mainModule, l.jlSymbol("__jlrs_roots__"), holder)
	return nil
}

func (l *LibJulia) Call0(f uintptr) uintptr { return l.jlCall0(f) }

func (l *LibJulia) Call1(f, a0 uintptr) uintptr { return l.jlCall1(f, a0) }

func (l *LibJulia) Call2(f, a0, a1 uintptr) uintptr { return l.jlCall2(f, a0, a1) }

func (l *LibJulia) Call3(f, a0, a1, a2 uintptr) uintptr { return l.jlCall3(f, a0, a1, a2) }

func (l *LibJulia) Call(f uintptr, args []uintptr) uintptr {
	if len(args) == 0 {
		return l.jlCall(f, nil, 0)
	}
	return l.jlCall(f, unsafe.Pointer(&args[0]), int32(len(args)))
}

func (l *LibJulia) KwSorter(f uintptr) uintptr {
	if l.jlGetKwsorter != nil {
		return l.jlGetKwsorter(l.jlCall1(l.typeofFn, f))
	}
	return l.kwcallFn
}

func (l *LibJulia) ExceptionOccurred() uintptr { return l.jlExcOccurred() }

func (l *LibJulia) EvalString(src string) uintptr { return l.jlEvalString(src) }

func (l *LibJulia) Symbol(name string) uintptr { return l.jlSymbol(name) }

func (l *LibJulia) MainModule() uintptr { return l.mainModule }

func (l *LibJulia) BaseModule() uintptr { return l.baseModule }

func (l *LibJulia) CoreModule() uintptr { return l.coreModule }

func (l *LibJulia) Global(module uintptr, name string) uintptr {
	return l.jlGetGlobal(module, l.jlSymbol(name))
}

func (l *LibJulia) TypeNameOf(v uintptr) string { return l.jlTypeofStr(v) }

func (l *LibJulia) NFields(v uintptr) int {
	n := l.jlCall1(l.nfieldsFn, v)
	if n == 0 || l.jlExcOccurred() != 0 {
		return 0
	}
	return int(l.jlUnboxInt64(n))
}

func (l *LibJulia) FieldName(v uintptr, i int) string {
	dt := l.jlCall1(l.typeofFn, v)
	if dt == 0 || l.jlExcOccurred() != 0 {
		return ""
	}
	sym := l.jlCall2(l.fieldnameFn, dt, l.jlBoxInt64(int64(i)+1))
	if sym == 0 || l.jlExcOccurred() != 0 {
		return ""
	}
	str := l.jlCall1(l.stringFn, sym)
	if str == 0 || l.jlExcOccurred() != 0 {
		return ""
	}
	return l.jlStringPtr(str)
}

func (l *LibJulia) GetField(v uintptr, name string) uintptr {
	return l.jlCall2(l.getfieldFn, v, l.jlSymbol(name))
}

func (l *LibJulia) GetNthField(v uintptr, i int) uintptr {
	return l.jlCall2(l.getfieldFn, v, l.jlBoxInt64(int64(i)+1))
}

func (l *LibJulia) SetField(v uintptr, name string, val uintptr) {
	l.jlCall3(l.setfieldFn, v, l.jlSymbol(name), val)
}

func (l *LibJulia) ApplyType(tc uintptr, params []uintptr) uintptr {
	args := make([]uintptr, 0, 1+len(params))
	args = append(args, tc)
	args = append(args, params...)
	return l.Call(l.applyTypeFn, args)
}

func (l *LibJulia) NewNamedTuple(names []string, values []uintptr) uintptr {
	args := make([]uintptr, 0, 2*len(names))
	for i, name := range names {
		args = append(args, l.jlCstrToString(name))
		args = append(args, values[i])
	}
	return l.Call(l.namedTupleFn, args)
}

// ArrayData reads the data pointer, which is the first word of the foreign
// array struct layout.
func (l *LibJulia) ArrayData(v uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(v))
}

func (l *LibJulia) BoxBool(v bool) uintptr {
	if v {
		return l.jlBoxBool(1)
	}
	return l.jlBoxBool(0)
}

func (l *LibJulia) BoxInt8(v int8) uintptr   { return l.jlBoxInt8(v) }
func (l *LibJulia) BoxInt16(v int16) uintptr { return l.jlBoxInt16(v) }
func (l *LibJulia) BoxInt32(v int32) uintptr { return l.jlBoxInt32(v) }
func (l *LibJulia) BoxInt64(v int64) uintptr { return l.jlBoxInt64(v) }

func (l *LibJulia) BoxUint8(v uint8) uintptr   { return l.jlBoxUint8(v) }
func (l *LibJulia) BoxUint16(v uint16) uintptr { return l.jlBoxUint16(v) }
func (l *LibJulia) BoxUint32(v uint32) uintptr { return l.jlBoxUint32(v) }
func (l *LibJulia) BoxUint64(v uint64) uintptr { return l.jlBoxUint64(v) }

func (l *LibJulia) BoxFloat32(v float32) uintptr { return l.jlBoxFloat32(v) }
func (l *LibJulia) BoxFloat64(v float64) uintptr { return l.jlBoxFloat64(v) }

func (l *LibJulia) BoxString(s string) uintptr { return l.jlCstrToString(s) }

func (l *LibJulia) NewFloat64Array(data []float64, dims []uintptr) uintptr {
	if len(dims) != 1 {
		return 0
	}
	atype := l.jlApplyArrayType(l.f64Type, 1)
	if len(data) == 0 {
		return l.jlPtrToArray1d(atype, nil, 0, 0)
	}
	return l.jlPtrToArray1d(atype, unsafe.Pointer(&data[0]), dims[0], 0)
}

func (l *LibJulia) NewInt64Array(data []int64, dims []uintptr) uintptr {
	if len(dims) != 1 {
		return 0
	}
	atype := l.jlApplyArrayType(l.i64Type, 1)
	if len(data) == 0 {
		return l.jlPtrToArray1d(atype, nil, 0, 0)
	}
	return l.jlPtrToArray1d(atype, unsafe.Pointer(&data[0]), dims[0], 0)
}

func (l *LibJulia) UnboxBool(v uintptr) bool { return l.jlUnboxBool(v) != 0 }

func (l *LibJulia) UnboxInt8(v uintptr) int8   { return l.jlUnboxInt8(v) }
func (l *LibJulia) UnboxInt16(v uintptr) int16 { return l.jlUnboxInt16(v) }
func (l *LibJulia) UnboxInt32(v uintptr) int32 { return l.jlUnboxInt32(v) }
func (l *LibJulia) UnboxInt64(v uintptr) int64 { return l.jlUnboxInt64(v) }

func (l *LibJulia) UnboxUint8(v uintptr) uint8   { return l.jlUnboxUint8(v) }
func (l *LibJulia) UnboxUint16(v uintptr) uint16 { return l.jlUnboxUint16(v) }
func (l *LibJulia) UnboxUint32(v uintptr) uint32 { return l.jlUnboxUint32(v) }
func (l *LibJulia) UnboxUint64(v uintptr) uint64 { return l.jlUnboxUint64(v) }

func (l *LibJulia) UnboxFloat32(v uintptr) float32 { return l.jlUnboxFloat32(v) }
func (l *LibJulia) UnboxFloat64(v uintptr) float64 { return l.jlUnboxFloat64(v) }

func (l *LibJulia) UnboxString(v uintptr) string { return l.jlStringPtr(v) }

func (l *LibJulia) GCCollect(full bool) {
	if full {
		l.jlGcCollect(1)
		return
	}
	l.jlGcCollect(0)
}
