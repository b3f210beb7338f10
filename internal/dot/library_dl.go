//go:build linux && cgo

package dot

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

typedef void (*dot510_fn)(int*, int*, int*, int*, int*, int*, int*, int*, int*, int*,
                          double*, double*, int*, int*);
typedef void (*dot_fn)(int*, int*, int*, int*, int*, double*, double*, double*, double*,
                       int*, double*, double*, int*, double*, int*, int*, int*);

static void call_dot510(void* fn, int* ndv, int* ncon, int* method, int* nrwk, int* nrwkmn,
                        int* nriwd, int* nrwkmx, int* nriwk, int* nstore, int* ngmax,
                        double* xl, double* xu, int* maxint, int* ierr) {
    ((dot510_fn)fn)(ndv, ncon, method, nrwk, nrwkmn, nriwd, nrwkmx, nriwk, nstore, ngmax,
                    xl, xu, maxint, ierr);
}

static void call_dot(void* fn, int* info, int* method, int* iprint, int* ndv, int* ncon,
                     double* x, double* xl, double* xu, double* obj, int* minmax, double* g,
                     double* rprm, int* iprm, double* wk, int* nrwk, int* iwk, int* nriwk) {
    ((dot_fn)fn)(info, method, iprint, ndv, ncon, x, xl, xu, obj, minmax, g, rprm, iprm,
                 wk, nrwk, iwk, nriwk);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type nativeLibrary struct {
	path   string
	handle unsafe.Pointer
	size   unsafe.Pointer
	solve  unsafe.Pointer
}

func openLibrary(p Platform, path string) (Library, error) {
	if path == "" {
		path = p.LibraryName
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	handle := C.dlopen(cPath, C.RTLD_NOW|C.RTLD_GLOBAL)
	if handle == nil {
		return nil, &Error{
			Message:   fmt.Sprintf("dlopen failed for %s: %s", path, C.GoString(C.dlerror())),
			Op:        "open",
			Component: "loader",
			Err:       ErrLibraryLoad,
		}
	}

	lib := &nativeLibrary{path: path, handle: handle}
	var err error
	if lib.size, err = lib.symbol(p.SizeSymbol); err != nil {
		C.dlclose(handle)
		return nil, err
	}
	if lib.solve, err = lib.symbol(p.SolveSymbol); err != nil {
		C.dlclose(handle)
		return nil, err
	}
	return lib, nil
}

func (l *nativeLibrary) symbol(name string) (unsafe.Pointer, error) {
	symName := C.CString(name)
	defer C.free(unsafe.Pointer(symName))

	sym := C.dlsym(l.handle, symName)
	if sym == nil {
		return nil, &Error{
			Message:   fmt.Sprintf("symbol %s not found in %s", name, l.path),
			Op:        "dlsym",
			Component: "loader",
			Err:       ErrLibraryLoad,
		}
	}
	return sym, nil
}

func (l *nativeLibrary) Size(req *SizeRequest) Sizing {
	var s Sizing
	method := int32(req.Method)
	C.call_dot510(l.size,
		(*C.int)(unsafe.Pointer(&req.NDV)),
		(*C.int)(unsafe.Pointer(&req.NCON)),
		(*C.int)(unsafe.Pointer(&method)),
		(*C.int)(unsafe.Pointer(&s.NRWK)),
		(*C.int)(unsafe.Pointer(&s.NRWKMN)),
		(*C.int)(unsafe.Pointer(&s.NRIWD)),
		(*C.int)(unsafe.Pointer(&s.NRWKMX)),
		(*C.int)(unsafe.Pointer(&s.NRIWK)),
		(*C.int)(unsafe.Pointer(&s.NSTORE)),
		(*C.int)(unsafe.Pointer(&s.NGMAX)),
		(*C.double)(floatPtr(req.XL)),
		(*C.double)(floatPtr(req.XU)),
		(*C.int)(unsafe.Pointer(&req.MaxInt)),
		(*C.int)(unsafe.Pointer(&s.IERR)),
	)
	return s
}

func (l *nativeLibrary) Solve(f *Frame) error {
	C.call_dot(l.solve,
		(*C.int)(unsafe.Pointer(&f.Info)),
		(*C.int)(unsafe.Pointer(&f.Method)),
		(*C.int)(unsafe.Pointer(&f.Print)),
		(*C.int)(unsafe.Pointer(&f.NDV)),
		(*C.int)(unsafe.Pointer(&f.NCON)),
		(*C.double)(floatPtr(f.X)),
		(*C.double)(floatPtr(f.XL)),
		(*C.double)(floatPtr(f.XU)),
		(*C.double)(unsafe.Pointer(&f.Obj)),
		(*C.int)(unsafe.Pointer(&f.MinMax)),
		(*C.double)(floatPtr(f.G)),
		(*C.double)(floatPtr(f.RPRM)),
		(*C.int)(intPtr(f.IPRM)),
		(*C.double)(floatPtr(f.WK)),
		(*C.int)(unsafe.Pointer(&f.NRWK)),
		(*C.int)(intPtr(f.IWK)),
		(*C.int)(unsafe.Pointer(&f.NRIWK)),
	)
	return nil
}

// Exclusive reports that DOT keeps its state in process-wide Fortran storage.
func (l *nativeLibrary) Exclusive() bool { return true }

func (l *nativeLibrary) Close() error {
	if l.handle == nil {
		return nil
	}
	if C.dlclose(l.handle) != 0 {
		return &Error{
			Message:   fmt.Sprintf("dlclose failed for %s: %s", l.path, C.GoString(C.dlerror())),
			Op:        "close",
			Component: "loader",
		}
	}
	l.handle = nil
	return nil
}
