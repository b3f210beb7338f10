//go:build windows

package dot

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

type nativeLibrary struct {
	dll   *windows.LazyDLL
	size  *windows.LazyProc
	solve *windows.LazyProc
}

func openLibrary(p Platform, path string) (Library, error) {
	if path == "" {
		path = p.LibraryName
	}

	dll := windows.NewLazyDLL(path)
	if err := dll.Load(); err != nil {
		return nil, &Error{
			Message:   fmt.Sprintf("LoadLibrary failed for %s", path),
			Op:        "open",
			Component: "loader",
			Err:       fmt.Errorf("%w: %v", ErrLibraryLoad, err),
		}
	}

	lib := &nativeLibrary{
		dll:   dll,
		size:  dll.NewProc(p.SizeSymbol),
		solve: dll.NewProc(p.SolveSymbol),
	}
	for _, proc := range []*windows.LazyProc{lib.size, lib.solve} {
		if err := proc.Find(); err != nil {
			_ = lib.Close()
			return nil, &Error{
				Message:   fmt.Sprintf("symbol %s not found in %s", proc.Name, path),
				Op:        "find",
				Component: "loader",
				Err:       fmt.Errorf("%w: %v", ErrLibraryLoad, err),
			}
		}
	}
	return lib, nil
}

func (l *nativeLibrary) Size(req *SizeRequest) Sizing {
	var s Sizing
	method := int32(req.Method)
	_, _, _ = l.size.Call(
		uintptr(unsafe.Pointer(&req.NDV)),
		uintptr(unsafe.Pointer(&req.NCON)),
		uintptr(unsafe.Pointer(&method)),
		uintptr(unsafe.Pointer(&s.NRWK)),
		uintptr(unsafe.Pointer(&s.NRWKMN)),
		uintptr(unsafe.Pointer(&s.NRIWD)),
		uintptr(unsafe.Pointer(&s.NRWKMX)),
		uintptr(unsafe.Pointer(&s.NRIWK)),
		uintptr(unsafe.Pointer(&s.NSTORE)),
		uintptr(unsafe.Pointer(&s.NGMAX)),
		uintptr(floatPtr(req.XL)),
		uintptr(floatPtr(req.XU)),
		uintptr(unsafe.Pointer(&req.MaxInt)),
		uintptr(unsafe.Pointer(&s.IERR)),
	)
	return s
}

func (l *nativeLibrary) Solve(f *Frame) error {
	_, _, _ = l.solve.Call(
		uintptr(unsafe.Pointer(&f.Info)),
		uintptr(unsafe.Pointer(&f.Method)),
		uintptr(unsafe.Pointer(&f.Print)),
		uintptr(unsafe.Pointer(&f.NDV)),
		uintptr(unsafe.Pointer(&f.NCON)),
		uintptr(floatPtr(f.X)),
		uintptr(floatPtr(f.XL)),
		uintptr(floatPtr(f.XU)),
		uintptr(unsafe.Pointer(&f.Obj)),
		uintptr(unsafe.Pointer(&f.MinMax)),
		uintptr(floatPtr(f.G)),
		uintptr(floatPtr(f.RPRM)),
		uintptr(intPtr(f.IPRM)),
		uintptr(floatPtr(f.WK)),
		uintptr(unsafe.Pointer(&f.NRWK)),
		uintptr(intPtr(f.IWK)),
		uintptr(unsafe.Pointer(&f.NRIWK)),
	)
	return nil
}

// Exclusive reports that DOT keeps its state in process-wide Fortran storage.
func (l *nativeLibrary) Exclusive() bool { return true }

func (l *nativeLibrary) Close() error {
	if l.dll == nil || l.dll.Handle() == 0 {
		return nil
	}
	err := windows.FreeLibrary(windows.Handle(l.dll.Handle()))
	l.dll = nil
	return err
}
