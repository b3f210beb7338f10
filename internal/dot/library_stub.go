//go:build !windows && !(linux && cgo)

package dot

func openLibrary(p Platform, path string) (Library, error) {
	return nil, &Error{
		Message:   "native DOT loading on " + p.OS + " requires cgo",
		Op:        "open",
		Component: "loader",
		Err:       ErrLibraryLoad,
	}
}
