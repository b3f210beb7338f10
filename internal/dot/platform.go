package dot

import "runtime"

// Platform names the compiled DOT artifact for one operating system and the
// symbols its two entry points are exported under.
type Platform struct {
	OS          string
	LibraryName string
	// SizeSymbol is the DOT510 workspace sizing routine.
	SizeSymbol string
	// SolveSymbol is the main DOT routine.
	SolveSymbol string
	// StdCall is true when the artifact uses the stdcall convention.
	StdCall bool
}

var platforms = map[string]Platform{
	// gfortran appends an underscore and lowercases.
	"linux": {
		OS:          "linux",
		LibraryName: "libDOT2.so",
		SizeSymbol:  "dot510_",
		SolveSymbol: "dot_",
	},
	"windows": {
		OS:          "windows",
		LibraryName: "DOT.dll",
		SizeSymbol:  "DOT510",
		SolveSymbol: "DOT",
		StdCall:     true,
	},
}

// ResolvePlatform returns the artifact description for goos.
func ResolvePlatform(goos string) (Platform, error) {
	p, ok := platforms[goos]
	if !ok {
		return Platform{}, &Error{
			Message:   "no DOT artifact for " + goos,
			Op:        "resolve",
			Component: "loader",
			Err:       ErrUnsupportedPlatform,
		}
	}
	return p, nil
}

// HostPlatform resolves the platform the process is running on.
func HostPlatform() (Platform, error) {
	return ResolvePlatform(runtime.GOOS)
}

// SupportedPlatforms lists the operating systems an artifact exists for.
func SupportedPlatforms() []string {
	return []string{"linux", "windows"}
}
