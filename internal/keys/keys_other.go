//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd || windows)

package keys

func Open() (Source, error) {
	return nil, ERROR_UNSUPPORTED_PLATFORM
}
