//go:build !(darwin || linux || freebsd)

package driver

// Open is unavailable without a dlopen-capable loader.
func Open(opts LibraryOptions) (*Native, error) {
	return nil, ErrUnsupportedPlatform
}
