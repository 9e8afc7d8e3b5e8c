//go:build !linux && !darwin

package media

const defaultBackend = "none"

func newPlatformSource(name string) (Source, error) {
	return nil, unsupported(name)
}
