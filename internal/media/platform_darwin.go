//go:build darwin

package media

const defaultBackend = "osascript"

func newPlatformSource(name string) (Source, error) {
	if name == "osascript" {
		return NewAppleScript(), nil
	}
	return nil, unsupported(name)
}
