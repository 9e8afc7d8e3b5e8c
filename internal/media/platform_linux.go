//go:build linux

package media

const defaultBackend = "mpris"

func newPlatformSource(name string) (Source, error) {
	switch name {
	case "mpris":
		return NewMPRIS(), nil
	case "playerctl":
		p, err := NewPlayerctl()
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, unsupported(name)
}
