package assembler

import (
	"fmt"
)

// EnvMode is the environment variable the build mode is read from.
const EnvMode = "NODE_ENV"

// Mode is the build profile.
type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

// ModeFromEnv maps the value of EnvMode to a Mode. Only the exact value
// "development" selects development; anything else, including an empty
// value, is a production build.
func ModeFromEnv(value string) Mode {
	if value == string(Development) {
		return Development
	}
	return Production
}

// IsDev reports whether m is the development profile.
func (m Mode) IsDev() bool {
	return m == Development
}

// ArtifactKind is the category of a compiled bundle.
type ArtifactKind string

const (
	KindJS  ArtifactKind = "js"
	KindCSS ArtifactKind = "css"
)

// Ext returns the file extension of the kind, including the dot.
func (k ArtifactKind) Ext() string {
	return "." + string(k)
}

// ParseArtifactKind validates s as an artifact kind.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	switch k := ArtifactKind(s); k {
	case KindJS, KindCSS:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownArtifactKind, s)
	}
}
