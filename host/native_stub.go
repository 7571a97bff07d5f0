//go:build !linux && !darwin

package host

import (
	dErrors "github.com/plughost-dev/plughost/domain/errors"
)

// LoadNative reports that native plugins are unavailable on this platform.
func LoadNative(path string) (LoadedPlugin, error) {
	return nil, &dErrors.NotSupportedError{Reason: "native plugins require linux or darwin"}
}
