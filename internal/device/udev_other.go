//go:build !linux

package device

import "github.com/larkecw/sfengine/internal/engerr"

// EnumerateALSA always fails with engerr.OpFailed off Linux: ALSA/udev
// enumeration is a Linux-only concern.
func EnumerateALSA(r *Registry) error {
	return engerr.New(engerr.OpFailed, "device: ALSA enumeration is only available on linux")
}
