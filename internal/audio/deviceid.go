//go:build cgo && !noaudio

package audio

/*
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/gen2brain/malgo"
)

// withDeviceID hands fn a C copy of id and frees it when fn returns.
// miniaudio only reads the ID while the device is being initialized.
func withDeviceID(id malgo.DeviceID, fn func(unsafe.Pointer) error) error {
	p := id.Pointer()
	defer C.free(p)
	return fn(p)
}
