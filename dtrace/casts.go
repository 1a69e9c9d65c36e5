package dtrace

import (
	"errors"
	"unsafe"

	"github.com/taskrunlab/taskrun/core"
)

// The probe schema carries task identifiers as uint64, but core.TaskID is
// opaque and exposes no numeric conversion. The bridge therefore reinterprets
// the identifier's bits, which is only sound while TaskID's layout is exactly
// that of a uint64. The constants below make any layout change a build
// failure: each subtraction underflows the unsigned constant if the two sides
// differ. The reinterpretation accepts the zero value even though the runtime
// never mints it; the probe's value domain is intentionally the full uint64
// space.
const (
	_ = unsafe.Sizeof(core.TaskID{}) - unsafe.Sizeof(uint64(0))
	_ = unsafe.Sizeof(uint64(0)) - unsafe.Sizeof(core.TaskID{})
	_ = unsafe.Alignof(core.TaskID{}) - unsafe.Alignof(uint64(0))
	_ = unsafe.Alignof(uint64(0)) - unsafe.Alignof(core.TaskID{})
)

// CheckCasts verifies that core.TaskID can be losslessly reinterpreted as a
// uint64. The same condition is enforced at compile time, so on any build
// that links this package the check passes; it exists for applications that
// register bridge functions manually and want an explicit startup assertion.
func CheckCasts() error {
	var id core.TaskID
	var u uint64
	if unsafe.Sizeof(id) != unsafe.Sizeof(u) || unsafe.Alignof(id) != unsafe.Alignof(u) {
		return errors.New("dtrace: core.TaskID is not layout-compatible with uint64")
	}
	return nil
}

// taskIDToUint64 reinterprets the opaque identifier's bits. Guarded by the
// layout constants above.
func taskIDToUint64(id core.TaskID) uint64 {
	return *(*uint64)(unsafe.Pointer(&id))
}
