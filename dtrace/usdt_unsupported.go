//go:build !linux || !cgo

package dtrace

import "errors"

// registerBackend fails on platforms without USDT support. RegisterHooks
// surfaces the failure before touching any builder slot.
func registerBackend() error {
	return errors.New("usdt probes require linux and cgo")
}

// Unload is a no-op when no probe backend exists.
func Unload() {}
