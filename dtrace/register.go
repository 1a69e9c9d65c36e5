package dtrace

import (
	"errors"

	taskrun "github.com/taskrunlab/taskrun"
)

// ErrUnstableHooksRequired is returned by RegisterHooks when the builder was
// not configured with EnableUnstableHooks. Recoverable: the caller may run
// without instrumentation or fail startup, at its discretion.
var ErrUnstableHooksRequired = errors.New(
	"dtrace: lifecycle hooks require taskrun.Builder.EnableUnstableHooks()")

// BackendRegistrationError reports that the USDT probes could not be
// registered with the tracing subsystem (e.g. unsupported platform or
// insufficient privileges). It wraps the backend's own error.
type BackendRegistrationError struct {
	Err error
}

func (e *BackendRegistrationError) Error() string {
	return "dtrace: registering probes with tracing backend: " + e.Err.Error()
}

func (e *BackendRegistrationError) Unwrap() error { return e.Err }

// activateBackend is replaced in tests to simulate backend failures.
var activateBackend = registerBackend

// RegisterHooks registers the dtrace probe hooks with the provided builder.
//
// It activates the USDT probe backend and attaches all eight bridge
// functions to the builder's lifecycle slots, overwriting any callbacks set
// previously. On success the same builder is returned so configuration can
// continue in a chain. On error no slot is modified and no probe is loaded;
// there is no partial outcome.
//
// Calling RegisterHooks twice on the same builder is allowed and simply
// re-sets the same eight callbacks.
//
// Errors:
//   - ErrUnstableHooksRequired if the builder's unstable-hook capability is
//     off.
//   - *BackendRegistrationError if the tracing subsystem rejected the probe
//     definitions.
func RegisterHooks(builder *taskrun.Builder) (*taskrun.Builder, error) {
	if !builder.UnstableHooksEnabled() {
		return nil, ErrUnstableHooksRequired
	}

	if err := activateBackend(); err != nil {
		return nil, &BackendRegistrationError{Err: err}
	}

	builder.
		OnTaskSpawn(OnTaskSpawn).
		OnBeforeTaskPoll(OnBeforeTaskPoll).
		OnAfterTaskPoll(OnAfterTaskPoll).
		OnTaskTerminate(OnTaskTerminate).
		OnThreadStart(OnThreadStart).
		OnThreadStop(OnThreadStop).
		OnThreadPark(OnThreadPark).
		OnThreadUnpark(OnThreadUnpark)

	return builder, nil
}
