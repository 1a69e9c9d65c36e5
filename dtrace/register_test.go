package dtrace

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	taskrun "github.com/taskrunlab/taskrun"
)

// activateStub replaces the backend activation for the test's duration.
func activateStub(t *testing.T, err error) {
	t.Helper()
	old := activateBackend
	activateBackend = func() error { return err }
	t.Cleanup(func() { activateBackend = old })
}

func TestRegisterHooksRequiresCapability(t *testing.T) {
	activateStub(t, nil)
	builder := taskrun.NewBuilder()

	got, err := RegisterHooks(builder)
	require.ErrorIs(t, err, ErrUnstableHooksRequired)
	require.Nil(t, got)
	require.Zero(t, builder.NumHooks(), "no slot may be set on failure")
}

func TestRegisterHooksBackendFailure(t *testing.T) {
	backendErr := errors.New("probe page mapping failed")
	activateStub(t, backendErr)
	builder := taskrun.NewBuilder().EnableUnstableHooks()

	got, err := RegisterHooks(builder)
	require.Nil(t, got)

	var regErr *BackendRegistrationError
	require.ErrorAs(t, err, &regErr)
	require.ErrorIs(t, err, backendErr)
	require.Zero(t, builder.NumHooks(), "no slot may be set on failure")
}

func TestRegisterHooksSetsAllSlots(t *testing.T) {
	activateStub(t, nil)
	builder := taskrun.NewBuilder().EnableUnstableHooks()

	got, err := RegisterHooks(builder)
	require.NoError(t, err)
	require.Same(t, builder, got)
	require.Equal(t, 8, builder.NumHooks())
}

func TestRegisterHooksOverwritesExistingSlots(t *testing.T) {
	activateStub(t, nil)
	called := false
	builder := taskrun.NewBuilder().
		EnableUnstableHooks().
		OnThreadStart(func() { called = true })

	_, err := RegisterHooks(builder)
	require.NoError(t, err)

	hooks := builder.Hooks()
	hooks.OnThreadStart()
	require.False(t, called, "registration must replace, not chain, prior callbacks")
}

func TestRegisterHooksIdempotent(t *testing.T) {
	activateStub(t, nil)
	builder := taskrun.NewBuilder().EnableUnstableHooks()

	_, err := RegisterHooks(builder)
	require.NoError(t, err)
	_, err = RegisterHooks(builder)
	require.NoError(t, err)
	require.Equal(t, 8, builder.NumHooks())
}
