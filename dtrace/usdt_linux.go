//go:build linux && cgo

package dtrace

import (
	"fmt"
	"sync"

	"github.com/mmcshane/salp"
)

// ===== salp probe backend =====

var (
	providerMu sync.Mutex
	provider   *salp.Provider
)

type salpTaskProbe struct {
	p salp.Probe
}

func (sp salpTaskProbe) Enabled() bool { return sp.p.Enabled() }

func (sp salpTaskProbe) Fire(taskID uint64, file string, line, column uint32) {
	sp.p.Fire(taskID, file, line, column)
}

type salpThreadProbe struct {
	p salp.Probe
}

func (sp salpThreadProbe) Enabled() bool { return sp.p.Enabled() }

func (sp salpThreadProbe) Fire() { sp.p.Fire() }

// registerBackend creates the USDT provider, defines the eight probes, and
// loads them into the process image. Safe to call more than once; an already
// loaded provider is left as is.
func registerBackend() error {
	providerMu.Lock()
	defer providerMu.Unlock()

	if provider != nil {
		return nil
	}

	p := salp.NewProvider(providerName)

	taskNames := []string{
		probeTaskSpawn,
		probeTaskPollStart,
		probeTaskPollEnd,
		probeTaskTerminate,
	}
	taskProbes := make([]salp.Probe, 0, len(taskNames))
	for _, name := range taskNames {
		pr, err := p.AddProbe(name,
			salp.Uint64, salp.String, salp.Uint32, salp.Uint32)
		if err != nil {
			salp.UnloadAndDispose(p)
			return fmt.Errorf("defining probe %s:%s: %w", providerName, name, err)
		}
		taskProbes = append(taskProbes, pr)
	}

	threadNames := []string{
		probeThreadStart,
		probeThreadStop,
		probeThreadPark,
		probeThreadUnpark,
	}
	threadProbes := make([]salp.Probe, 0, len(threadNames))
	for _, name := range threadNames {
		pr, err := p.AddProbe(name)
		if err != nil {
			salp.UnloadAndDispose(p)
			return fmt.Errorf("defining probe %s:%s: %w", providerName, name, err)
		}
		threadProbes = append(threadProbes, pr)
	}

	if err := salp.LoadProvider(p); err != nil {
		salp.UnloadAndDispose(p)
		return fmt.Errorf("loading usdt provider %s: %w", providerName, err)
	}

	provider = p
	probes.Store(&probeSet{
		taskSpawn:     salpTaskProbe{taskProbes[0]},
		taskPollStart: salpTaskProbe{taskProbes[1]},
		taskPollEnd:   salpTaskProbe{taskProbes[2]},
		taskTerminate: salpTaskProbe{taskProbes[3]},
		threadStart:   salpThreadProbe{threadProbes[0]},
		threadStop:    salpThreadProbe{threadProbes[1]},
		threadPark:    salpThreadProbe{threadProbes[2]},
		threadUnpark:  salpThreadProbe{threadProbes[3]},
	})
	return nil
}

// Unload removes the USDT probes from the process image and returns the
// bridge functions to their dormant no-op state. The dormant set is published
// before the provider is disposed, so hooks that fire afterwards become
// no-ops. Call it at process shutdown, after the pools using the hooks have
// stopped.
func Unload() {
	providerMu.Lock()
	defer providerMu.Unlock()

	if provider == nil {
		return
	}
	probes.Store(dormantProbes())
	salp.UnloadAndDispose(provider)
	provider = nil
}
