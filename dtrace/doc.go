// Package dtrace bridges taskrun lifecycle hooks to USDT probes.
//
// Once registered, the runtime fires a statically defined probe at every task
// and worker lifecycle transition. The probes are dormant until a tracing
// consumer (bpftrace, dtrace, systemtap) attaches to them by name, so the
// instrumented process pays close to nothing when nobody is looking.
//
// # Usage
//
// Lifecycle hooks are an unstable taskrun API and must be switched on
// explicitly on the builder. Pass the builder to RegisterHooks before
// building the pool:
//
//	builder := taskrun.NewBuilder().EnableUnstableHooks().Workers(8)
//	if _, err := dtrace.RegisterHooks(builder); err != nil {
//		// Probes could not be enabled; run uninstrumented or bail out.
//		log.Printf("WARNING: could not register taskrun probes: %v", err)
//	}
//	pool := builder.Build()
//	pool.Start(ctx)
//
// RegisterHooks is all-or-nothing: on error no callback slot is touched and
// no probe is loaded.
//
// # Probes
//
// The provider is named "taskrun". Probe names and argument order are a
// stable contract for tracing scripts:
//
//	task__spawn(task_id uint64, file string, line uint32, column uint32)
//	task__poll__start(task_id uint64, file string, line uint32, column uint32)
//	task__poll__end(task_id uint64, file string, line uint32, column uint32)
//	task__terminate(task_id uint64, file string, line uint32, column uint32)
//	worker__thread__start()
//	worker__thread__stop()
//	worker__thread__park()
//	worker__thread__unpark()
//
// # Composing hooks
//
// The runtime allows a single callback per lifecycle slot, and each builder
// setter overwrites the previous callback. Applications that need their own
// code in a slot should register a wrapper that calls the exported bridge
// function as well:
//
//	builder.OnTaskSpawn(func(meta *core.TaskMeta) {
//		dtrace.OnTaskSpawn(meta)
//		myOwnOnTaskSpawn(meta)
//	})
//
// When only a subset of slots needs extra code, call RegisterHooks first and
// then override just those slots; later setter calls win.
//
// USDT probes require Linux and cgo (libstapsdt). On other platforms
// RegisterHooks fails with a BackendRegistrationError and the application can
// continue without instrumentation.
package dtrace
