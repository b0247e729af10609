// Package sandbox tracks remote sandboxes on behalf of owners.
//
// Code never runs in this process. Execution and file access are delegated
// to a remote sandbox service through the Client interface, and the Registry
// keeps at most one live sandbox per owner:
//
//   - GetOrCreate returns the owner's sandbox, reconnecting to one the remote
//     service already tracks for the owner (by metadata) or creating it.
//   - Close terminates one owner's sandbox.
//   - ListAll reports every sandbox the remote service knows about.
//   - Shutdown terminates everything the registry tracks.
//
// An optional Evictor closes sessions that sit idle past a configured timeout.
//
// Usage:
//
//	reg := sandbox.NewRegistry(logger, client, sandbox.NewMetrics(promRegistry))
//	h, err := reg.GetOrCreate(ctx, "user-42")
//	exec, err := reg.Client().RunCode(ctx, h, "print(1)", "python")
//	defer reg.Shutdown(context.Background())
package sandbox
