// Package dispatch provides in-process signals: named channels that any
// number of receivers connect to, optionally filtered by sender.
//
// A Signal keeps an ordered registry of receivers. Each registration is
// keyed by a LookupKey built from the receiver identity (or a caller
// supplied tag) and the sender identity, so connecting the same receiver
// twice is a no-op. Receivers are held weakly by default: once a weakly
// held receiver becomes unreachable it silently drops out of dispatch.
// Only pointers whose target holds pointers or spans at least 16 bytes can
// be held weakly; smaller pointer-free values share tiny allocator blocks
// and would never be collected.
//
// Four protocols fire a signal:
//
//	Send             fail fast, synchronous receivers first, then asynchronous ones
//	SendAsync        fail fast, both groups run concurrently, returns a *Call
//	SendRobust       every receiver runs, failures are recorded per receiver
//	SendRobustAsync  SendRobust with the concurrency of SendAsync
//
// Responses always list synchronous receivers first and asynchronous
// receivers second, each group in registration order.
//
// Basic usage:
//
//	saved := dispatch.New(dispatch.WithName("user.saved"))
//	_ = saved.Connect(dispatch.Func(onSaved), dispatch.Strong())
//	responses, err := saved.Send(ctx, user, dispatch.Args{"created": true})
package dispatch
