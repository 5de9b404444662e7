// Package dynamo provides the core data types shared by the BEC evolution engine.
//
// The package defines:
//
//   - [Cloud]: two complex fields over a grid, replicated across ensembles
//   - [Representation]: classical or truncated-Wigner interpretation
//   - [Callback] and [Signal]: the observation contract of the run loop
//   - [ParallelFor]: chunked data-parallel loop used by the host backend
//
// # Ownership
//
// A Cloud is owned by the caller. The evolution engine mutates it in place during
// a call and keeps no reference afterwards.
//
// # Stopping a run
//
// Callbacks return [Stop] to end a run early. This is ordinary control flow and
// never surfaces as an error:
//
//	cb := func(t float64, c *dynamo.Cloud) dynamo.Signal {
//	    if t > 0.1 {
//	        return dynamo.Stop
//	    }
//	    return dynamo.Continue
//	}
package dynamo
