// Package rtm is the control-plane client for the component runtime.
//
// Ownership boundary:
//   - discovery of managers and components through the naming service
//   - component lifecycle requests (load, create, activate, deactivate)
//   - configuration reads and writes on the default set
//   - port connection negotiation and service side-channel lookup
//
// Every operation is a blocking remote call on the caller's goroutine. Handles
// keep no state besides the wrapped reference (and a component's bound
// execution context), so independent handles are safe to use concurrently.
// Writes against the same configuration object are not serialized here.
package rtm
