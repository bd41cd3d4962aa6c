// Package orb defines the remote object boundary used by the control plane.
//
// Ownership boundary:
//   - one capability interface per remote role (naming context, manager,
//     component, execution context, configuration, port)
//   - narrowing untyped references to a role, failing with ErrNarrow
//   - string <-> reference conversion through the ORB interface
//
// The transport itself lives in orb/wire. Broker is the in-process object
// table both the wire server and tests are built on.
package orb
