/*
Package types defines the data shapes shared across the agent: the
host resource snapshot (HostFacts), the dispatcher's view of an
in-flight launch (Workload), the reconciler's unified output
(ContainerView), and the JSON records exchanged with the central
scheduler (RegistrationRecord, HeartbeatRecord).

These types carry no behavior beyond small derived helpers (HostFacts.Status)
and are safe to read concurrently; any map or slice field mutated after
construction is the caller's responsibility to synchronize.
*/
package types
