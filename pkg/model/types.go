// Package model holds the shared types of pgnest: execution enums,
// engine settings, and the secret wrapper used by the worker protocol.
package model

// ExecutionPrivileges records the privilege level sampled once at
// bootstrap from the effective user id.
type ExecutionPrivileges string

const (
	PrivilegesRoot         ExecutionPrivileges = "root"
	PrivilegesUnprivileged ExecutionPrivileges = "unprivileged"
)

// ExecutionMode selects how a lifecycle operation runs. Root implies
// subprocess, so privileges are dropped before touching untrusted paths.
type ExecutionMode string

const (
	ModeInProcess  ExecutionMode = "in-process"
	ModeSubprocess ExecutionMode = "subprocess"
)

// Operation is a single PostgreSQL lifecycle step.
type Operation string

const (
	OpSetup Operation = "setup"
	OpStart Operation = "start"
	OpStop  Operation = "stop"
)

// Valid reports whether op names a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpSetup, OpStart, OpStop:
		return true
	}
	return false
}

// ContextLabel is the fixed error-context label attached to failures of
// this operation.
func (op Operation) ContextLabel() string {
	switch op {
	case OpSetup:
		return "setting up the test cluster"
	case OpStart:
		return "starting the test cluster"
	case OpStop:
		return "stopping the test cluster"
	}
	return "running an unknown operation"
}

// OperationState tracks a dispatch through its lifecycle.
type OperationState string

const (
	StateRequested  OperationState = "requested"
	StateDispatched OperationState = "dispatched"
	StateSucceeded  OperationState = "succeeded"
	StateTimedOut   OperationState = "timed_out"
	StateFailed     OperationState = "failed"
)

// RemovalOutcome distinguishes "deleted something" from "nothing was
// there"; callers treat both as success.
type RemovalOutcome string

const (
	Removed RemovalOutcome = "removed"
	Missing RemovalOutcome = "missing"
)
