package device

import "errors"

// Error kinds surfaced by the connection manager. The HTTP and CLI layers
// map these to status codes and exit codes with errors.Is.
var (
	// ErrUnknownDevice means the device key is not present in the pool.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrUnknownUser means a user operation targeted a uid that does not
	// exist on the device.
	ErrUnknownUser = errors.New("unknown user")

	// ErrOffline covers connect failures, I/O timeouts, and protocol-level
	// transport errors. Reads are retried on this kind; writes are not.
	ErrOffline = errors.New("device offline")

	// ErrInvalidConfig means the fleet YAML is missing required fields.
	// Fatal at startup.
	ErrInvalidConfig = errors.New("invalid device config")
)
