// Package errors defines error types for fork channels.
//
// This package provides structured error types for the failure scenarios of
// a fork channel: binding the listening socket, accepting the worker
// connection, spawning the worker and decoding wire frames. All error types
// support error unwrapping and can be checked using errors.Is, errors.As,
// and errors.AsType.
package errors
