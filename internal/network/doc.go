// Package network implements the fork channel over a loopback TCP connection.
//
// The channel binds a listening socket on construction and hands the worker
// a "tcp://host:port" connection string. Once the worker connects, commands
// are written to the connection and events are read back from it, while the
// worker's standard output and error are forwarded to their own handlers.
// The channel serves exactly one worker connection.
package network
