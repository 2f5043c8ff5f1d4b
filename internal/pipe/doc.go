// Package pipe implements the fork channel over the worker's standard streams.
//
// Commands are encoded into the worker's standard input, events are read
// line by line from its standard output, and its standard error is routed
// to a separate diagnostic handler. No network resource is created, so the
// connection string carries no address.
package pipe
