// Package command defines the commands a controller sends to its worker.
//
// A Command is an immutable pair of a Kind (the opcode) and an optional
// binary payload. Commands reach a transport through a Source, which yields
// them in order until it reports io.EOF. Queue is the in-memory Source used
// by controllers that produce commands from their own goroutines.
package command
