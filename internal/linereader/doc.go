// Package linereader pulls newline-delimited text off a byte stream.
//
// Reader returns a tri-state result per call (a line, end of stream, or a
// read fault) so callers never need to treat an ordinary worker shutdown as
// an error. Consumer runs a Reader on its own goroutine, hands every line to
// a callback and signals completion exactly once, whichever way the stream
// ends.
package linereader
