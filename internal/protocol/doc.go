// Package protocol implements the text command protocol spoken by the
// Galvonium galvo firmware over its serial link.
//
// Commands are single ASCII lines. The host sends WRITE, DUMP, SWAP, CLEAR
// and SIZE; the device answers a DUMP request with one line per buffer step
// followed by the EOC terminator. Encoders validate their inputs and never
// emit a malformed line. The DumpAccumulator collects response lines until
// the terminator is seen; decoding the accumulated text into a buffer is the
// galvo package's job.
package protocol
