package protocol

import (
	"fmt"
	"strings"
)

// Buffer selector tokens. The firmware plays ACTIVE while the host stages
// into INACTIVE, so INACTIVE is the default target everywhere.
const (
	TargetActive   = "ACTIVE"
	TargetInactive = "INACTIVE"
)

// NormalizeTarget upper-cases a buffer selector and substitutes the default
// INACTIVE selector for an empty string. Tokens other than the two known
// buffer names pass through unchanged; the firmware owns that trust
// boundary and may accept more selectors in the future.
func NormalizeTarget(target string) string {
	if target == "" {
		return TargetInactive
	}
	return strings.ToUpper(target)
}

// Write encodes a WRITE command for one buffer step:
//
//	WRITE <index> <x> <y> <flags> <TARGET>
//
// All four numeric inputs must be in [0,255].
func Write(index, x, y, flags int, target string) (string, error) {
	if err := checkByte("index", index); err != nil {
		return "", err
	}
	if err := checkByte("x", x); err != nil {
		return "", err
	}
	if err := checkByte("y", y); err != nil {
		return "", err
	}
	if err := checkByte("flags", flags); err != nil {
		return "", err
	}
	return fmt.Sprintf("WRITE %d %d %d %d %s", index, x, y, flags, NormalizeTarget(target)), nil
}

// Dump encodes a DUMP command requesting the full contents of a buffer.
func Dump(target string) string {
	return "DUMP " + NormalizeTarget(target)
}

// Clear encodes a CLEAR command zeroing a buffer.
func Clear(target string) string {
	return "CLEAR " + NormalizeTarget(target)
}

// Swap encodes the SWAP command exchanging the active/inactive buffer roles.
func Swap() string {
	return "SWAP"
}

// Size encodes a SIZE command declaring how many entries of a buffer are
// valid. n must be in [1,256].
func Size(n int, target string) (string, error) {
	if err := checkSize(n); err != nil {
		return "", err
	}
	return fmt.Sprintf("SIZE %d %s", n, NormalizeTarget(target)), nil
}
