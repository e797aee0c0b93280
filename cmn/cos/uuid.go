// Package cos provides common low-level types and utilities shared by every
// fabric package, adapted from the teacher's cmn/cos/uuid.go.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"fmt"
	"sync/atomic"

	"github.com/teris-io/shortid"
)

// Alphabet for generating short ids, as per the teacher's shortid.DEFAULT_ABC.
const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

const (
	// LenShortID is the generated short-id length, per teris-io/shortid.
	LenShortID = 9
	tooLongID  = 32
)

var (
	sid  *shortid.Shortid
	rtie atomic.Uint32
)

// InitShortID seeds the short-id generator; call once at process startup.
func InitShortID(seed uint64) {
	sid = shortid.MustNew(4 /*worker*/, uuidABC, seed)
}

// GenShortID mints a short id from the generator seeded by InitShortID,
// which must run first (GenShortID panics on an unseeded generator).
func GenShortID() (id string) {
	id = sid.MustGenerate()
	if !isAlpha(id[0]) {
		tie := rtie.Add(1)
		id = string(rune('A'+tie%26)) + id
	}
	c := id[len(id)-1]
	if c == '-' || c == '_' {
		tie := rtie.Add(1)
		id += string(rune('a' + tie%26))
	}
	return id
}

func IsValidShortID(id string) bool {
	return len(id) >= LenShortID && IsAlphaNice(id)
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IsAlphaNice reports whether s is letters/numbers plus interior '-'/'_',
// matching the teacher's identifier-safety convention; used to validate
// control ids (spec §3 "Control": `[A-Za-z_][A-Za-z0-9_]*`-adjacent check
// happens in the device package — this is the looser id-safety check used
// for short-ids).
func IsAlphaNice(s string) bool {
	l := len(s)
	if l == 0 || l > tooLongID {
		return false
	}
	for i := 0; i < l; i++ {
		c := s[i]
		if isAlpha(c) || (c >= '0' && c <= '9') {
			continue
		}
		if c != '-' && c != '_' {
			return false
		}
		if i == 0 || i == l-1 {
			return false
		}
	}
	return true
}

// NextStreamID generates the spec's "stream-0001"-style monotonic id out of
// a per-endpoint atomic counter (spec §4.2 "Stream manager").
func NextStreamID(counter *atomic.Uint64) string {
	n := counter.Add(1)
	return fmt.Sprintf("stream-%04d", n)
}
