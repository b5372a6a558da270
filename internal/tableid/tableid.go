// Package tableid mints compact identifiers that correlate one table's
// log lines across the pool, the worker and the sessions.
package tableid

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Crockford's base32 alphabet.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// New returns a fresh identifier: a UUIDv7 rendered as 26 base32
// characters. The embedded millisecond timestamp keeps ids roughly
// sorted by creation time.
func New() string {
	var id [16]byte

	now := time.Now().UnixMilli()
	id[0] = byte(now >> 40)
	id[1] = byte(now >> 32)
	id[2] = byte(now >> 24)
	id[3] = byte(now >> 16)
	id[4] = byte(now >> 8)
	id[5] = byte(now)

	if _, err := rand.Read(id[6:]); err != nil {
		panic("tableid: failed to generate random bytes: " + err.Error())
	}

	// Version 7, variant 10.
	id[6] = (id[6] & 0x0f) | 0x70
	id[8] = (id[8] & 0x3f) | 0x80

	return encode(id)
}

// encode renders 128 bits as 26 characters of 5 bits each. Two zero bits
// pad the front, so the first character carries only the top 3 data bits.
func encode(data [16]byte) string {
	out := make([]byte, 26)
	out[0] = alphabet[data[0]>>5]
	for i := 1; i < 26; i++ {
		bitOffset := i*5 - 2
		byteIndex := bitOffset / 8
		bitIndex := bitOffset % 8

		var v uint8
		if bitIndex <= 3 {
			v = (data[byteIndex] >> (3 - bitIndex)) & 0x1f
		} else {
			v = (data[byteIndex] << (bitIndex - 3)) & 0x1f
			if byteIndex+1 < 16 {
				v |= data[byteIndex+1] >> (11 - bitIndex)
			}
		}
		out[i] = alphabet[v]
	}
	return string(out)
}

// Validate reports whether id could have come from New.
func Validate(id string) error {
	if len(id) != 26 {
		return fmt.Errorf("table id must be 26 characters, got %d", len(id))
	}
	// 130 encoded bits hold only 128 bits of data, so the first
	// character carries 3 significant bits at most.
	if id[0] > '7' {
		return fmt.Errorf("table id first character must be 0-7, got %c", id[0])
	}
	for i := 0; i < len(id); i++ {
		if !validChar(id[i]) {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}

func validChar(c byte) bool {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return true
		}
	}
	return false
}
