// Package tsid generates time-sorted identifiers used for presence sessions.
//
// An id is 64 bits: 42 bits of milliseconds since 2020-01-01 followed by 22
// bits of randomness, rendered as 13 characters of Crockford Base32. Ids
// generated by one Generator stay unique and ordered: within a millisecond
// the random part is incremented instead of redrawn.
package tsid

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

const (
	epochMillis = 1577836800000

	randomBits = 22
	randomMask = 1<<randomBits - 1

	// Length is the encoded length of an id
	Length = 13

	alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

// ErrInvalid is returned when a string is not a valid id
var ErrInvalid = errors.New("invalid tsid")

var defaultGenerator = NewGenerator(time.Now)

// Generator produces ids for a single process
type Generator struct {
	mu       sync.Mutex
	now      func() time.Time
	lastTime int64
	sequence uint32
}

// NewGenerator creates a generator reading time from now
func NewGenerator(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Generate returns a new id from the default generator
func Generate() string {
	return defaultGenerator.Generate()
}

// Generate returns a new id
func (g *Generator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	millis := g.now().UnixMilli() - epochMillis
	if millis < g.lastTime {
		// Clock went backwards; keep ordering by reusing the last timestamp
		millis = g.lastTime
	}

	if millis == g.lastTime && g.sequence < randomMask {
		g.sequence++
	} else {
		if millis == g.lastTime {
			// Sequence exhausted for this millisecond
			millis++
		}
		var buf [4]byte
		rand.Read(buf[:])
		// Start in the lower half so the sequence has room to grow
		g.sequence = binary.BigEndian.Uint32(buf[:]) & (randomMask >> 1)
		g.lastTime = millis
	}

	return encode(uint64(millis)<<randomBits | uint64(g.sequence))
}

// Timestamp returns the creation time encoded in an id
func Timestamp(id string) (time.Time, error) {
	value, err := decode(id)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(value>>randomBits) + epochMillis), nil
}

// Valid reports whether id is a well-formed id
func Valid(id string) bool {
	_, err := decode(id)
	return err == nil
}

func encode(value uint64) string {
	out := make([]byte, Length)
	for i := Length - 1; i >= 0; i-- {
		out[i] = alphabet[value&0x1F]
		value >>= 5
	}
	return string(out)
}

func decode(s string) (uint64, error) {
	if len(s) != Length {
		return 0, ErrInvalid
	}
	// The leading character only carries 4 bits
	if index(s[0]) > 15 {
		return 0, ErrInvalid
	}

	var value uint64
	for i := 0; i < len(s); i++ {
		idx := index(s[i])
		if idx < 0 {
			return 0, ErrInvalid
		}
		value = value<<5 | uint64(idx)
	}
	return value, nil
}

// index maps a Crockford character to its value, accepting lower case and
// the usual confusable substitutions (I, L -> 1 and O -> 0)
func index(c byte) int {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	switch c {
	case 'I', 'L':
		return 1
	case 'O':
		return 0
	case 'U':
		return -1
	}
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}
