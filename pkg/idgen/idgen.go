// Package idgen generates record identifiers.
//
// Two generators are provided: Snowflake (time-ordered 64-bit ids rendered in
// base 10, the default) and ULID (lexicographically sortable 26 character ids).
package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
)

// Generator produces unique record ids.
type Generator interface {
	// NewID returns a new unique id.
	NewID() string
}

// Snowflake generates ids with a snowflake node.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake creates a snowflake generator for the given node (0-1023).
func NewSnowflake(node int64) (*Snowflake, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("NewSnowflake: %w", err)
	}
	return &Snowflake{node: n}, nil
}

// NewID implements Generator.
func (s *Snowflake) NewID() string {
	return s.node.Generate().String()
}

// ULID generates monotonic ULIDs. It is safe for concurrent use.
type ULID struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewULID creates a ULID generator.
func NewULID() *ULID {
	return &ULID{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewID implements Generator.
func (u *ULID) NewID() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), u.entropy).String()
}

// New returns the generator named kind ("snowflake" or "ulid").
func New(kind string, node int64) (Generator, error) {
	switch strings.ToLower(kind) {
	case "", "snowflake":
		return NewSnowflake(node)
	case "ulid":
		return NewULID(), nil
	default:
		return nil, fmt.Errorf("unsupported id generator: %s", kind)
	}
}
