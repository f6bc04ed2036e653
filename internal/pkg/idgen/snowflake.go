package idgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	node    *snowflake.Node
	nodeErr error
	once    sync.Once
)

// Initialize sets up the Snowflake ID generator with a node ID.
// Only the first call has an effect.
func Initialize(nodeID int64) error {
	once.Do(func() {
		node, nodeErr = snowflake.NewNode(nodeID)
	})
	return nodeErr
}

// GenerateID generates a new Snowflake ID as a string
func GenerateID() string {
	if err := Initialize(1); err != nil {
		// node ids are validated at startup; 1 is always valid
		panic(fmt.Sprintf("idgen: %v", err))
	}
	return node.Generate().String()
}

// IssuedAt returns the time encoded in an id produced by GenerateID
func IssuedAt(id string) (time.Time, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid id %q: %w", id, err)
	}
	return time.UnixMilli(parsed.Time()), nil
}
