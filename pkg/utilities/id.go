package utilities

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// IDGenerator hands out the identifiers used across the service: UUIDs for
// accounts, snowflake ids for pins and KSUIDs for request correlation.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator bound to a snowflake node. The node id must
// be unique per running instance (0..1023).
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &IDGenerator{node: node}, nil
}

// AccountID returns a random UUIDv4 string.
func (g *IDGenerator) AccountID() string {
	return uuid.NewString()
}

// PinID returns a time-ordered snowflake id string.
func (g *IDGenerator) PinID() string {
	return g.node.Generate().String()
}

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}
