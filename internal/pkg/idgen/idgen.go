// Package idgen issues identifiers for MC, GMC, purchases and participations.
package idgen

import (
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

type Generator struct {
	node *snowflake.Node
}

// New builds a snowflake generator for nodeID. When the node cannot be set up
// (out of range id) the generator falls back to KSUIDs.
func New(nodeID int64) *Generator {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return &Generator{}
	}
	return &Generator{node: node}
}

func (g *Generator) NewID() string {
	if g == nil || g.node == nil {
		return ksuid.New().String()
	}
	return g.node.Generate().String()
}

// NewEventID returns a random UUID for audit events.
func NewEventID() string {
	return uuid.NewString()
}
