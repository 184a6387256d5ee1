package ledger

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// CodeGenerator issues the time-based unique inventory codes. Codes keep the
// historical INV- prefix and are generated once at creation; they never
// change afterwards.
type CodeGenerator struct {
	node *snowflake.Node
}

// NewCodeGenerator builds a generator for the given worker node id.
func NewCodeGenerator(nodeID int64) (*CodeGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node: %w", err)
	}
	return &CodeGenerator{node: node}, nil
}

// ItemCode returns a fresh inventory item code.
func (g *CodeGenerator) ItemCode() string {
	return fmt.Sprintf("INV-%s", g.node.Generate())
}
