package planner

import "github.com/sqilrun/sqil/protocol"

// Default cost estimates a connector is entitled to leave unset
// (protocol.OperationCost's fields are all optional); the planner
// substitutes these so it can always compare costs (spec.md §4.7.3).
const (
	DefaultRows           uint64  = 100_000
	DefaultConnectionCost uint64  = 100
	DefaultTupleCost      float64 = 0.01
)

// FillDefaults returns a copy of c with every unset field filled in from
// the defaults above, and TotalCost computed as
// connection_cost + rows*tuple_cost when the connector left it unset.
func FillDefaults(c protocol.OperationCost) protocol.OperationCost {
	rows := DefaultRows
	if c.Rows != nil {
		rows = *c.Rows
	}
	connCost := DefaultConnectionCost
	if c.ConnectionCost != nil {
		connCost = *c.ConnectionCost
	}
	total := connCost + uint64(float64(rows)*DefaultTupleCost)
	if c.TotalCost != nil {
		total = *c.TotalCost
	}
	out := c
	out.Rows = &rows
	out.ConnectionCost = &connCost
	out.TotalCost = &total
	return out
}
