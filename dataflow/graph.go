// Package dataflow implements the incremental-view-maintenance engine:
// lifted relational operators (filter/project/map/join/aggregate)
// compiled into a tree of nodes, and materialized view state that keeps
// a cached result in sync by pushing delta batches through that tree
// instead of re-executing a query.
package dataflow

import "github.com/kasuganosora/cynos/value"

// NodeId is a 32-bit arena index into a Graph.
type NodeId uint32

// TableID names a dataflow Source's underlying table.
type TableID = string

type nodeKind int

const (
	kindSource nodeKind = iota
	kindFilter
	kindProject
	kindMap
	kindJoin
	kindAggregate
)

// JoinType selects the output shape of a Join node.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeftOuter
	JoinRightOuter
	JoinFullOuter
)

// AggFunc is one of the fixed aggregate functions an Aggregate node supports.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

// AggSpec pairs an aggregate function with the column it aggregates
// (ignored for Count).
type AggSpec struct {
	Col  int
	Func AggFunc
}

type node struct {
	kind nodeKind

	table TableID // Source

	input NodeId // Filter/Project/Map/Aggregate

	pred  func(*value.Row) bool          // Filter
	cols  []int                          // Project
	mapFn func(*value.Row) *value.Row    // Map

	left, right       NodeId                         // Join
	leftKey, rightKey func(*value.Row) value.Value   // Join
	joinType          JoinType
	leftWidth         int // Join, column count of the left side's rows
	rightWidth        int // Join, column count of the right side's rows

	groupBy []int     // Aggregate
	aggs    []AggSpec // Aggregate

	sources map[TableID]bool // collect_sources(), computed once at insertion
}

// Graph is a flat arena of dataflow nodes for one compiled query, plus
// an inverted TableID → []NodeId index used to cheaply decide whether a
// table mutation is relevant to this graph at all.
type Graph struct {
	nodes    []node // index 0 unused; NodeId 0 is never valid
	root     NodeId
	tableIdx map[TableID][]NodeId
}

func NewGraph() *Graph {
	return &Graph{nodes: make([]node, 1), tableIdx: make(map[TableID][]NodeId)}
}

func (g *Graph) alloc(n node) NodeId {
	g.nodes = append(g.nodes, n)
	id := NodeId(len(g.nodes) - 1)
	for t := range n.sources {
		g.tableIdx[t] = append(g.tableIdx[t], id)
	}
	return id
}

func (g *Graph) at(id NodeId) *node { return &g.nodes[id] }

// SetRoot designates which node the view materializes.
func (g *Graph) SetRoot(id NodeId) { g.root = id }

func (g *Graph) Root() NodeId { return g.root }

// DependsOn reports whether any node in the graph transitively consumes
// from table.
func (g *Graph) DependsOn(table TableID) bool {
	_, ok := g.tableIdx[table]
	return ok
}

// CollectSources returns the table names reachable from id.
func (g *Graph) CollectSources(id NodeId) map[TableID]bool { return g.at(id).sources }

func mergeSources(sets ...map[TableID]bool) map[TableID]bool {
	out := make(map[TableID]bool)
	for _, s := range sets {
		for t := range s {
			out[t] = true
		}
	}
	return out
}

func (g *Graph) AddSource(table TableID) NodeId {
	return g.alloc(node{kind: kindSource, table: table, sources: map[TableID]bool{table: true}})
}

func (g *Graph) AddFilter(input NodeId, pred func(*value.Row) bool) NodeId {
	return g.alloc(node{kind: kindFilter, input: input, pred: pred, sources: mergeSources(g.at(input).sources)})
}

func (g *Graph) AddProject(input NodeId, cols []int) NodeId {
	return g.alloc(node{kind: kindProject, input: input, cols: cols, sources: mergeSources(g.at(input).sources)})
}

func (g *Graph) AddMap(input NodeId, fn func(*value.Row) *value.Row) NodeId {
	return g.alloc(node{kind: kindMap, input: input, mapFn: fn, sources: mergeSources(g.at(input).sources)})
}

// AddJoin adds a Join node. leftWidth/rightWidth are the fixed column
// counts of the left and right sides' rows, known from the compiled
// plan's schema rather than inferred from the first row seen at
// runtime: an outer join must pad with exactly the right width from
// its very first emitted row, including a pad emitted before the
// opposite side has ever delivered a row, and a retraction must pad
// with the same width the original insertion used.
func (g *Graph) AddJoin(left, right NodeId, leftKey, rightKey func(*value.Row) value.Value, jt JoinType, leftWidth, rightWidth int) NodeId {
	return g.alloc(node{
		kind: kindJoin, left: left, right: right,
		leftKey: leftKey, rightKey: rightKey, joinType: jt,
		leftWidth: leftWidth, rightWidth: rightWidth,
		sources: mergeSources(g.at(left).sources, g.at(right).sources),
	})
}

func (g *Graph) AddAggregate(input NodeId, groupBy []int, aggs []AggSpec) NodeId {
	return g.alloc(node{kind: kindAggregate, input: input, groupBy: groupBy, aggs: aggs, sources: mergeSources(g.at(input).sources)})
}
