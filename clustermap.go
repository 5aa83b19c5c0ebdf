package udefrag

// CellState is the coarse classification of a cluster-map cell. Several
// real clusters are folded into one cell; the map exists purely for UI
// rendering handed off to an external collaborator (§2) and is never
// consulted by Search, Move, or any strategy.
type CellState int

const (
	CellFree CellState = iota
	CellSystem
	CellUnfragmented
	CellFragmented
	CellCompressed
	CellMftZone
	CellMftReserved
	CellTemporarySystem
)

// ClusterMap is an abstract per-cell map, grounded on map.c: one
// clusters_per_256k-sized cell per UI pixel column, each holding the state
// last painted into it. No per-state cluster count is kept.
type ClusterMap struct {
	totalClusters   uint64
	clustersPerCell uint64
	cells           []CellState
}

// NewClusterMap allocates a map sized so clustersPerCell clusters fold into
// one cell, per the volume's ClustersPer256K geometry value.
func NewClusterMap(totalClusters, clustersPerCell uint64) *ClusterMap {
	if clustersPerCell < 1 {
		clustersPerCell = 1
	}

	cellCount := (totalClusters + clustersPerCell - 1) / clustersPerCell
	return &ClusterMap{
		totalClusters:   totalClusters,
		clustersPerCell: clustersPerCell,
		cells:           make([]CellState, cellCount),
	}
}

func (m *ClusterMap) cellIndex(lcn Lcn) int {
	idx := uint64(lcn) / m.clustersPerCell
	if idx >= uint64(len(m.cells)) {
		idx = uint64(len(m.cells)) - 1
	}
	return int(idx)
}

// Paint marks every cell touched by [lcn, lcn+length) with state. Later
// calls for the same cell win — this is a coarse tally, not a precise
// per-cluster ledger (§2).
func (m *ClusterMap) Paint(lcn Lcn, length Length, state CellState) {
	if length == 0 || len(m.cells) == 0 {
		return
	}

	start := m.cellIndex(lcn)
	end := m.cellIndex(Lcn(uint64(lcn) + uint64(length) - 1))

	for i := start; i <= end && i < len(m.cells); i++ {
		m.cells[i] = state
	}
}

// CellCount is the number of cells in the map.
func (m *ClusterMap) CellCount() int {
	return len(m.cells)
}

// Cell returns the state of cell i.
func (m *ClusterMap) Cell(i int) CellState {
	return m.cells[i]
}
