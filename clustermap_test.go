package udefrag

import "testing"

func TestClusterMapPaintFoldsMultipleClustersIntoOneCell(t *testing.T) {
	m := NewClusterMap(1000, 100)

	if m.CellCount() != 10 {
		t.Fatalf("expected 10 cells, got %d", m.CellCount())
	}

	m.Paint(0, 50, CellFragmented)
	if m.Cell(0) != CellFragmented {
		t.Fatalf("expected cell 0 to be fragmented, got %v", m.Cell(0))
	}
	if m.Cell(1) != CellFree {
		t.Fatalf("expected cell 1 to remain free, got %v", m.Cell(1))
	}
}

func TestClusterMapPaintSpansMultipleCells(t *testing.T) {
	m := NewClusterMap(1000, 100)

	m.Paint(90, 30, CellMftZone)

	if m.Cell(0) != CellMftZone || m.Cell(1) != CellMftZone {
		t.Fatalf("expected the paint to span cells 0 and 1, got %v %v", m.Cell(0), m.Cell(1))
	}
	if m.Cell(2) != CellFree {
		t.Fatalf("expected cell 2 to remain untouched, got %v", m.Cell(2))
	}
}

func TestClusterMapPaintClampsToLastCell(t *testing.T) {
	m := NewClusterMap(1000, 100)

	// a length that would overrun the map must clamp, not panic or index
	// out of range.
	m.Paint(950, 500, CellSystem)

	if m.Cell(m.CellCount()-1) != CellSystem {
		t.Fatalf("expected the last cell painted, got %v", m.Cell(m.CellCount()-1))
	}
}

func TestClusterMapPaintIgnoresZeroLength(t *testing.T) {
	m := NewClusterMap(500, 50)
	m.Paint(0, 0, CellFragmented)

	for i := 0; i < m.CellCount(); i++ {
		if m.Cell(i) != CellFree {
			t.Fatalf("expected a zero-length paint to be a no-op, cell %d = %v", i, m.Cell(i))
		}
	}
}
