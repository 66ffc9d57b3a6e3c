package main

import (
	"strings"
	"testing"
)

func TestRenderTableAlignsNumericColumns(t *testing.T) {
	out := renderTable(tableView{
		headers: []string{"Name", "Size"},
		numeric: []int{1},
	}, [][]string{
		{"a.bin", "100"},
		{"b.bin", "5"},
	})

	for _, want := range []string{"Name", "Size", "a.bin", "b.bin"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	// Right alignment pads the short value on the left.
	if !strings.Contains(out, "   5 ") {
		t.Fatalf("size column not right-aligned:\n%s", out)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(tableView{headers: []string{"Key", "Value"}}, [][]string{{"only"}})
	if !strings.Contains(out, "only") {
		t.Fatalf("output missing row:\n%s", out)
	}
}

func TestRenderTableEmptyView(t *testing.T) {
	if out := renderTable(tableView{}, nil); out != "" {
		t.Fatalf("out = %q, want empty", out)
	}
}
