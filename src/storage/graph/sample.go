package graph

import "github.com/Blackdeer1524/GraphCatalog/src/storage/ident"

// Sample builds (:A {name: "x"})-[:R {since: 2020}]->(:B {name: "y"}).
func Sample() *ScanGraph {
	return NewBuilder().
		Node(ident.Long(1), []string{"A"}, map[string]any{"name": "x"}).
		Node(ident.Long(2), []string{"B"}, map[string]any{"name": "y"}).
		Relationship(ident.Long(3), ident.Long(1), ident.Long(2), "R", map[string]any{"since": 2020}).
		MustBuild()
}
