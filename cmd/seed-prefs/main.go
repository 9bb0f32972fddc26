// Command seed-prefs writes initial table preferences for every model of the
// schema snapshot in a data directory. Existing preferences are kept unless
// -force is given.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flowmesh/schemaui/internal/prefs"
	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/table"
)

func main() {
	// Use default data directory (same as running server)
	dataDir := flag.String("data-dir", "./data", "Data directory path")
	pageSize := flag.Int("page-size", prefs.DefaultPageSize, "Page size to seed")
	force := flag.Bool("force", false, "Overwrite existing preferences")
	flag.Parse()

	registry := schema.NewRegistry(filepath.Join(*dataDir, "schema"))
	doc, err := registry.LoadCached()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load schema snapshot: %v\n", err)
		os.Exit(1)
	}

	store, err := prefs.Open(filepath.Join(*dataDir, "prefs"), prefs.Preferences{PageSize: *pageSize})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open preference store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	existing := make(map[string]bool)
	for _, m := range store.Models() {
		existing[m] = true
	}

	fmt.Println("Seeding preferences...")
	for _, model := range doc.JSONRootModels() {
		if existing[model] && !*force {
			fmt.Printf("Preferences already exist: %s\n", model)
			continue
		}

		node, err := doc.ResolveModel(model)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to resolve %s: %v\n", model, err)
			continue
		}

		p := prefs.Preferences{PageSize: *pageSize}
		for _, col := range table.Columns(doc, node) {
			p.ColumnOrder = append(p.ColumnOrder, col.Key)
		}
		if err := store.Put(model, p); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to seed %s: %v\n", model, err)
			continue
		}
		fmt.Printf("Seeded preferences: %s (%d columns)\n", model, len(p.ColumnOrder))
	}

	fmt.Println("Done.")
}
