// Command vecsearch manages collections and serves nearest-neighbor search.
//
// Usage:
//
//	vecsearch [flags] <command> [subcommand] [args]
//
// Commands:
//
//	collection    - create, list, get and delete collections
//	points        - add and list points
//	search        - search a collection with a query vector
//	search-by-id  - search with the embedding of a stored point
//	similarity    - compare two vectors
//	warm          - build indexes ahead of queries
//	snapshot      - list and delete persisted index snapshots
//	serve         - run the HTTP API
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hupe1980/vecsearch/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
