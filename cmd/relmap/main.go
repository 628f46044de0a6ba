// relmap inspects and runs schema documents: routes, compiled SQL, table
// definitions and live queries.
//
// Usage:
//
//	relmap route schema.yaml 'Person:surname=Curie' 'Office!'
//	relmap sql --dialect postgres schema.yaml 'Person:surname=Curie' 'Office!'
//	relmap ddl schema.yaml -o schema.sql
//	relmap query --dsn app.db schema.yaml 'Person@Partner!'
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
