// Command logcheck is a small developer tool for inspecting a table
// written by pkg/logstore: it reports whether the table's on-disk size
// checkpoint still matches reality and, with -marks, how many rows a
// single-stream scan of every column covers. It does not print individual
// marks or per-substream file sizes.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"logstore/pkg/coltype"
	"logstore/pkg/logstore"
)

func main() {
	var (
		rootDir = flag.String("dir", ".", "directory containing the table")
		table   = flag.String("table", "", "table name (required)")
		cols    = flag.String("schema", "", "comma-separated col:type pairs, e.g. id:int64,name:string (required to open an existing table)")
		dump    = flag.Bool("marks", false, "report the rows covered by a single-stream scan of the table")
	)
	flag.Parse()

	if *table == "" || *cols == "" {
		fmt.Fprintln(os.Stderr, "usage: logcheck -table NAME -schema id:int64,name:string [-dir DIR] [-marks]")
		os.Exit(2)
	}

	columns, err := parseSchema(*cols)
	if err != nil {
		log.Fatalf("logcheck: %v", err)
	}

	desc, err := logstore.Create(*rootDir, *table, columns, 0)
	if err != nil {
		log.Fatalf("logcheck: open table %q: %v", *table, err)
	}

	ok, err := desc.CheckData()
	if err != nil {
		log.Fatalf("logcheck: check %q: %v", *table, err)
	}
	fmt.Printf("table %q: size checkpoint %s\n", *table, checkWord(ok))

	if *dump {
		if err := desc.EnsureMarksLoaded(); err != nil {
			log.Fatalf("logcheck: load marks for %q: %v", *table, err)
		}
		// Row counts are derived by reading every column through a
		// single-stream scan.
		plan, err := desc.Read(nil, 1, 0, 0)
		if err != nil {
			log.Fatalf("logcheck: plan scan of %q: %v", *table, err)
		}
		defer plan.Release()
		for _, r := range plan.Readers {
			var rows uint64
			for {
				block, err := r.Next()
				if err != nil {
					break
				}
				rows += block.NumRows()
			}
			fmt.Printf("reader covers %d rows\n", rows)
		}
	}
}

func checkWord(ok bool) string {
	if ok {
		return "OK"
	}
	return "MISMATCH"
}

func parseSchema(spec string) ([]logstore.ColumnDef, error) {
	var defs []logstore.ColumnDef
	for _, pair := range splitNonEmpty(spec, ',') {
		name, typ, ok := splitOnce(pair, ':')
		if !ok {
			return nil, fmt.Errorf("malformed column spec %q, want name:type", pair)
		}
		dt, err := parseType(typ)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		defs = append(defs, logstore.ColumnDef{Name: name, Type: dt})
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("empty schema")
	}
	return defs, nil
}

func parseType(typ string) (coltype.DataType, error) {
	switch typ {
	case "int64":
		return coltype.Int64Type{}, nil
	case "string":
		return coltype.StringType{}, nil
	case "nullable(int64)":
		return coltype.NullableType{Inner: coltype.Int64Type{}}, nil
	case "nullable(string)":
		return coltype.NullableType{Inner: coltype.StringType{}}, nil
	case "array(int64)":
		return coltype.ArrayType{Element: coltype.Int64Type{}}, nil
	case "array(string)":
		return coltype.ArrayType{Element: coltype.StringType{}}, nil
	default:
		return nil, fmt.Errorf("unsupported type %q", typ)
	}
}

func splitNonEmpty(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				parts = append(parts, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}

func splitOnce(s string, sep byte) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
