// Command sqilrun is the CLI entrypoint for the reference engine: it
// loads a catalog (in-memory, or badger-backed via -db), plans and runs
// a demo query through the full planner/protocol/refexec stack, and
// prints the result and its pushdown decisions. Grounded on the
// teacher's cmd/datalog/main.go: flags -db, -verbose, -no-color and
// -explain, and seed-demo-data-when-empty behavior, restyled around a
// fixed demo catalog/query pair instead of an interactive Datalog REPL.
// It takes no query input.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sqilrun/sqil/catalogcli"
	"github.com/sqilrun/sqil/planner"
	"github.com/sqilrun/sqil/protocol"
	"github.com/sqilrun/sqil/refexec"
	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
	"github.com/sqilrun/sqil/wire"
)

func main() {
	var dbPath string
	var verbose bool
	var noColor bool
	var explainFormat string

	flag.StringVar(&dbPath, "db", "", "badger-backed catalog directory (default: in-memory, not persisted)")
	flag.BoolVar(&verbose, "verbose", false, "print the pushdown plan shape and cache stats")
	flag.BoolVar(&noColor, "no-color", false, "disable ANSI colorization")
	flag.StringVar(&explainFormat, "explain", "table", "plan shape rendering when -verbose is set: table or json")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs a demo query through the planner/protocol/refexec stack.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := log.New(os.Stderr, "sqilrun: ", log.LstdFlags)

	peopleCfg := sqil.NewEntityConfig("people", []sqil.AttributeConfig{
		{Id: "first_name", Type: value.Utf8StringType(value.StringOptions{})},
		{Id: "last_name", Type: value.Utf8StringType(value.StringOptions{})},
		{Id: "city", Type: value.Utf8StringType(value.StringOptions{})},
		{Id: "age", Type: value.Int32Type()},
	}, sqil.EntitySourceConfig{Table: "people"})

	var catalog *refexec.Catalog
	var closeCatalog func() error

	if dbPath != "" {
		dc, err := refexec.OpenDurable(dbPath, []sqil.EntityConfig{peopleCfg})
		if err != nil {
			logger.Fatalf("opening durable catalog at %q: %v", dbPath, err)
		}
		catalog = dc.Catalog
		closeCatalog = dc.Close
	} else {
		catalog = refexec.NewCatalog([]sqil.EntityConfig{peopleCfg})
	}
	defer func() {
		if closeCatalog != nil {
			if err := closeCatalog(); err != nil {
				logger.Printf("closing catalog: %v", err)
			}
		}
	}()

	if n, _ := catalog.RowCount("people"); n == 0 {
		fmt.Println("catalog is empty, seeding demo data...")
		seedDemoData(catalog)
	}

	fmtr := catalogcli.NewFormatter(os.Stdout)
	fmtr.NoColor = noColor

	connector := protocol.NewRefConnector(catalog)
	cache := planner.NewPlanCache(64, 5*time.Minute)
	pl := planner.NewPlanner(connector, cache, logger)

	fmtr.PrintSection("people in New York, 25 or older")
	shape, err := runDemoQuery(pl, fmtr)
	if err != nil {
		fmtr.PrintError(err)
		os.Exit(1)
	}
	if verbose {
		stats := cache.Stats()
		if explainFormat == "json" {
			if err := fmtr.PrintPlanShapeJSON(shape, &stats); err != nil {
				logger.Fatalf("rendering JSON explain: %v", err)
			}
		} else {
			fmtr.PrintSection("pushdown plan shape")
			fmtr.PrintPlanShape(shape)
			fmtr.PrintCacheStats(stats)
		}
	}
}

func seedDemoData(catalog *refexec.Catalog) {
	catalog.Seed("people",
		refexec.Row{value.Utf8String("Alice"), value.Utf8String("Anderson"), value.Utf8String("New York"), value.Int32(30), value.UInt64(0)},
		refexec.Row{value.Utf8String("Bob"), value.Utf8String("Brown"), value.Utf8String("Boston"), value.Int32(25), value.UInt64(1)},
		refexec.Row{value.Utf8String("Charlie"), value.Utf8String("Clark"), value.Utf8String("New York"), value.Int32(35), value.UInt64(2)},
		refexec.Row{value.Utf8String("Dana"), value.Utf8String("Diaz"), value.Utf8String("New York"), value.Int32(19), value.UInt64(3)},
	)
}

// runDemoQuery plans "SELECT first_name, last_name, age FROM people WHERE
// city = 'New York' AND age >= 25" through the planner, executes it
// against the RefConnector, prints the result, and returns the plan's
// recorded pushdown shape.
func runDemoQuery(pl *planner.Planner, fmtr *catalogcli.Formatter) (*planner.PlanShape, error) {
	src := sqil.NewEntitySource("people", "p")
	plan, err := pl.NewSelect(src, "people", nil)
	if err != nil {
		return nil, fmt.Errorf("planning select: %w", err)
	}
	defer plan.Close()

	for _, attr := range []string{"first_name", "last_name", "age"} {
		if err := plan.AddColumn(attr, planner.HostVarExpr("people", attr)); err != nil {
			return nil, fmt.Errorf("adding column %q: %w", attr, err)
		}
	}

	cityFilter := planner.HostBinaryExpr(
		planner.HostVarExpr("people", "city"), sqil.Equal, planner.HostConstExpr(value.Utf8String("New York")),
	)
	if err := plan.PushWhere(cityFilter); err != nil {
		return nil, fmt.Errorf("pushing city filter: %w", err)
	}
	ageFilter := planner.HostBinaryExpr(
		planner.HostVarExpr("people", "age"), sqil.Ge, planner.HostConstExpr(value.Int32(25)),
	)
	if err := plan.PushWhere(ageFilter); err != nil {
		return nil, fmt.Errorf("pushing age filter: %w", err)
	}

	if _, err := plan.Prepare(); err != nil {
		return nil, fmt.Errorf("preparing: %w", err)
	}
	if err := plan.WriteParams(); err != nil {
		return nil, fmt.Errorf("writing params: %w", err)
	}
	rowStructure, err := plan.Execute()
	if err != nil {
		return nil, fmt.Errorf("executing: %w", err)
	}

	colTypes := make([]value.Type, len(rowStructure.Cols))
	for i, c := range rowStructure.Cols {
		colTypes[i] = c.Type
	}
	reader := wire.NewReader(plan, colTypes)

	rs := &refexec.ResultSet{}
	for _, c := range rowStructure.Cols {
		rs.Columns = append(rs.Columns, refexec.Column{Name: c.Name, Type: c.Type})
	}
rows:
	for {
		row := make([]value.Value, 0, len(colTypes))
		for range colTypes {
			v, ok, err := reader.ReadValue()
			if err != nil {
				return nil, fmt.Errorf("reading result: %w", err)
			}
			if !ok {
				if len(row) != 0 {
					return nil, fmt.Errorf("reading result: truncated row")
				}
				break rows
			}
			row = append(row, v)
		}
		rs.Rows = append(rs.Rows, row)
	}
	fmtr.PrintResultSet(rs)
	return plan.Shape(), nil
}
