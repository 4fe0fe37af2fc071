// Package catalogcli renders refexec results and EXPLAIN-style plan
// shapes for a terminal, the counterpart of the teacher's
// datalog/executor.TableFormatter and datalog/annotations output
// formatter, restyled around refexec.ResultSet and planner.PlanShape
// instead of a Datalog Relation and annotation Event stream.
package catalogcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/sqilrun/sqil/planner"
	"github.com/sqilrun/sqil/refexec"
)

// Formatter renders query results and plan shapes to w. Colorization can
// be turned off (e.g. when w isn't a terminal) via NoColor.
type Formatter struct {
	w       io.Writer
	NoColor bool
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) colorize(s string, attr color.Attribute) string {
	if f.NoColor {
		return s
	}
	c := color.New(attr)
	return c.Sprint(s)
}

// PrintResultSet renders rs as a markdown table, one line of "N rows"
// trailing it, matching TableFormatter.FormatRelation's layout.
func (f *Formatter) PrintResultSet(rs *refexec.ResultSet) {
	if len(rs.Columns) == 0 {
		fmt.Fprintln(f.w, f.colorize("-- statement produced no result columns --", color.FgYellow))
		return
	}
	headers := make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		headers[i] = c.Name
	}

	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(f.w,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)
	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		table.Append(cells)
	}
	table.Render()
	fmt.Fprintf(f.w, "\n%s\n", f.colorize(fmt.Sprintf("%d rows", len(rs.Rows)), color.FgGreen))
}

// PrintPlanShape renders a pushdown decision trail, one line per clause,
// green for pushed-remotely and yellow for fell-back-to-local -- the
// same red/green/yellow-by-outcome convention as output.Handle's
// match/no-match coloring.
func (f *Formatter) PrintPlanShape(shape *planner.PlanShape) {
	if shape == nil || len(shape.Pushed) == 0 {
		fmt.Fprintln(f.w, f.colorize("-- no clauses offered --", color.FgYellow))
		return
	}
	for i, pushed := range shape.Pushed {
		mark := f.colorize("pushed", color.FgGreen)
		if !pushed {
			mark = f.colorize("local", color.FgYellow)
		}
		fmt.Fprintf(f.w, "  clause %d: %s\n", i, mark)
	}
}

// PrintCacheStats renders a one-line cache hit/miss/size summary.
func (f *Formatter) PrintCacheStats(stats planner.CacheStats) {
	fmt.Fprintf(f.w, "%s hits=%d misses=%d size=%d\n",
		f.colorize("plan cache:", color.FgBlue), stats.Hits, stats.Misses, stats.Size)
}

// PrintError renders err the way output.Handle renders a failed match: a
// red "✗" marker followed by the message.
func (f *Formatter) PrintError(err error) {
	fmt.Fprintf(f.w, "%s %s\n", f.colorize("✗", color.FgRed), err.Error())
}

// PrintSection prints a "=== title ===" banner, matching output.Handle's
// section-delimiter style.
func (f *Formatter) PrintSection(title string) {
	delimiter := f.colorize(strings.Repeat("=", 3), color.FgYellow)
	fmt.Fprintf(f.w, "\n%s %s %s\n", delimiter, title, delimiter)
}

// explainClause is one row of a JSON EXPLAIN rendering: shape.Pushed's
// boolean trail given a name a machine reader can key on, since the
// uncolorized PrintPlanShape output is meant for a human terminal only.
type explainClause struct {
	Clause int    `json:"clause"`
	Result string `json:"result"`
}

// explainDoc is the JSON counterpart of PrintPlanShape/PrintCacheStats,
// for callers that want EXPLAIN output machine-readable rather than
// terminal-rendered (spec.md's EXPLAIN support, package doc).
type explainDoc struct {
	Clauses []explainClause     `json:"clauses"`
	Cache   *planner.CacheStats `json:"cache,omitempty"`
}

// PrintPlanShapeJSON renders shape (and, if non-nil, cache) as a single
// JSON object instead of PrintPlanShape's colorized terminal lines.
func (f *Formatter) PrintPlanShapeJSON(shape *planner.PlanShape, cache *planner.CacheStats) error {
	doc := explainDoc{Cache: cache}
	if shape != nil {
		for i, pushed := range shape.Pushed {
			result := "local"
			if pushed {
				result = "pushed"
			}
			doc.Clauses = append(doc.Clauses, explainClause{Clause: i, Result: result})
		}
	}
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
