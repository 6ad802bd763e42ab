package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/wudi/formkit/config"
	"github.com/wudi/formkit/forms"
	"github.com/wudi/formkit/observability"
)

type fieldSummary struct {
	Name     string       `json:"name"`
	Kind     string       `json:"kind"`
	Value    *forms.Value `json:"value,omitempty"`
	ReadOnly bool         `json:"readOnly,omitempty"`
	Required bool         `json:"required,omitempty"`
	MaxLen   int          `json:"maxLen,omitempty"`
	Options  []string     `json:"options,omitempty"`
	Pages    []int        `json:"pages"`
}

func summarize(f forms.Field) fieldSummary {
	s := fieldSummary{
		Name:     f.Name,
		Kind:     f.Kind.String(),
		ReadOnly: f.ReadOnly(),
		Required: f.Flags&forms.FlagRequired != 0,
		Pages:    []int{},
	}
	if v, ok := forms.CurrentValue(f); ok {
		s.Value = &v
	}
	switch st := f.State.(type) {
	case forms.TextState:
		s.MaxLen = st.MaxLen
	case forms.ChoiceState:
		s.Options = st.Options
	case forms.UnsupportedState:
		s.Kind += " (" + st.FieldType + ")"
	}
	for _, w := range f.Widgets {
		if w.Page >= 0 {
			s.Pages = append(s.Pages, w.Page+1)
		}
	}
	return s
}

func runFields(ctx context.Context, cfg config.Options, logger observability.Logger, args []string, stdout io.Writer) error {
	fs := newFlagSet("fields", "<pdf>")
	table := fs.Bool("table", false, "Print an aligned table instead of JSON")
	values := fs.Bool("values", false, "Print only the value snapshot, in the format fill reads")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	doc, err := openFile(ctx, fs, cfg, logger)
	if err != nil {
		return err
	}
	if *values {
		return emitJSON(stdout, doc.Snapshot())
	}
	summaries := make([]fieldSummary, 0, len(doc.Fields()))
	for _, f := range doc.Fields() {
		summaries = append(summaries, summarize(f))
	}
	if *table {
		return printTable(stdout, summaries)
	}
	return emitJSON(stdout, summaries)
}

func emitJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// printTable aligns columns by display width so that CJK field values
// line up.
func printTable(w io.Writer, rows []fieldSummary) error {
	header := []string{"NAME", "KIND", "VALUE", "PAGES"}
	cells := [][]string{header}
	for _, r := range rows {
		value := ""
		if r.Value != nil {
			value = r.Value.String()
		}
		pages := make([]string, len(r.Pages))
		for i, p := range r.Pages {
			pages[i] = fmt.Sprint(p)
		}
		cells = append(cells, []string{r.Name, r.Kind, runewidth.Truncate(value, 40, "..."), strings.Join(pages, ",")})
	}
	widths := make([]int, len(header))
	for _, row := range cells {
		for i, c := range row {
			if n := runewidth.StringWidth(c); n > widths[i] {
				widths[i] = n
			}
		}
	}
	for _, row := range cells {
		var b strings.Builder
		for i, c := range row {
			if i == len(row)-1 {
				b.WriteString(c)
				break
			}
			b.WriteString(runewidth.FillRight(c, widths[i]+2))
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}
