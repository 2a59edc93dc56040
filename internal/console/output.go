package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/me/mdconsole/pkg/model"
)

var levelColors = map[model.MessageLevel]*color.Color{
	model.LevelSuccess:     color.New(color.FgGreen),
	model.LevelInformation: color.New(color.FgCyan),
	model.LevelWarning:     color.New(color.FgYellow),
	model.LevelError:       color.New(color.FgRed, color.Bold),
}

// notifier prints notices as level-tagged lines. It is safe for concurrent
// use since fetches complete on their own goroutines.
type notifier struct {
	mu     sync.Mutex
	w      io.Writer
	errors int
}

func newNotifier(w io.Writer) *notifier {
	return &notifier{w: w}
}

func (n *notifier) Notify(level model.MessageLevel, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if level == model.LevelError {
		n.errors++
	}
	tag := strings.ToUpper(level.String())
	if tag == "" {
		tag = "INFORMATION"
	}
	if c, ok := levelColors[level]; ok {
		tag = c.Sprint(tag)
	}
	fmt.Fprintf(n.w, "[%s] %s\n", tag, text)
}

// Errors returns how many error notices have been printed.
func (n *notifier) Errors() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.errors
}

// renderTable writes headers and rows as aligned columns.
func renderTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	line := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}
	line(headers)
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	line(dashes)
	for _, row := range rows {
		line(row)
	}
}

// renderPage prints one page of records followed by the pager line.
func renderPage[T model.Record](w io.Writer, e model.Entity, items []T, q model.Query, total int) {
	if len(items) == 0 {
		if q.Search != "" {
			fmt.Fprintf(w, "No %s match %q.\n", strings.ToLower(e.Title)+"s", q.Search)
		} else {
			fmt.Fprintf(w, "No %s found.\n", strings.ToLower(e.Title)+"s")
		}
		return
	}
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = it.Columns()
	}
	renderTable(w, e.Headers, rows)
	fmt.Fprintf(w, "\nPage %d of %d (%d records)\n", q.PageNumber(), model.TotalPages(total, q.PageSize), total)
}

// renderRecord prints one record as header: value lines.
func renderRecord[T model.Record](w io.Writer, e model.Entity, rec T) {
	cols := rec.Columns()
	width := 0
	for _, h := range e.Headers {
		width = max(width, len(h))
	}
	for i, h := range e.Headers {
		v := ""
		if i < len(cols) {
			v = cols[i]
		}
		fmt.Fprintf(w, "%-*s  %s\n", width+1, h+":", v)
	}
}

// printFieldErrors lists inline validation cues under the form.
func printFieldErrors(w io.Writer, errs []model.FieldError) {
	for _, fe := range errs {
		fmt.Fprintf(w, "  %s: %s\n", fe.Field, fe.Message)
	}
}
