package listing

import (
	"fmt"
	"html/template"
	"strconv"
)

// Column is one table header.
type Column struct {
	Key   string
	Label string
	Class string
}

// Action is a per-row control bound to the row identifier. Path is the
// backend route it targets. Href is filled in by the host: GET actions link
// to the backend, the others post back to the host, which forwards them.
type Action struct {
	Name    string
	Label   string
	Path    string
	Method  string
	Tone    string
	Confirm string
	Href    string
}

// Link reports whether the action is a plain navigation.
func (a Action) Link() bool {
	return a.Method == "" || a.Method == "GET"
}

// RowView is one rendered row.
type RowView struct {
	ID      string
	Cells   []template.HTML
	Actions []Action
}

// Action returns the row action called name.
func (v RowView) Action(name string) (Action, bool) {
	for _, a := range v.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// Renderer turns one row into its displayable fragment. Implementations are
// pure: no I/O, no shared state.
type Renderer[R any] interface {
	Columns() []Column
	Row(R) RowView
	EmptyMessage() string
}

// TableView is the body of a list table in one of its display states.
type TableView struct {
	Columns      []Column
	Rows         []RowView
	Loading      bool
	Empty        bool
	EmptyMessage string
	Failure      *Failure
}

// Span is the colspan of the placeholder cell: one per column plus the actions
// column when present.
func (t TableView) Span() int {
	return len(t.Columns) + 1
}

// Row returns the displayed row with id.
func (t TableView) Row(id string) (RowView, bool) {
	for _, row := range t.Rows {
		if row.ID == id {
			return row, true
		}
	}
	return RowView{}, false
}

// PageControl is a single pagination button.
type PageControl struct {
	Page     int
	Label    string
	Active   bool
	Disabled bool
}

// PaginationView is the pagination bar.
type PaginationView struct {
	Visible bool
	Prev    PageControl
	Pages   []PageControl
	Next    PageControl
	Range   string
}

// RenderPage maps a page result to its table. Rows keep the backend order.
func RenderPage[R any](r Renderer[R], result PageResult[R]) TableView {
	view := TableView{Columns: r.Columns()}
	if len(result.Items) == 0 {
		view.Empty = true
		view.EmptyMessage = r.EmptyMessage()
		return view
	}
	view.Rows = make([]RowView, 0, len(result.Items))
	for _, item := range result.Items {
		view.Rows = append(view.Rows, r.Row(item))
	}
	return view
}

// RenderPagination builds the Prev / window / Next controls. Nothing is shown
// when the result fits in a single page.
func RenderPagination(p Pagination) PaginationView {
	if !p.Visible() {
		return PaginationView{}
	}
	view := PaginationView{
		Visible: true,
		Prev:    PageControl{Page: p.Page - 1, Label: "Anterior", Disabled: !p.HasPrev},
		Next:    PageControl{Page: p.Page + 1, Label: "Próximo", Disabled: !p.HasNext},
	}
	for _, n := range p.Window() {
		view.Pages = append(view.Pages, PageControl{Page: n, Label: strconv.Itoa(n), Active: n == p.Page})
	}
	if first, last := p.Range(); last > 0 {
		view.Range = fmt.Sprintf("Exibindo %d a %d de %d", first, last, p.TotalItems)
	}
	return view
}

// Summary is the record counter shown above the table.
func Summary(p Pagination, shown int) string {
	text := fmt.Sprintf("%d registro(s) encontrado(s)", p.TotalItems)
	if shown != p.TotalItems {
		text += fmt.Sprintf(" - Mostrando %d", shown)
	}
	return text
}

func loadingTable(columns []Column) TableView {
	return TableView{Columns: columns, Loading: true}
}

func failedTable(columns []Column, failure *Failure) TableView {
	return TableView{Columns: columns, Failure: failure}
}
