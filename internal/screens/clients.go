package screens

import (
	"html/template"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/dashboard-baker/baker/internal/format"
	"github.com/dashboard-baker/baker/internal/listing"
)

const clientNameLimit = 30

// Client is one revenue line of the client concentration ranking.
type Client struct {
	Position  int64
	Name      string
	Revenue   float64
	Share     float64
	CTECount  int64
	AvgTicket float64
}

// DecodeClient reads a client revenue line. The average ticket is derived
// from revenue and document count when the backend does not send it.
func DecodeClient(item gjson.Result) (Client, error) {
	c := Client{
		Position:  item.Get("posicao").Int(),
		Name:      item.Get("nome").String(),
		Revenue:   item.Get("receita").Float(),
		Share:     item.Get("percentual").Float(),
		CTECount:  item.Get("quantidade_ctes").Int(),
		AvgTicket: item.Get("ticket_medio").Float(),
	}
	if c.Name == "" {
		c.Name = item.Get("cliente").String()
	}
	if c.AvgTicket == 0 && c.CTECount > 0 {
		c.AvgTicket = c.Revenue / float64(c.CTECount)
	}
	return c, nil
}

// Risk classifies the concentration risk a single client represents.
func (c Client) Risk() (label, tone string) {
	switch {
	case c.Share >= 30:
		return "Alto", format.ToneDanger
	case c.Share >= 15:
		return "Médio", format.ToneWarning
	default:
		return "Baixo", format.ToneSuccess
	}
}

// ClientRenderer renders the top clients ranking.
type ClientRenderer struct {
	Empty string
}

func (ClientRenderer) Columns() []listing.Column {
	return []listing.Column{
		{Key: "posicao", Label: "#"},
		{Key: "nome", Label: "Cliente"},
		{Key: "receita", Label: "Receita", Class: "text-right"},
		{Key: "quantidade_ctes", Label: "CTEs", Class: "text-right"},
		{Key: "ticket_medio", Label: "Ticket médio", Class: "text-right"},
		{Key: "percentual", Label: "Participação", Class: "text-right"},
		{Key: "risco", Label: "Risco"},
	}
}

func (r ClientRenderer) EmptyMessage() string {
	if r.Empty != "" {
		return r.Empty
	}
	return "Nenhum cliente com receita no período"
}

func (ClientRenderer) Row(c Client) listing.RowView {
	label, tone := c.Risk()
	name := truncate(c.Name, clientNameLimit)
	count := "-"
	if c.CTECount > 0 {
		count = format.Integer(c.CTECount)
	}
	return listing.RowView{
		ID: strconv.FormatInt(c.Position, 10),
		Cells: []template.HTML{
			template.HTML(strconv.FormatInt(c.Position, 10) + "º"),
			template.HTML(`<span title="` + template.HTMLEscapeString(c.Name) + `">` + template.HTMLEscapeString(name) + `</span>`),
			template.HTML(format.BRL(c.Revenue)),
			template.HTML(count),
			template.HTML(format.BRL(c.AvgTicket)),
			template.HTML(format.Percent(c.Share)),
			format.Badge(tone, label),
		},
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
