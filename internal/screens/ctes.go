package screens

import (
	"errors"
	"fmt"
	"html/template"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/dashboard-baker/baker/internal/format"
	"github.com/dashboard-baker/baker/internal/listing"
)

// CTE is one transport document row.
type CTE struct {
	ID               int64
	Numero           int64
	Destinatario     string
	Placa            string
	ValorTotal       float64
	DataEmissao      string
	DataBaixa        string
	NumeroFatura     string
	HasBaixa         bool
	ProcessoCompleto bool
	StatusProcesso   string
}

// Paid reports whether the document has a payment write-off.
func (c CTE) Paid() bool {
	return c.HasBaixa || c.DataBaixa != ""
}

var errMissingNumero = errors.New("numero_cte missing")

// DecodeCTE reads a CTE row. Numeric fields sent as strings are accepted.
func DecodeCTE(item gjson.Result) (CTE, error) {
	numero := item.Get("numero_cte")
	if !numero.Exists() || numero.Int() == 0 {
		return CTE{}, errMissingNumero
	}
	return CTE{
		ID:               item.Get("id").Int(),
		Numero:           numero.Int(),
		Destinatario:     item.Get("destinatario_nome").String(),
		Placa:            item.Get("veiculo_placa").String(),
		ValorTotal:       item.Get("valor_total").Float(),
		DataEmissao:      item.Get("data_emissao").String(),
		DataBaixa:        item.Get("data_baixa").String(),
		NumeroFatura:     item.Get("numero_fatura").String(),
		HasBaixa:         item.Get("has_baixa").Bool(),
		ProcessoCompleto: item.Get("processo_completo").Bool(),
		StatusProcesso:   item.Get("status_processo").String(),
	}, nil
}

// CTERenderer renders the CTE listing.
type CTERenderer struct {
	Empty string
}

func (CTERenderer) Columns() []listing.Column {
	return []listing.Column{
		{Key: "numero_cte", Label: "CTE"},
		{Key: "destinatario_nome", Label: "Destinatário"},
		{Key: "valor_total", Label: "Valor", Class: "text-right"},
		{Key: "data_emissao", Label: "Emissão"},
		{Key: "status_baixa", Label: "Pagamento"},
		{Key: "status_processo", Label: "Processo"},
	}
}

func (r CTERenderer) EmptyMessage() string {
	if r.Empty != "" {
		return r.Empty
	}
	return "Nenhum CTE encontrado"
}

func (CTERenderer) Row(c CTE) listing.RowView {
	numero := strconv.FormatInt(c.Numero, 10)

	recipient := template.HTMLEscapeString(c.Destinatario)
	if recipient == "" {
		recipient = "-"
	}
	if c.Placa != "" {
		recipient += `<br><small class="muted">` + template.HTMLEscapeString(c.Placa) + `</small>`
	}

	payment := format.Badge(format.ToneWarning, "Pendente")
	if c.Paid() {
		payment = format.Badge(format.ToneSuccess, "Pago")
	}
	process := format.Badge(format.ToneInfo, "Em Andamento")
	if c.ProcessoCompleto {
		process = format.Badge(format.ToneSuccess, "Completo")
	}

	return listing.RowView{
		ID: numero,
		Cells: []template.HTML{
			template.HTML("<strong>" + numero + "</strong>"),
			template.HTML(recipient),
			template.HTML(format.BRL(c.ValorTotal)),
			template.HTML(template.HTMLEscapeString(format.Date(c.DataEmissao))),
			payment,
			process,
		},
		Actions: []listing.Action{
			{Name: "view", Label: "Ver", Path: "/ctes/api/buscar/" + numero, Method: "GET", Tone: format.ToneInfo},
			{
				Name:    "delete",
				Label:   "Excluir",
				Path:    "/ctes/api/excluir/" + numero,
				Method:  "DELETE",
				Tone:    format.ToneDanger,
				Confirm: fmt.Sprintf("Confirma a exclusão do CTE %s?", numero),
			},
		},
	}
}
