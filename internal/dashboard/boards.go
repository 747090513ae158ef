package dashboard

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"github.com/dashboard-baker/baker/internal/backend"
	"github.com/dashboard-baker/baker/internal/format"
)

// Definition is the static description of a board.
type Definition struct {
	Name     string
	Title    string
	Regions  []RegionSpec
	Defaults url.Values
	// ParseParams validates request input into board parameters. Nil means
	// the board takes no parameters.
	ParseParams func(url.Values) (url.Values, error)
	// VehicleFilter adds the plate field to the board form.
	VehicleFilter bool
}

// Definitions returns every board the application serves.
func Definitions() []Definition {
	return []Definition{mainBoard(), financialBoard(), advancedBoard(), settlementsBoard(), systemBoard()}
}

var errMissingSection = errors.New("section missing from response")

func section(env backend.Envelope, path string) (gjson.Result, error) {
	obj := env.Get(path)
	if !obj.Exists() {
		return obj, fmt.Errorf("%s: %w", path, errMissingSection)
	}
	return obj, nil
}

func mainBoard() Definition {
	metricas := Source{Path: "/dashboard/api/metricas", Timeout: 30 * time.Second}
	graficos := Source{Path: "/dashboard/api/graficos", Timeout: 30 * time.Second}

	return Definition{
		Name:  "main",
		Title: "Dashboard",
		Regions: []RegionSpec{
			{Name: "metricas", Title: "Indicadores", Source: withShape(metricas, shapeMainMetrics)},
			{Name: "alertas", Title: "Alertas", Source: withShape(metricas, shapeAlerts)},
			{Name: "variacoes", Title: "Tempos do processo", Source: withShape(metricas, shapeVariations)},
			{Name: "evolucao", Title: "Evolução mensal", Source: withShape(graficos, func(env backend.Envelope) (Panel, error) {
				return chartSection(env, "graficos.evolucao_mensal", ChartLine, "Evolução mensal da receita", true, seriesKey{"valores", "Receita"})
			})},
			{Name: "top_clientes", Title: "Top clientes", Source: withShape(graficos, func(env backend.Envelope) (Panel, error) {
				return chartSection(env, "graficos.top_clientes", ChartBars, "Receita dos maiores clientes", true, seriesKey{"valores", "Receita"})
			})},
			{Name: "status_pagamento", Title: "Status de pagamento", Source: withShape(graficos, func(env backend.Envelope) (Panel, error) {
				return chartSection(env, "graficos.distribuicao_status.baixas", ChartShare, "CTEs com e sem baixa", false, seriesKey{"valores", "CTEs"})
			})},
			{Name: "veiculos", Title: "Performance de veículos", Source: withShape(graficos, func(env backend.Envelope) (Panel, error) {
				return chartSection(env, "graficos.performance_veiculos", ChartBars, "Receita por veículo", true, seriesKey{"valores", "Receita"})
			})},
		},
	}
}

func withShape(src Source, shape func(backend.Envelope) (Panel, error)) Source {
	src.Shape = shape
	return src
}

func chartSection(env backend.Envelope, path string, kind ChartKind, title string, money bool, series ...seriesKey) (Panel, error) {
	obj, err := section(env, path)
	if err != nil {
		return Panel{}, err
	}
	return chartPanel(chartFrom(obj, kind, title, money, series...)), nil
}

func shapeMainMetrics(env backend.Envelope) (Panel, error) {
	m, err := section(env, "metricas")
	if err != nil {
		return Panel{}, err
	}
	return Panel{Cards: []Card{
		countCard(m, "total_ctes", "Total de CTEs"),
		countCard(m, "clientes_unicos", "Clientes únicos"),
		countCard(m, "veiculos_ativos", "Veículos ativos"),
		moneyCard(m, "valor_total", "Receita total"),
		moneyCard(m, "valor_pago", "Valor pago"),
		moneyCard(m, "valor_pendente", "Valor pendente"),
		moneyCard(m, "ticket_medio", "Ticket médio"),
		rateCard(m, "taxa_conclusao", "Processos concluídos", 80, 50),
		rateCard(m, "taxa_pagamento", "Taxa de pagamento", 80, 50),
		rateCard(m, "taxa_faturamento", "Taxa de faturamento", 80, 50),
	}}, nil
}

var alertLabels = []struct{ key, label string }{
	{"primeiro_envio_pendente", "Primeiro envio pendente"},
	{"envio_final_pendente", "Envio final pendente"},
	{"faturas_vencidas", "Faturas vencidas"},
	{"ctes_sem_faturas", "CTEs sem fatura"},
}

func shapeAlerts(env backend.Envelope) (Panel, error) {
	a, err := section(env, "alertas")
	if err != nil {
		return Panel{}, err
	}
	var items []Item
	for _, entry := range alertLabels {
		alert := a.Get(entry.key)
		if !alert.Exists() {
			continue
		}
		qtd := alert.Get("qtd").Int()
		tone := format.ToneSuccess
		if qtd > 0 {
			tone = format.ToneDanger
		}
		items = append(items, Item{
			Label:  entry.label,
			Value:  format.Integer(qtd) + " CTEs",
			Detail: format.BRL(alert.Get("valor").Float()),
			Tone:   tone,
		})
	}
	if len(items) == 0 {
		return Panel{Empty: "Nenhum alerta no momento"}, nil
	}
	return Panel{Items: items}, nil
}

var performanceTones = map[string]string{
	"excelente": format.ToneSuccess,
	"bom":       format.ToneInfo,
	"atencao":   format.ToneWarning,
	"critico":   format.ToneDanger,
}

func shapeVariations(env backend.Envelope) (Panel, error) {
	v := env.Get("variacoes")
	if !v.Exists() {
		return Panel{Empty: noData}, nil
	}
	keys := make([]string, 0)
	v.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	sort.Strings(keys)
	items := make([]Item, 0, len(keys))
	for _, key := range keys {
		entry := v.Get(gjson.Escape(key))
		items = append(items, Item{
			Label:  entry.Get("nome").String(),
			Value:  printDays(entry.Get("media").Float()),
			Detail: fmt.Sprintf("meta %d dias, mediana %s, %d CTEs", entry.Get("meta_dias").Int(), printDays(entry.Get("mediana").Float()), entry.Get("qtd").Int()),
			Tone:   performanceTones[entry.Get("performance").String()],
		})
	}
	if len(items) == 0 {
		return Panel{Empty: noData}, nil
	}
	return Panel{Items: items}, nil
}

func printDays(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', 1, 64), ".", ",", 1) + " dias"
}

// FinancialParams builds the query shared by the financial regions: the
// period in days (180 unless given), the optional client filter, and the
// date range only when both ends are present.
func FinancialParams(input url.Values) (url.Values, error) {
	params := url.Values{}
	dias := strings.TrimSpace(input.Get("filtro_dias"))
	if dias == "" {
		dias = "180"
	}
	if err := validate.Var(dias, "oneof=15 30 90 180 360"); err != nil {
		return nil, fmt.Errorf("filtro_dias: período inválido %q", dias)
	}
	params.Set("filtro_dias", dias)
	if cliente := strings.TrimSpace(input.Get("filtro_cliente")); cliente != "" && !strings.EqualFold(cliente, "todos") {
		params.Set("filtro_cliente", cliente)
	}
	inicio := strings.TrimSpace(input.Get("data_inicio"))
	fim := strings.TrimSpace(input.Get("data_fim"))
	if inicio != "" && fim != "" {
		for name, value := range map[string]string{"data_inicio": inicio, "data_fim": fim} {
			if err := validate.Var(value, "datetime=2006-01-02"); err != nil {
				return nil, fmt.Errorf("%s: data inválida %q", name, value)
			}
		}
		if fim < inicio {
			return nil, errors.New("data_fim anterior a data_inicio")
		}
		params.Set("data_inicio", inicio)
		params.Set("data_fim", fim)
	}
	return params, nil
}

func financialBoard() Definition {
	const base = "/analise-financeira/api/"
	graficos := Source{Path: base + "graficos-dados", Timeout: 20 * time.Second}
	defaults, _ := FinancialParams(nil)

	return Definition{
		Name:        "financial",
		Title:       "Análise financeira",
		Defaults:    defaults,
		ParseParams: FinancialParams,
		Regions: []RegionSpec{
			{Name: "metricas", Title: "Mês corrente", Source: Source{Path: base + "metricas-mes-corrente", Timeout: 30 * time.Second, Shape: shapeCurrentMonth}},
			{Name: "receita_faturada", Title: "Receita faturada", Source: Source{Path: base + "receita-faturada", Timeout: 20 * time.Second, Shape: shapeBilledRevenue}},
			{Name: "receita_com_faturas", Title: "Receita com faturas", Source: Source{Path: base + "receita-com-faturas", Timeout: 20 * time.Second, Shape: shapeInvoicedRevenue}},
			{Name: "evolucao_inclusao", Title: "Receita por inclusão de fatura", Source: Source{Path: base + "evolucao-receita-inclusao-fatura", Timeout: 20 * time.Second, Shape: func(env backend.Envelope) (Panel, error) {
				return chartSection(env, "dados", ChartLine, "Receita por mês de inclusão da fatura", true, seriesKey{"valores", "Receita"})
			}}},
			{Name: "receita_media", Title: "Receita média mensal", Source: Source{
				Path:    base + "receita-media-mensal",
				Timeout: 20 * time.Second,
				Params: func(v url.Values) url.Values {
					v.Set("filtro_dias", "365")
					return v
				},
				Shape: shapeMonthlyAverage,
			}},
			{Name: "concentracao", Title: "Concentração de clientes", Source: Source{Path: base + "concentracao-clientes", Timeout: 15 * time.Second, Shape: shapeConcentration}},
			{Name: "stress_test", Title: "Stress test de receita", Source: Source{Path: base + "stress-test", Timeout: 15 * time.Second, Shape: shapeStressTest}},
			{Name: "receita_mensal", Title: "Receita mensal", Source: withShape(graficos, func(env backend.Envelope) (Panel, error) {
				return chartSection(env, "graficos.receita_mensal", ChartBars, "Receita por mês de emissão", true, seriesKey{"valores", "Receita"})
			})},
			{Name: "tendencia", Title: "Tendência", Source: withShape(graficos, func(env backend.Envelope) (Panel, error) {
				return chartSection(env, "graficos.tendencia_linear", ChartLine, "Receita real e tendência linear", true,
					seriesKey{"valores_reais", "Real"}, seriesKey{"valores_tendencia", "Tendência"})
			})},
		},
	}
}

func shapeCurrentMonth(env backend.Envelope) (Panel, error) {
	m, err := section(env, "metricas_basicas")
	if err != nil {
		return Panel{}, err
	}
	ref := env.Get("mes_referencia").String()
	cards := []Card{
		moneyCard(m, "receita_mes_atual", "Receita do mês"),
		countCard(m, "total_ctes", "CTEs emitidos"),
		moneyCard(m, "ticket_medio", "Ticket médio"),
		rateCard(m, "percentual_baixado", "Baixado", 80, 50),
	}
	if ref != "" {
		cards[0].Hint = ref
	}
	return Panel{Cards: cards}, nil
}

func shapeBilledRevenue(env backend.Envelope) (Panel, error) {
	d, err := section(env, "dados")
	if err != nil {
		return Panel{}, err
	}
	panel := Panel{Cards: []Card{
		{
			Label: "Receita faturada",
			Value: format.BRL(d.Get("receita_total").Float()),
			Hint:  format.Integer(d.Get("quantidade_ctes").Int()) + " CTEs",
		},
		rateCard(d, "percentual_total", "Do total", 70, 40),
	}}
	panel.Chart = chartFrom(d.Get("evolucao_mensal"), ChartLine, "Receita faturada por mês", true, seriesKey{"valores", "Faturado"})
	return panel, nil
}

var trendTones = map[string]string{
	"crescimento": format.ToneSuccess,
	"queda":       format.ToneDanger,
}

func shapeMonthlyAverage(env backend.Envelope) (Panel, error) {
	d, err := section(env, "dados")
	if err != nil {
		return Panel{}, err
	}
	forecast := 0.0
	if months := d.Get("meses_analisados").Float(); months > 0 {
		forecast = d.Get("receita_total_periodo").Float() / months
	}
	trend := d.Get("tendencia").String()
	if trend == "" {
		trend = "estável"
	}
	tone := trendTones[trend]
	if tone == "" {
		tone = format.ToneMuted
	}
	return Panel{Cards: []Card{
		moneyCard(d, "receita_media_mensal", "Média mensal"),
		{Label: "Previsão próximo mês", Value: format.BRL(forecast)},
		{Label: "Tendência", Value: trend, Tone: tone},
	}}, nil
}

func shapeConcentration(env backend.Envelope) (Panel, error) {
	c, err := section(env, "concentracao_clientes")
	if err != nil {
		return Panel{}, err
	}
	top := c.Get("percentual_top5").Float()
	tone := format.ToneSuccess
	switch {
	case top >= 80:
		tone = format.ToneDanger
	case top >= 60:
		tone = format.ToneWarning
	}
	panel := Panel{Cards: []Card{{Label: "Top 5 clientes", Value: format.Percent(top), Tone: tone}}}

	var labels []string
	var values []float64
	c.Get("top_clientes").ForEach(func(_, client gjson.Result) bool {
		labels = append(labels, client.Get("nome").String())
		values = append(values, client.Get("receita").Float())
		return true
	})
	if len(labels) == 0 {
		panel.Empty = noData
		return panel, nil
	}
	panel.Chart = &ChartSpec{Kind: ChartShare, Title: "Participação na receita", Labels: labels, Series: seriesOf("Receita", values), Money: true}
	return panel, nil
}

func shapeStressTest(env backend.Envelope) (Panel, error) {
	scenarios := env.Get("cenarios")
	if !scenarios.IsArray() {
		return Panel{}, fmt.Errorf("cenarios: %w", errMissingSection)
	}
	var items []Item
	for i, s := range scenarios.Array() {
		name := s.Get("cenario").String()
		if name == "" {
			name = fmt.Sprintf("Cenário %d", i+1)
		}
		impact := s.Get("percentual_impacto").Float()
		tone := format.ToneSuccess
		switch {
		case impact >= 50:
			tone = format.ToneDanger
		case impact >= 30:
			tone = format.ToneWarning
		}
		items = append(items, Item{
			Label:  name,
			Value:  "-" + format.BRL(s.Get("receita_perdida").Float()) + " (" + format.Percent(impact) + ")",
			Detail: "Restante " + format.BRL(s.Get("receita_restante").Float()),
			Tone:   tone,
		})
	}
	if len(items) == 0 {
		return Panel{Empty: "Dados insuficientes para stress test"}, nil
	}
	panel := Panel{Items: items}
	if total := env.Get("receita_total"); total.Exists() {
		panel.Cards = []Card{{Label: "Receita do período", Value: format.BRL(total.Float())}}
	}
	return panel, nil
}

func systemBoard() Definition {
	return Definition{
		Name:  "system",
		Title: "Estatísticas do sistema",
		Regions: []RegionSpec{
			{Name: "stats", Title: "Sistema", Source: Source{Path: "/admin/api/system-stats", Timeout: 10 * time.Second, Shape: shapeSystemStats}},
		},
	}
}

func shapeSystemStats(env backend.Envelope) (Panel, error) {
	s, err := section(env, "stats")
	if err != nil {
		return Panel{}, err
	}
	return Panel{Cards: []Card{
		countCard(s, "users.total", "Usuários"),
		countCard(s, "users.active", "Ativos"),
		countCard(s, "users.admins", "Administradores"),
		countCard(s, "users.recent_logins", "Acessos em 7 dias"),
		countCard(s, "ctes.total", "CTEs"),
		countCard(s, "ctes.today", "CTEs hoje"),
		countCard(s, "ctes.this_week", "CTEs na semana"),
		countCard(s, "ctes.this_month", "CTEs no mês"),
	}}, nil
}

var validate = validator.New()
