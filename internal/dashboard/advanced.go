package dashboard

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dashboard-baker/baker/internal/backend"
	"github.com/dashboard-baker/baker/internal/dashboard/svg"
	"github.com/dashboard-baker/baker/internal/format"
)

// AdvancedParams extends FinancialParams with the optional vehicle plate used
// by the fleet ranking.
func AdvancedParams(input url.Values) (url.Values, error) {
	params, err := FinancialParams(input)
	if err != nil {
		return nil, err
	}
	if placa := strings.TrimSpace(input.Get("filtro_veiculo")); placa != "" && !strings.EqualFold(placa, "todos") {
		if err := validate.Var(placa, "max=10,printascii"); err != nil {
			return nil, fmt.Errorf("filtro_veiculo: placa inválida %q", placa)
		}
		params.Set("filtro_veiculo", strings.ToUpper(placa))
	}
	return params, nil
}

// only keeps the named keys of the board parameters.
func only(keys ...string) func(url.Values) url.Values {
	return func(v url.Values) url.Values {
		out := url.Values{}
		for _, k := range keys {
			if val := v.Get(k); val != "" {
				out.Set(k, val)
			}
		}
		return out
	}
}

func advancedBoard() Definition {
	const base = "/analise-financeira/api/"
	completa := Source{Path: base + "analise-completa", Timeout: 30 * time.Second, Params: only("filtro_dias", "filtro_cliente")}
	defaults, _ := AdvancedParams(nil)

	return Definition{
		Name:          "advanced",
		Title:         "Análise financeira avançada",
		Defaults:      defaults,
		ParseParams:   AdvancedParams,
		VehicleFilter: true,
		Regions: []RegionSpec{
			{Name: "fundamentais", Title: "Métricas fundamentais", Source: withShape(completa, shapeFundamentals)},
			{Name: "receita_mensal", Title: "Receita mensal", Source: withShape(completa, func(env backend.Envelope) (Panel, error) {
				return chartPanel(chartFrom(env.Get("graficos.receita_mensal"), ChartLine, "Receita mensal", true, seriesKey{"valores", "Receita"})), nil
			})},
			{Name: "top_clientes", Title: "Top clientes", Source: withShape(completa, shapeTopClients)},
			{Name: "sazonalidade", Title: "Sazonalidade", Source: withShape(completa, func(env backend.Envelope) (Panel, error) {
				return chartSection(env, "analise_sazonalidade.sazonalidade_mensal.dados_grafico", ChartBars, "Receita por mês do ano", true, seriesKey{"valores", "Receita"})
			})},
			{Name: "tendencias", Title: "Indicadores de tendência", Source: withShape(completa, shapeTrendIndicators)},
			{Name: "saude", Title: "Saúde financeira", Source: withShape(completa, shapeHealthScore)},
			{Name: "projecao", Title: "Projeção de receita", Source: Source{Path: base + "projecao-futura", Timeout: 20 * time.Second, Params: only(), Shape: shapeProjection}},
			{Name: "comparacao", Title: "Comparativo temporal", Source: Source{Path: base + "comparacao-temporal", Timeout: 20 * time.Second, Params: only("filtro_dias"), Shape: shapeTemporalComparison}},
			{Name: "veiculos", Title: "Ranking de veículos", Source: Source{Path: base + "analise-veiculos", Timeout: 30 * time.Second, Params: only("filtro_dias", "filtro_veiculo"), Shape: shapeVehicleRanking}},
		},
	}
}

// toneOf accepts the colour names the backend uses and falls back to muted.
func toneOf(cor string) string {
	switch cor {
	case format.ToneSuccess, format.ToneWarning, format.ToneDanger, format.ToneInfo:
		return cor
	}
	return format.ToneMuted
}

func shapeFundamentals(env backend.Envelope) (Panel, error) {
	m, err := section(env, "metricas_fundamentais")
	if err != nil {
		return Panel{}, err
	}
	return Panel{Cards: []Card{
		moneyCard(m, "receita_total", "Receita total"),
		countCard(m, "total_ctes", "Total de CTEs"),
		moneyCard(m, "ticket_medio", "Ticket médio"),
		rateCard(m, "taxa_pagamento", "Taxa de pagamento", 80, 50),
		countCard(m, "clientes_unicos", "Clientes únicos"),
		countCard(m, "veiculos_ativos", "Veículos ativos"),
	}}, nil
}

const topClientsShown = 5

func shapeTopClients(env backend.Envelope) (Panel, error) {
	clients := env.Get("analise_clientes.top_clientes")
	if !clients.Exists() {
		return Panel{}, fmt.Errorf("analise_clientes.top_clientes: %w", errMissingSection)
	}
	var items []Item
	for i, c := range clients.Array() {
		if i == topClientsShown {
			break
		}
		items = append(items, Item{
			Label:  fmt.Sprintf("%d. %s", i+1, c.Get("nome").String()),
			Value:  format.BRL(c.Get("faturamento").Float()),
			Detail: fmt.Sprintf("%s viagens, ticket %s", format.Integer(c.Get("viagens").Int()), format.BRL(c.Get("ticket_medio").Float())),
		})
	}
	if len(items) == 0 {
		return Panel{Empty: noData}, nil
	}
	return Panel{Items: items}, nil
}

var trendLabels = []struct{ key, label string }{
	{"receita", "Receita"},
	{"quantidade", "Quantidade de CTEs"},
	{"ticket_medio", "Ticket médio"},
}

func shapeTrendIndicators(env backend.Envelope) (Panel, error) {
	t, err := section(env, "indicadores_tendencia")
	if err != nil {
		return Panel{}, err
	}
	if t.Get("erro").Exists() {
		return Panel{Empty: "Dados insuficientes para análise de tendência"}, nil
	}
	var items []Item
	for _, entry := range trendLabels {
		ind := t.Get(entry.key)
		if !ind.Exists() {
			continue
		}
		items = append(items, Item{
			Label:  entry.label,
			Value:  ind.Get("tendencia").String(),
			Detail: signedPercent(ind.Get("variacao_percentual").Float()),
			Tone:   toneOf(ind.Get("cor").String()),
		})
	}
	if len(items) == 0 {
		return Panel{Empty: "Dados insuficientes para análise de tendência"}, nil
	}
	return Panel{Items: items}, nil
}

func signedPercent(v float64) string {
	if v > 0 {
		return "+" + format.Percent(v)
	}
	return format.Percent(v)
}

func shapeHealthScore(env backend.Envelope) (Panel, error) {
	s, err := section(env, "score_saude_financeira")
	if err != nil {
		return Panel{}, err
	}
	return Panel{
		Cards: []Card{{
			Label: "Score",
			Value: fmt.Sprintf("%d/100", s.Get("score_total").Int()),
			Hint:  s.Get("classificacao").String(),
			Tone:  toneOf(s.Get("cor").String()),
		}},
		Items: recommendation(s.Get("recomendacao")),
	}, nil
}

func recommendation(r gjson.Result) []Item {
	if r.String() == "" {
		return nil
	}
	return []Item{{Label: "Recomendação", Value: r.String()}}
}

func shapeProjection(env backend.Envelope) (Panel, error) {
	months := env.Get("projecoes_mensais")
	if len(months.Array()) == 0 {
		return Panel{Empty: "Dados insuficientes para projeção"}, nil
	}
	panel := Panel{Cards: []Card{
		{Label: "Projeção 3 meses", Value: format.BRL(env.Get("total_projetado_3_meses").Float()), Tone: format.ToneSuccess},
		{Label: "Tendência geral", Value: orDash(env.Get("tendencia_geral").String())},
		{Label: "Confiabilidade (R²)", Value: format.Percent(env.Get("r_squared").Float() * 100)},
	}}
	var labels []string
	var projected, low, high []float64
	for _, m := range months.Array() {
		labels = append(labels, m.Get("mes_nome").String())
		projected = append(projected, m.Get("valor_projetado").Float())
		low = append(low, m.Get("valor_minimo").Float())
		high = append(high, m.Get("valor_maximo").Float())
		panel.Items = append(panel.Items, Item{
			Label:  m.Get("mes_nome").String(),
			Value:  format.BRL(m.Get("valor_projetado").Float()),
			Detail: fmt.Sprintf("%s a %s, confiança %s", format.BRL(m.Get("valor_minimo").Float()), format.BRL(m.Get("valor_maximo").Float()), format.Percent(m.Get("confianca_percentual").Float())),
		})
	}
	panel.Chart = &ChartSpec{Kind: ChartLine, Title: "Receita projetada", Description: "Receita projetada", Labels: labels, Money: true, Series: []svg.Series{
		{Label: "Projetado", Values: projected},
		{Label: "Mínimo", Values: low},
		{Label: "Máximo", Values: high},
	}}
	return panel, nil
}

func orDash(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

var comparisonPeriods = []struct{ key, variation, label string }{
	{"periodo_2_meses_atras", "variacao_vs_2_meses", "2 meses atrás"},
	{"periodo_1_ano_atras", "variacao_vs_1_ano", "1 ano atrás"},
}

func shapeTemporalComparison(env backend.Envelope) (Panel, error) {
	c, err := section(env, "comparacao")
	if err != nil {
		return Panel{}, err
	}
	current := c.Get("periodo_atual")
	panel := Panel{Cards: []Card{
		{Label: "Período atual", Value: format.BRL(current.Get("receita_total").Float()), Hint: format.Integer(current.Get("quantidade_ctes").Int()) + " CTEs"},
	}}
	for _, p := range comparisonPeriods {
		period := c.Get(p.key)
		if !period.Exists() {
			continue
		}
		delta := c.Get(p.variation + ".receita_percentual").Float()
		tone := format.ToneSuccess
		if delta < 0 {
			tone = format.ToneDanger
		}
		panel.Items = append(panel.Items, Item{
			Label:  p.label,
			Value:  format.BRL(period.Get("receita_total").Float()),
			Detail: fmt.Sprintf("receita %s, CTEs %s", signedPercent(delta), signedPercent(c.Get(p.variation+".quantidade_percentual").Float())),
			Tone:   tone,
		})
	}
	return panel, nil
}

const vehiclesShown = 20

func shapeVehicleRanking(env backend.Envelope) (Panel, error) {
	ranking := env.Get("ranking_veiculos")
	if !ranking.Exists() {
		return Panel{}, fmt.Errorf("ranking_veiculos: %w", errMissingSection)
	}
	var panel Panel
	if m := env.Get("metricas_performance"); m.Exists() {
		panel.Cards = []Card{
			countCard(m, "total_veiculos_ativos", "Veículos ativos"),
			moneyCard(m, "faturamento_medio_por_veiculo", "Faturamento médio"),
			{Label: "Viagens por veículo", Value: strings.Replace(fmt.Sprintf("%.1f", m.Get("viagens_media_por_veiculo").Float()), ".", ",", 1)},
			{Label: "Maior faturamento", Value: format.BRL(m.Get("maior_faturamento_veiculo.valor").Float()), Hint: m.Get("maior_faturamento_veiculo.placa").String()},
		}
	}
	for i, v := range ranking.Array() {
		if i == vehiclesShown {
			break
		}
		panel.Items = append(panel.Items, Item{
			Label:  fmt.Sprintf("%d. %s", i+1, v.Get("veiculo_placa").String()),
			Value:  format.BRL(v.Get("faturamento_total").Float()),
			Detail: fmt.Sprintf("%s viagens, ticket %s, %s (%d pts)", format.Integer(v.Get("total_viagens").Int()), format.BRL(v.Get("ticket_medio").Float()), v.Get("classificacao").String(), v.Get("score_performance").Int()),
			Tone:   toneOf(v.Get("cor_classificacao").String()),
		})
	}
	if len(panel.Items) == 0 {
		panel.Empty = "Nenhum veículo encontrado"
	}
	return panel, nil
}

func settlementsBoard() Definition {
	return Definition{
		Name:  "settlements",
		Title: "Baixas",
		Regions: []RegionSpec{
			{Name: "estatisticas", Title: "Estatísticas de baixas", Source: Source{Path: "/baixas/api/estatisticas", Timeout: 15 * time.Second, Shape: shapeSettlementStats}},
		},
	}
}

func shapeSettlementStats(env backend.Envelope) (Panel, error) {
	d, err := section(env, "data")
	if err != nil {
		return Panel{}, err
	}
	pending := countCard(d, "baixas_pendentes", "Baixas pendentes")
	if d.Get("baixas_pendentes").Int() > 0 {
		pending.Tone = format.ToneWarning
	}
	return Panel{Cards: []Card{
		countCard(d, "total_baixas", "Total de baixas"),
		moneyCard(d, "valor_baixado", "Valor baixado"),
		pending,
		moneyCard(d, "valor_pendente", "Valor pendente"),
	}}, nil
}

func shapeInvoicedRevenue(env backend.Envelope) (Panel, error) {
	d, err := section(env, "dados")
	if err != nil {
		return Panel{}, err
	}
	panel := Panel{Cards: []Card{
		{Label: "Receita com faturas", Value: format.BRL(d.Get("receita_total").Float()), Hint: format.Integer(d.Get("quantidade_ctes").Int()) + " CTEs"},
		moneyCard(d, "ticket_medio", "Ticket médio"),
		rateCard(d, "percentual_cobertura", "Cobertura", 70, 40),
	}}
	chart := d.Get("grafico")
	if !chart.Exists() {
		chart = d
	}
	panel.Chart = chartFrom(chart, ChartBars, "Receita com faturas por mês", true, seriesKey{"valores", "Receita"})
	return panel, nil
}
