package main

import (
	"bytes"
	"salarydash/internal/config"
	"salarydash/internal/engine"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaryStore() *engine.ColumnStore {
	return engine.NewColumnStore([]engine.Record{
		{Year: 2023, Seniority: "senior", ContractType: "integral", CompanySize: "grande", RoleTitle: "Data Scientist", RemoteMode: "remoto", CountryISO3: "USA", SalaryUSD: 150000},
		{Year: 2024, Seniority: "pleno", ContractType: "integral", CompanySize: "media", RoleTitle: "Data Engineer", RemoteMode: "presencial", CountryISO3: "BRA", SalaryUSD: 60000},
		{Year: 2024, Seniority: "senior", ContractType: "contrato", CompanySize: "grande", RoleTitle: "Data Scientist", RemoteMode: "remoto", CountryISO3: "DEU", SalaryUSD: 1250000},
	})
}

func TestBuildSelectionDefaultsToEverything(t *testing.T) {
	store := summaryStore()

	sel, err := buildSelection(store, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, engine.Filter(store, sel).Len())
}

func TestBuildSelectionNarrows(t *testing.T) {
	store := summaryStore()

	sel, err := buildSelection(store, map[engine.Dimension][]string{
		engine.DimYear:      {"2024"},
		engine.DimSeniority: {"senior"},
	})
	require.NoError(t, err)

	v := engine.Filter(store, sel)
	require.Equal(t, 1, v.Len())
	assert.Equal(t, "DEU", v.Record(0).CountryISO3)
}

func TestBuildSelectionEmptyFlagMatchesNothing(t *testing.T) {
	store := summaryStore()

	sel, err := buildSelection(store, map[engine.Dimension][]string{engine.DimContract: {}})
	require.NoError(t, err)
	assert.Zero(t, engine.Filter(store, sel).Len())
}

func TestBuildSelectionInvalidYear(t *testing.T) {
	_, err := buildSelection(summaryStore(), map[engine.Dimension][]string{engine.DimYear: {"last"}})
	assert.ErrorContains(t, err, `invalid year "last"`)
}

func TestPrintSummaryText(t *testing.T) {
	store := summaryStore()
	data := engine.Aggregate(engine.All(store), engine.DefaultParams())

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, data, "text"))

	out := buf.String()
	assert.Contains(t, out, "$486,667")
	assert.Contains(t, out, "$1,250,000")
	assert.Contains(t, out, "Most common role: Data Scientist")
	assert.Contains(t, out, "Mean Data Scientist salary by country")
	// Countries are listed by mean, highest first.
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("DEU")), bytes.Index(buf.Bytes(), []byte("USA")))
	assert.NotContains(t, out, "BRA")
}

func TestPrintSummaryEmpty(t *testing.T) {
	data := engine.Aggregate(engine.Filter(summaryStore(), engine.Selection{}), engine.DefaultParams())

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, data, "text"))
	assert.Equal(t, "No data for the selected filters.\n", buf.String())
}

func TestPrintSummaryJSON(t *testing.T) {
	data := engine.Aggregate(engine.All(summaryStore()), engine.DefaultParams())

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, data, "json"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "kpis")
	assert.Contains(t, decoded, "country_means")
}

func TestApplyServeFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().AddFlagSet(serveCmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "9090", "--rate-limit", "0"}))

	cfg := config.Default()
	applyServeFlags(cmd, &cfg)

	assert.Equal(t, 9090, cfg.Port)
	assert.Zero(t, cfg.RateLimit)
	assert.Equal(t, engine.DefaultSource, cfg.DataSource)
}
