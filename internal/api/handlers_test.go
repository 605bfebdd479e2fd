package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"salarydash/internal/config"
	"salarydash/internal/engine"
	"salarydash/internal/logging"
	"salarydash/internal/models"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords() []engine.Record {
	return []engine.Record{
		{Year: 2023, Seniority: "senior", ContractType: "integral", CompanySize: "grande", RoleTitle: "Data Scientist", RemoteMode: "remoto", CountryISO3: "USA", SalaryUSD: 150000},
		{Year: 2024, Seniority: "pleno", ContractType: "integral", CompanySize: "media", RoleTitle: "Data Engineer", RemoteMode: "presencial", CountryISO3: "BRA", SalaryUSD: 60000},
		{Year: 2023, Seniority: "junior", ContractType: "contrato", CompanySize: "pequena", RoleTitle: "Data Analyst", RemoteMode: "hibrido", CountryISO3: "BRA", SalaryUSD: 30000},
		{Year: 2024, Seniority: "senior", ContractType: "integral", CompanySize: "grande", RoleTitle: "Data Scientist", RemoteMode: "remoto", CountryISO3: "DEU", SalaryUSD: 110000},
	}
}

func newTestServer(t *testing.T, store *engine.ColumnStore) (*echo.Echo, *Handler) {
	t.Helper()
	cfg := config.Default()
	cfg.RateLimit = 0
	return NewServer(cfg, store, logging.New("test", "off", io.Discard))
}

func do(e *echo.Echo, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestLoadingReturns503(t *testing.T) {
	e, h := newTestServer(t, nil)

	rec := do(e, http.MethodGet, "/api/dashboard", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(e, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.SetData(engine.NewColumnStore(testRecords()))

	rec = do(e, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":4`)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestGetDashboardDefaultsToEverything(t *testing.T) {
	e, _ := newTestServer(t, engine.NewColumnStore(testRecords()))

	rec := do(e, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decode[models.DashboardData](t, rec)
	assert.Equal(t, 4, data.Rows)
	assert.Equal(t, 87500.0, data.KPIs.MeanSalary)
	assert.Equal(t, 150000.0, data.KPIs.MaxSalary)
	assert.Equal(t, "Data Scientist", data.KPIs.TopRole)
	assert.False(t, data.KPIs.Empty)
	assert.Equal(t, 30, data.Histogram.Bins)
	assert.Equal(t, map[string]float64{"USA": 150000, "DEU": 110000}, data.CountryMeans)
	assert.Equal(t, "remoto", data.RemoteModes[0].Mode)
}

func TestGetDashboardFilters(t *testing.T) {
	e, _ := newTestServer(t, engine.NewColumnStore(testRecords()))

	rec := do(e, http.MethodGet, "/api/dashboard?year=2024&contract_type=integral,contrato", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decode[models.DashboardData](t, rec)
	assert.Equal(t, 2, data.Rows)
	assert.Equal(t, []models.RoleMean{{Role: "Data Engineer", Mean: 60000}, {Role: "Data Scientist", Mean: 110000}}, data.TopRoles)
}

func TestEmptyParameterMatchesNothing(t *testing.T) {
	e, _ := newTestServer(t, engine.NewColumnStore(testRecords()))

	rec := do(e, http.MethodGet, "/api/kpis?seniority=", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	k := decode[models.KPIs](t, rec)
	assert.True(t, k.Empty)
	assert.Zero(t, k.Count)
	assert.Empty(t, k.TopRole)
}

func TestInvalidYear(t *testing.T) {
	e, _ := newTestServer(t, engine.NewColumnStore(testRecords()))

	rec := do(e, http.MethodGet, "/api/kpis?year=twenty", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/roles/top?top=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFilters(t *testing.T) {
	e, _ := newTestServer(t, engine.NewColumnStore(testRecords()))

	rec := do(e, http.MethodGet, "/api/filters", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	opts := decode[models.FilterOptions](t, rec)
	assert.Equal(t, []int{2023, 2024}, opts.Years)
	assert.Equal(t, []string{"junior", "pleno", "senior"}, opts.Seniority)
	assert.Equal(t, []string{"contrato", "integral"}, opts.ContractTypes)
}

func TestProjectionRoutes(t *testing.T) {
	e, _ := newTestServer(t, engine.NewColumnStore(testRecords()))

	rec := do(e, http.MethodGet, "/api/roles/top?top=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.RoleMean{{Role: "Data Scientist", Mean: 130000}}, decode[[]models.RoleMean](t, rec))

	rec = do(e, http.MethodGet, "/api/salaries/histogram?bins=5&year=2023", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.HistogramSpec{Values: []float64{150000, 30000}, Bins: 5}, decode[models.HistogramSpec](t, rec))

	rec = do(e, http.MethodGet, "/api/remote", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.RemoteCount{{Mode: "remoto", Count: 2}, {Mode: "presencial", Count: 1}, {Mode: "hibrido", Count: 1}}, decode[[]models.RemoteCount](t, rec))

	rec = do(e, http.MethodGet, "/api/countries?role=Data+Analyst", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]float64{"BRA": 30000}, decode[map[string]float64](t, rec))
}

func TestGetRecordsPagination(t *testing.T) {
	e, _ := newTestServer(t, engine.NewColumnStore(testRecords()))

	rec := do(e, http.MethodGet, "/api/records?limit=2&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	page := decode[models.Page[engine.Record]](t, rec)
	assert.Equal(t, 4, page.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Data Engineer", page.Data[0].RoleTitle)
	assert.Equal(t, "Data Analyst", page.Data[1].RoleTitle)

	rec = do(e, http.MethodGet, "/api/records?offset=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.Page[engine.Record]](t, rec).Data)
}

func TestGetRecordsHugeLimit(t *testing.T) {
	e, _ := newTestServer(t, engine.NewColumnStore(testRecords()))

	rec := do(e, http.MethodGet, "/api/records?limit=9223372036854775807&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	page := decode[models.Page[engine.Record]](t, rec)
	assert.Equal(t, 4, page.Total)
	require.Len(t, page.Data, 3)
	assert.Equal(t, "Data Engineer", page.Data[0].RoleTitle)
	assert.Equal(t, "Data Scientist", page.Data[2].RoleTitle)
}

func TestQueryDashboard(t *testing.T) {
	e, _ := newTestServer(t, engine.NewColumnStore(testRecords()))

	body := `{"seniority": ["senior"], "role": "Data Scientist", "top": 1}`
	rec := do(e, http.MethodPost, "/api/dashboard", strings.NewReader(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decode[models.DashboardData](t, rec)
	assert.Equal(t, 2, data.Rows)
	assert.Len(t, data.TopRoles, 1)

	// An explicit empty list selects nothing.
	rec = do(e, http.MethodPost, "/api/dashboard", strings.NewReader(`{"year": []}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.DashboardData](t, rec).KPIs.Empty)

	rec = do(e, http.MethodPost, "/api/dashboard", strings.NewReader(`{"year": "2024"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExports(t *testing.T) {
	e, _ := newTestServer(t, engine.NewColumnStore(testRecords()))

	rec := do(e, http.MethodGet, "/api/records.csv?year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "salaries.csv")

	store, _, err := engine.LoadCSV(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	rec = do(e, http.MethodGet, "/api/records.arrow", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apache.arrow.stream", rec.Header().Get(echo.HeaderContentType))
	assert.NotZero(t, rec.Body.Len())

	rec = do(e, http.MethodGet, "/api/records.parquet?seniority=senior", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	store, _, err = engine.LoadParquet(t.Context(), bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}

func TestGetChart(t *testing.T) {
	e, _ := newTestServer(t, engine.NewColumnStore(testRecords()))

	for _, name := range []string{"roles", "histogram", "remote", "countries.png"} {
		rec := do(e, http.MethodGet, "/api/charts/"+name, nil)
		require.Equal(t, http.StatusOK, rec.Code, name)
		assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")), name)
	}

	rec := do(e, http.MethodGet, "/api/charts/roles?company_size=", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(WarningHeader))

	rec = do(e, http.MethodGet, "/api/charts/radar", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit = 1
	e, _ := NewServer(cfg, engine.NewColumnStore(testRecords()), logging.New("test", "off", io.Discard))

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/kpis", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodGet, "/api/kpis", nil).Code)

	// Health checks are never limited.
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", nil).Code)
}

func TestMetrics(t *testing.T) {
	e, h := newTestServer(t, nil)

	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/api/kpis", nil).Code)
	h.SetData(engine.NewColumnStore(testRecords()))
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/kpis", nil).Code)

	rec := do(e, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "dashboard_dataset_rows 4")
	assert.Contains(t, body, `dashboard_requests_total{code="503",route="/api/kpis"} 1`)
	assert.Contains(t, body, `dashboard_requests_total{code="200",route="/api/kpis"} 1`)
	assert.NotContains(t, body, `route="/metrics"`)
}

func TestMetricsCountPanics(t *testing.T) {
	e, _ := newTestServer(t, engine.NewColumnStore(testRecords()))
	e.GET("/api/broken", func(echo.Context) error { panic("broken handler") })

	assert.Equal(t, http.StatusInternalServerError, do(e, http.MethodGet, "/api/broken", nil).Code)

	rec := do(e, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dashboard_requests_total{code="500",route="/api/broken"} 1`)
}
