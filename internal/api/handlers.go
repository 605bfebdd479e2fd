package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"salarydash/internal/charts"
	"salarydash/internal/engine"
	"salarydash/internal/models"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/labstack/echo/v4"
)

// WarningHeader carries the reason a chart response has no body.
const WarningHeader = "X-Dashboard-Warning"

func errLoading() error {
	return echo.NewHTTPError(http.StatusServiceUnavailable, "dataset is still loading")
}

// Handler serves the dashboard. The dataset is published once via SetData;
// until then every data route answers 503.
type Handler struct {
	store   atomic.Pointer[engine.ColumnStore]
	params  engine.Params
	metrics *metrics
}

func NewHandler(store *engine.ColumnStore, params engine.Params) *Handler {
	h := &Handler{params: params, metrics: newMetrics()}
	if store != nil {
		h.SetData(store)
	}
	return h
}

// SetData publishes the loaded dataset.
func (h *Handler) SetData(store *engine.ColumnStore) {
	h.store.Store(store)
	h.metrics.datasetRows.Set(float64(store.Len()))
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", h.metrics.handler())

	api := e.Group("/api")
	api.GET("/filters", h.GetFilters)
	api.GET("/dashboard", h.GetDashboard)
	api.POST("/dashboard", h.QueryDashboard)
	api.GET("/kpis", h.GetKPIs)
	api.GET("/roles/top", h.GetTopRoles)
	api.GET("/salaries/histogram", h.GetHistogram)
	api.GET("/remote", h.GetRemote)
	api.GET("/countries", h.GetCountries)
	api.GET("/records", h.GetRecords)
	api.GET("/records.csv", h.ExportCSV)
	api.GET("/records.arrow", h.ExportArrow)
	api.GET("/records.parquet", h.ExportParquet)
	api.GET("/charts/:name", h.GetChart)
}

// --- REQUEST PARSING ---

// splitValues accepts repeated and comma-separated values and drops blanks,
// so "?seniority=" yields an empty set.
func splitValues(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		for _, v := range strings.Split(r, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// selection starts from every observed value and narrows each dimension
// present in the query string.
func selection(c echo.Context, cs *engine.ColumnStore) (engine.Selection, error) {
	sel := engine.DefaultSelection(cs)
	qp := c.QueryParams()
	for _, dim := range engine.Dimensions {
		raw, ok := qp[string(dim)]
		if !ok {
			continue
		}
		values := splitValues(raw)
		if dim == engine.DimYear {
			for _, v := range values {
				if _, err := strconv.Atoi(v); err != nil {
					return sel, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid year %q", v))
				}
			}
		}
		sel.Set(dim, values...)
	}
	return sel, nil
}

func positiveParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", name))
	}
	return n, nil
}

// paramsFor applies per-request overrides of the configured projections.
func (h *Handler) paramsFor(c echo.Context) (engine.Params, error) {
	p := h.params
	if role := strings.TrimSpace(c.QueryParam("role")); role != "" {
		p.FocusRole = role
	}
	var err error
	if p.TopN, err = positiveParam(c, "top", p.TopN); err != nil {
		return p, err
	}
	if p.HistogramBins, err = positiveParam(c, "bins", p.HistogramBins); err != nil {
		return p, err
	}
	return p, nil
}

func (h *Handler) view(c echo.Context) (engine.View, error) {
	cs := h.store.Load()
	if cs == nil {
		return engine.View{}, errLoading()
	}
	sel, err := selection(c, cs)
	if err != nil {
		return engine.View{}, err
	}
	return engine.Filter(cs, sel), nil
}

func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// --- HANDLERS ---

func (h *Handler) Health(c echo.Context) error {
	cs := h.store.Load()
	if cs == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{"status": "loading"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok", "rows": cs.Len()})
}

func (h *Handler) GetFilters(c echo.Context) error {
	cs := h.store.Load()
	if cs == nil {
		return errLoading()
	}
	return c.JSON(http.StatusOK, engine.Options(cs))
}

func (h *Handler) GetDashboard(c echo.Context) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	p, err := h.paramsFor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, engine.Aggregate(v, p))
}

// QueryRequest is the JSON form of a dashboard query. A nil dimension
// means "all values"; an empty list means "none".
type QueryRequest struct {
	Year         *[]int    `json:"year"`
	Seniority    *[]string `json:"seniority"`
	ContractType *[]string `json:"contract_type"`
	CompanySize  *[]string `json:"company_size"`
	Role         string    `json:"role"`
	Top          int       `json:"top"`
	Bins         int       `json:"bins"`
}

func (h *Handler) QueryDashboard(c echo.Context) error {
	cs := h.store.Load()
	if cs == nil {
		return errLoading()
	}
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Top < 0 || req.Bins < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "top and bins must be positive")
	}

	sel := engine.DefaultSelection(cs)
	if req.Year != nil {
		sel.Years = *req.Year
	}
	if req.Seniority != nil {
		sel.Seniority = *req.Seniority
	}
	if req.ContractType != nil {
		sel.ContractTypes = *req.ContractType
	}
	if req.CompanySize != nil {
		sel.CompanySizes = *req.CompanySize
	}

	p := h.params
	if req.Role != "" {
		p.FocusRole = req.Role
	}
	if req.Top > 0 {
		p.TopN = req.Top
	}
	if req.Bins > 0 {
		p.HistogramBins = req.Bins
	}
	return c.JSON(http.StatusOK, engine.Aggregate(engine.Filter(cs, sel), p))
}

func (h *Handler) GetKPIs(c echo.Context) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, engine.KPIs(v))
}

// returns the top roles by mean salary, ascending
func (h *Handler) GetTopRoles(c echo.Context) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	p, err := h.paramsFor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, engine.TopRoles(v, p.TopN))
}

func (h *Handler) GetHistogram(c echo.Context) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	p, err := h.paramsFor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, engine.Histogram(v, p.HistogramBins))
}

func (h *Handler) GetRemote(c echo.Context) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, engine.RemoteBreakdown(v))
}

func (h *Handler) GetCountries(c echo.Context) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	p, err := h.paramsFor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, engine.CountryMeans(v, p.FocusRole))
}

// detail table, paginated
func (h *Handler) GetRecords(c echo.Context) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	total := v.Len()
	limit, offset := getPaginationParams(c, 100)

	if offset >= total {
		return c.JSON(http.StatusOK, models.Page[engine.Record]{Data: []engine.Record{}, Total: total, Limit: limit, Offset: offset})
	}

	// offset < total here, so the end cannot overflow.
	end := offset + min(limit, total-offset)
	return c.JSON(http.StatusOK, models.Page[engine.Record]{
		Data:   v.Slice(offset, end).Records(),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *Handler) ExportCSV(c echo.Context) error {
	return h.export(c, "text/csv; charset=utf-8", "salaries.csv", engine.WriteCSV)
}

func (h *Handler) ExportArrow(c echo.Context) error {
	return h.export(c, "application/vnd.apache.arrow.stream", "salaries.arrow", engine.WriteArrow)
}

func (h *Handler) ExportParquet(c echo.Context) error {
	return h.export(c, "application/vnd.apache.parquet", "salaries.parquet", engine.WriteParquet)
}

func (h *Handler) export(c echo.Context, contentType, filename string, write func(io.Writer, engine.View) error) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := write(&buf, v); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}

func (h *Handler) GetChart(c echo.Context) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	p, err := h.paramsFor(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	name := strings.TrimSuffix(c.Param("name"), ".png")
	switch name {
	case "roles":
		err = charts.RolesBar(&buf, engine.TopRoles(v, p.TopN))
	case "histogram":
		err = charts.SalaryHistogram(&buf, engine.Histogram(v, p.HistogramBins))
	case "remote":
		err = charts.RemotePie(&buf, engine.RemoteBreakdown(v))
	case "countries":
		err = charts.CountryBar(&buf, p.FocusRole, engine.CountryMeans(v, p.FocusRole))
	default:
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown chart %q", name))
	}

	if errors.Is(err, charts.ErrNoData) {
		c.Response().Header().Set(WarningHeader, fmt.Sprintf("no data to display in the %s chart", name))
		return c.NoContent(http.StatusNoContent)
	}
	if err != nil {
		return fmt.Errorf("render %s chart: %w", name, err)
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}
