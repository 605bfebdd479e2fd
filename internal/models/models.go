package models

// DashboardData is everything one dashboard render needs for a selection.
type DashboardData struct {
	KPIs         KPIs               `json:"kpis"`
	TopRoles     []RoleMean         `json:"top_roles"`
	Histogram    HistogramSpec      `json:"salary_histogram"`
	RemoteModes  []RemoteCount      `json:"remote_modes"`
	CountryMeans map[string]float64 `json:"country_means"`
	FocusRole    string             `json:"focus_role"`
	Rows         int                `json:"rows"`
}

// KPIs are the headline metrics. When Empty is true the numbers are the
// zero fallback, not statistics.
type KPIs struct {
	MeanSalary float64 `json:"mean_salary"`
	MaxSalary  float64 `json:"max_salary"`
	Count      int     `json:"count"`
	TopRole    string  `json:"top_role"`
	Empty      bool    `json:"empty"`
}

type RoleMean struct {
	Role string  `json:"cargo"`
	Mean float64 `json:"usd"`
}

// HistogramSpec carries raw salaries; binning is left to the renderer.
type HistogramSpec struct {
	Values []float64 `json:"values"`
	Bins   int       `json:"bins"`
}

type RemoteCount struct {
	Mode  string `json:"tipo_trabalho"`
	Count int    `json:"quantidade"`
}

// FilterOptions lists the observed values of each filter dimension.
type FilterOptions struct {
	Years         []int    `json:"year"`
	Seniority     []string `json:"seniority"`
	ContractTypes []string `json:"contract_type"`
	CompanySizes  []string `json:"company_size"`
}

// Page is a paginated slice of detail rows.
type Page[T any] struct {
	Data   []T `json:"data"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
