package engine

import (
	"salarydash/internal/models"
	"sort"
)

const (
	// DefaultTopN is how many roles the ranking keeps.
	DefaultTopN = 10
	// DefaultHistogramBins is the bin count handed to the histogram renderer.
	DefaultHistogramBins = 30
	// DefaultFocusRole is the role the country map is restricted to.
	DefaultFocusRole = "Data Scientist"
)

// Params tunes the projections built by Aggregate.
type Params struct {
	TopN          int
	HistogramBins int
	FocusRole     string
}

// DefaultParams returns the reference dashboard settings.
func DefaultParams() Params {
	return Params{
		TopN:          DefaultTopN,
		HistogramBins: DefaultHistogramBins,
		FocusRole:     DefaultFocusRole,
	}
}

// groupStats accumulates per-dictionary-id sums.
type groupStats struct {
	sum   float64
	count int
}

// groupBy folds the view into per-id stats using array indexing
// (ids are dense 0..len(dict)-1). It returns the stats and the ids in
// first-appearance order.
func groupBy(v View, ids []int32, dictLen int, keep func(row int32) bool) ([]groupStats, []int32) {
	stats := make([]groupStats, dictLen)
	order := make([]int32, 0)
	for _, row := range v.rows {
		if keep != nil && !keep(row) {
			continue
		}
		id := ids[row]
		g := &stats[id]
		if g.count == 0 {
			order = append(order, id)
		}
		g.sum += v.store.Salaries[row]
		g.count++
	}
	return stats, order
}

// KPIs returns mean, max and count of salaries and the most frequent role.
// Ties for the most frequent role go to the role seen first in the view.
// An empty view yields the zero fallback with Empty set.
func KPIs(v View) models.KPIs {
	if v.Len() == 0 {
		return models.KPIs{Empty: true}
	}

	cs := v.store
	var sum float64
	maxSalary := cs.Salaries[v.rows[0]]
	for _, row := range v.rows {
		s := cs.Salaries[row]
		sum += s
		if s > maxSalary {
			maxSalary = s
		}
	}

	stats, order := groupBy(v, cs.RoleIDs, len(cs.RoleDict), nil)
	top := order[0]
	for _, id := range order[1:] {
		if stats[id].count > stats[top].count {
			top = id
		}
	}

	return models.KPIs{
		MeanSalary: sum / float64(v.Len()),
		MaxSalary:  maxSalary,
		Count:      v.Len(),
		TopRole:    cs.RoleDict[top],
	}
}

// TopRoles ranks roles by mean salary, keeps the n highest and returns them
// ascending (largest last). Equal means keep first-appearance order.
func TopRoles(v View, n int) []models.RoleMean {
	out := make([]models.RoleMean, 0)
	if v.Len() == 0 || n <= 0 {
		return out
	}

	cs := v.store
	stats, order := groupBy(v, cs.RoleIDs, len(cs.RoleDict), nil)
	for _, id := range order {
		out = append(out, models.RoleMean{
			Role: cs.RoleDict[id],
			Mean: stats[id].sum / float64(stats[id].count),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Mean > out[j].Mean })
	if len(out) > n {
		out = out[:n]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mean < out[j].Mean })
	return out
}

// Histogram returns the salaries of the view in order, untouched, with the
// bin count the renderer should use.
func Histogram(v View, bins int) models.HistogramSpec {
	values := make([]float64, v.Len())
	for i, row := range v.rows {
		values[i] = v.store.Salaries[row]
	}
	return models.HistogramSpec{Values: values, Bins: bins}
}

// RemoteBreakdown counts rows per remote mode, most frequent first.
// Equal counts keep first-appearance order.
func RemoteBreakdown(v View) []models.RemoteCount {
	out := make([]models.RemoteCount, 0)
	if v.Len() == 0 {
		return out
	}

	cs := v.store
	stats, order := groupBy(v, cs.RemoteIDs, len(cs.RemoteDict), nil)
	for _, id := range order {
		out = append(out, models.RemoteCount{Mode: cs.RemoteDict[id], Count: stats[id].count})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// CountryMeans returns the mean salary per country over rows whose role is
// exactly role. Countries without such rows have no key.
func CountryMeans(v View, role string) map[string]float64 {
	out := make(map[string]float64)
	if v.Len() == 0 {
		return out
	}

	cs := v.store
	roleID := int32(-1)
	for id, r := range cs.RoleDict {
		if r == role {
			roleID = int32(id)
			break
		}
	}
	if roleID < 0 {
		return out
	}

	stats, order := groupBy(v, cs.CountryIDs, len(cs.CountryDict), func(row int32) bool {
		return cs.RoleIDs[row] == roleID
	})
	for _, id := range order {
		out[cs.CountryDict[id]] = stats[id].sum / float64(stats[id].count)
	}
	return out
}

// Aggregate builds every dashboard projection for the view.
func Aggregate(v View, p Params) *models.DashboardData {
	return &models.DashboardData{
		KPIs:         KPIs(v),
		TopRoles:     TopRoles(v, p.TopN),
		Histogram:    Histogram(v, p.HistogramBins),
		RemoteModes:  RemoteBreakdown(v),
		CountryMeans: CountryMeans(v, p.FocusRole),
		FocusRole:    p.FocusRole,
		Rows:         v.Len(),
	}
}
