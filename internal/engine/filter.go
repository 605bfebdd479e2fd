package engine

import (
	"salarydash/internal/models"
	"slices"
	"strconv"
)

// Dimension names one of the four filterable columns.
type Dimension string

const (
	DimYear        Dimension = "year"
	DimSeniority   Dimension = "seniority"
	DimContract    Dimension = "contract_type"
	DimCompanySize Dimension = "company_size"
)

// Dimensions lists the filterable dimensions in display order.
var Dimensions = []Dimension{DimYear, DimSeniority, DimContract, DimCompanySize}

// Selection holds the allowed values per dimension.
// An empty set matches nothing; use DefaultSelection to start from "everything".
type Selection struct {
	Years         []int
	Seniority     []string
	ContractTypes []string
	CompanySizes  []string
}

// View is an ordered subset of a ColumnStore (row indices into the store).
// It never hands out references into the store's columns.
type View struct {
	store *ColumnStore
	rows  []int32
}

// Len returns the number of rows in the view.
func (v View) Len() int { return len(v.rows) }

// Record returns a copy of the i-th row of the view.
func (v View) Record(i int) Record { return v.store.Record(int(v.rows[i])) }

// Records copies the view into a fresh slice.
func (v View) Records() []Record {
	out := make([]Record, len(v.rows))
	for i, r := range v.rows {
		out[i] = v.store.Record(int(r))
	}
	return out
}

// Slice returns the rows in [start, end) of the view, clamped to its bounds.
func (v View) Slice(start, end int) View {
	start = max(0, min(start, len(v.rows)))
	end = max(start, min(end, len(v.rows)))
	return View{store: v.store, rows: v.rows[start:end:end]}
}

// All returns a view over every row of the store.
func All(cs *ColumnStore) View {
	n := cs.Len()
	rows := make([]int32, n)
	for i := range rows {
		rows[i] = int32(i)
	}
	return View{store: cs, rows: rows}
}

// Filter returns the rows whose year, seniority, contract type and company
// size are all in the selection. Input order is preserved.
func Filter(cs *ColumnStore, sel Selection) View {
	n := cs.Len()
	if n == 0 {
		return View{store: cs}
	}

	// Translate each value set into a mask over dictionary ids.
	// Membership then costs one array read per dimension.
	years := make([]bool, len(cs.YearDict))
	for id, y := range cs.YearDict {
		years[id] = slices.Contains(sel.Years, y)
	}
	seniority := dictMask(cs.SeniorityDict, sel.Seniority)
	contracts := dictMask(cs.ContractDict, sel.ContractTypes)
	sizes := dictMask(cs.SizeDict, sel.CompanySizes)

	rows := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		if years[cs.YearIDs[i]] &&
			seniority[cs.SeniorityIDs[i]] &&
			contracts[cs.ContractIDs[i]] &&
			sizes[cs.SizeIDs[i]] {
			rows = append(rows, int32(i))
		}
	}
	return View{store: cs, rows: rows}
}

func dictMask(dict []string, allowed []string) []bool {
	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[v] = struct{}{}
	}
	mask := make([]bool, len(dict))
	for id, v := range dict {
		_, mask[id] = set[v]
	}
	return mask
}

// Options returns the sorted distinct values of every filter dimension.
func Options(cs *ColumnStore) models.FilterOptions {
	if cs == nil {
		return models.FilterOptions{Years: []int{}, Seniority: []string{}, ContractTypes: []string{}, CompanySizes: []string{}}
	}
	years := slices.Clone(cs.YearDict)
	slices.Sort(years)
	if years == nil {
		years = []int{}
	}
	return models.FilterOptions{
		Years:         years,
		Seniority:     sortedCopy(cs.SeniorityDict),
		ContractTypes: sortedCopy(cs.ContractDict),
		CompanySizes:  sortedCopy(cs.SizeDict),
	}
}

// DefaultSelection selects every observed value, so filtering with it
// returns the whole dataset.
func DefaultSelection(cs *ColumnStore) Selection {
	opts := Options(cs)
	return Selection{
		Years:         opts.Years,
		Seniority:     opts.Seniority,
		ContractTypes: opts.ContractTypes,
		CompanySizes:  opts.CompanySizes,
	}
}

// Set replaces the allowed values of one dimension. Year values that are not
// integers are dropped, which leaves them matching nothing.
func (s *Selection) Set(dim Dimension, values ...string) {
	switch dim {
	case DimYear:
		s.Years = make([]int, 0, len(values))
		for _, v := range values {
			if y, err := strconv.Atoi(v); err == nil {
				s.Years = append(s.Years, y)
			}
		}
	case DimSeniority:
		s.Seniority = slices.Clone(values)
	case DimContract:
		s.ContractTypes = slices.Clone(values)
	case DimCompanySize:
		s.CompanySizes = slices.Clone(values)
	}
}

// Allowed returns a copy of the values one dimension accepts, years in
// decimal form. An unknown dimension allows nothing.
func (s Selection) Allowed(dim Dimension) []string {
	switch dim {
	case DimYear:
		out := make([]string, len(s.Years))
		for i, y := range s.Years {
			out[i] = strconv.Itoa(y)
		}
		return out
	case DimSeniority:
		return slices.Clone(s.Seniority)
	case DimContract:
		return slices.Clone(s.ContractTypes)
	case DimCompanySize:
		return slices.Clone(s.CompanySizes)
	}
	return []string{}
}

func sortedCopy(dict []string) []string {
	out := make([]string, len(dict))
	copy(out, dict)
	slices.Sort(out)
	return out
}
