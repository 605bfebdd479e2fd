package engine

// ColumnStore holds the salary dataset in Struct-of-Arrays format.
// It is built once by the loader and never mutated afterwards.
type ColumnStore struct {
	// Data Columns (Flat Arrays)
	Salaries []float64

	// Dictionary Encoded IDs (0..N), assigned in first-appearance order
	YearIDs      []int32
	SeniorityIDs []int32
	ContractIDs  []int32
	SizeIDs      []int32
	RoleIDs      []int32
	RemoteIDs    []int32
	CountryIDs   []int32

	// Dictionaries (ID -> Value)
	YearDict      []int
	SeniorityDict []string
	ContractDict  []string
	SizeDict      []string
	RoleDict      []string
	RemoteDict    []string
	CountryDict   []string
}

// Record is one salary observation.
type Record struct {
	Year         int     `json:"ano"`
	Seniority    string  `json:"senioridade"`
	ContractType string  `json:"contrato"`
	CompanySize  string  `json:"tamanho_empresa"`
	RoleTitle    string  `json:"cargo"`
	RemoteMode   string  `json:"remoto"`
	CountryISO3  string  `json:"residencia_iso3"`
	SalaryUSD    float64 `json:"usd"`
}

// Len returns the number of rows in the store.
func (cs *ColumnStore) Len() int {
	if cs == nil {
		return 0
	}
	return len(cs.Salaries)
}

// Record materializes row i as a value copy.
func (cs *ColumnStore) Record(i int) Record {
	return Record{
		Year:         cs.YearDict[cs.YearIDs[i]],
		Seniority:    cs.SeniorityDict[cs.SeniorityIDs[i]],
		ContractType: cs.ContractDict[cs.ContractIDs[i]],
		CompanySize:  cs.SizeDict[cs.SizeIDs[i]],
		RoleTitle:    cs.RoleDict[cs.RoleIDs[i]],
		RemoteMode:   cs.RemoteDict[cs.RemoteIDs[i]],
		CountryISO3:  cs.CountryDict[cs.CountryIDs[i]],
		SalaryUSD:    cs.Salaries[i],
	}
}

// NewColumnStore encodes records into a ColumnStore, preserving their order.
func NewColumnStore(records []Record) *ColumnStore {
	b := newStoreBuilder(len(records))
	for _, r := range records {
		b.append(r)
	}
	return b.store
}

// storeBuilder appends rows and maintains the dictionaries.
type storeBuilder struct {
	store *ColumnStore

	years     map[int]int32
	seniority map[string]int32
	contracts map[string]int32
	sizes     map[string]int32
	roles     map[string]int32
	remote    map[string]int32
	countries map[string]int32
}

func newStoreBuilder(capacity int) *storeBuilder {
	return &storeBuilder{
		store: &ColumnStore{
			Salaries:     make([]float64, 0, capacity),
			YearIDs:      make([]int32, 0, capacity),
			SeniorityIDs: make([]int32, 0, capacity),
			ContractIDs:  make([]int32, 0, capacity),
			SizeIDs:      make([]int32, 0, capacity),
			RoleIDs:      make([]int32, 0, capacity),
			RemoteIDs:    make([]int32, 0, capacity),
			CountryIDs:   make([]int32, 0, capacity),
		},
		years:     make(map[int]int32),
		seniority: make(map[string]int32),
		contracts: make(map[string]int32),
		sizes:     make(map[string]int32),
		roles:     make(map[string]int32),
		remote:    make(map[string]int32),
		countries: make(map[string]int32),
	}
}

func (b *storeBuilder) append(r Record) {
	s := b.store
	s.Salaries = append(s.Salaries, r.SalaryUSD)

	yid, ok := b.years[r.Year]
	if !ok {
		yid = int32(len(s.YearDict))
		s.YearDict = append(s.YearDict, r.Year)
		b.years[r.Year] = yid
	}
	s.YearIDs = append(s.YearIDs, yid)

	s.SeniorityIDs = append(s.SeniorityIDs, encode(b.seniority, &s.SeniorityDict, r.Seniority))
	s.ContractIDs = append(s.ContractIDs, encode(b.contracts, &s.ContractDict, r.ContractType))
	s.SizeIDs = append(s.SizeIDs, encode(b.sizes, &s.SizeDict, r.CompanySize))
	s.RoleIDs = append(s.RoleIDs, encode(b.roles, &s.RoleDict, r.RoleTitle))
	s.RemoteIDs = append(s.RemoteIDs, encode(b.remote, &s.RemoteDict, r.RemoteMode))
	s.CountryIDs = append(s.CountryIDs, encode(b.countries, &s.CountryDict, r.CountryISO3))
}

// encode returns the dictionary id for v, adding it on first sight.
func encode(ids map[string]int32, dict *[]string, v string) int32 {
	if id, ok := ids[v]; ok {
		return id
	}
	id := int32(len(*dict))
	*dict = append(*dict, v)
	ids[v] = id
	return id
}
