package engine

import (
	"bufio"
	"context"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// Source column names.
const (
	ColYear        = "ano"
	ColSeniority   = "senioridade"
	ColContract    = "contrato"
	ColCompanySize = "tamanho_empresa"
	ColRole        = "cargo"
	ColRemote      = "remoto"
	ColCountry     = "residencia_iso3"
	ColSalary      = "usd"
)

// chunkRows is how many rows the CSV reader packs into one record batch.
const chunkRows = 4096

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// ErrNoHeader is returned for input without a header row.
var ErrNoHeader = errors.New("csv has no header row")

// ErrColumnType is returned when a required column has an unusable type.
var ErrColumnType = errors.New("unexpected column type")

var requiredColumns = []struct {
	name string
	typ  arrow.DataType
}{
	{ColYear, arrow.PrimitiveTypes.Int64},
	{ColSeniority, arrow.BinaryTypes.String},
	{ColContract, arrow.BinaryTypes.String},
	{ColCompanySize, arrow.BinaryTypes.String},
	{ColRole, arrow.BinaryTypes.String},
	{ColRemote, arrow.BinaryTypes.String},
	{ColCountry, arrow.BinaryTypes.String},
	{ColSalary, arrow.PrimitiveTypes.Float64},
}

// LoadStats describes one load.
type LoadStats struct {
	Rows     int
	Skipped  int
	Duration time.Duration
}

// LoadCSV parses a salary CSV into a ColumnStore.
//
// Required columns are located by header name; any other column is read as
// text and dropped. Rows with an empty year or a missing or non-finite salary
// are skipped and counted.
func LoadCSV(r io.Reader) (*ColumnStore, LoadStats, error) {
	start := time.Now()
	var stats LoadStats

	// A. Header: resolve column positions ourselves so the Arrow schema can
	// be positional while callers stay name-based.
	br := bufio.NewReader(r)
	headerLine, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, stats, fmt.Errorf("read csv header: %w", err)
	}
	if strings.TrimSpace(headerLine) == "" {
		return nil, stats, ErrNoHeader
	}
	names, err := stdcsv.NewReader(strings.NewReader(headerLine)).Read()
	if err != nil {
		return nil, stats, fmt.Errorf("parse csv header: %w", err)
	}

	index := make(map[string]int, len(names))
	fields := make([]arrow.Field, len(names))
	for i, n := range names {
		n = strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))
		if _, dup := index[n]; !dup {
			index[n] = i
		}
		fields[i] = arrow.Field{Name: n, Type: arrow.BinaryTypes.String, Nullable: true}
	}

	pos := make(map[string]int, len(requiredColumns))
	var missing []string
	for _, c := range requiredColumns {
		i, ok := index[c.name]
		if !ok {
			missing = append(missing, c.name)
			continue
		}
		fields[i].Type = c.typ
		pos[c.name] = i
	}
	if len(missing) > 0 {
		return nil, stats, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	// B. Body: Arrow decodes and type-checks in record batches.
	rd := csv.NewReader(
		io.MultiReader(strings.NewReader(headerLine), br),
		arrow.NewSchema(fields, nil),
		csv.WithHeader(true),
		csv.WithChunk(chunkRows),
		csv.WithNullReader(false, "", "NA", "NULL", "null"),
		csv.WithAllocator(memory.NewGoAllocator()),
	)
	defer rd.Release()

	b := newStoreBuilder(0)
	for rd.Next() {
		// CSV columns are typed by our own schema, so this cannot fail.
		if err := appendBatch(b, rd.Record(), pos, &stats); err != nil {
			return nil, stats, err
		}
	}
	if err := rd.Err(); err != nil {
		return nil, stats, fmt.Errorf("parse csv: %w", err)
	}

	stats.Rows = b.store.Len()
	stats.Duration = time.Since(start)
	return b.store, stats, nil
}

// LoadParquet reads a Parquet file (as written by WriteParquet) into a
// ColumnStore. Year must be int64, salary float64 and the rest utf8.
func LoadParquet(ctx context.Context, r parquet.ReaderAtSeeker) (*ColumnStore, LoadStats, error) {
	start := time.Now()
	var stats LoadStats

	pf, err := file.NewParquetReader(r)
	if err != nil {
		return nil, stats, fmt.Errorf("open parquet: %w", err)
	}
	defer pf.Close()

	mem := memory.NewGoAllocator()
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: chunkRows}, mem)
	if err != nil {
		return nil, stats, fmt.Errorf("open parquet: %w", err)
	}
	table, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("read parquet: %w", err)
	}
	defer table.Release()

	schema := table.Schema()
	pos := make(map[string]int, len(requiredColumns))
	var missing []string
	for _, c := range requiredColumns {
		idx := schema.FieldIndices(c.name)
		if len(idx) == 0 {
			missing = append(missing, c.name)
			continue
		}
		pos[c.name] = idx[0]
	}
	if len(missing) > 0 {
		return nil, stats, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	b := newStoreBuilder(int(table.NumRows()))
	tr := array.NewTableReader(table, chunkRows)
	defer tr.Release()
	for tr.Next() {
		if err := appendBatch(b, tr.Record(), pos, &stats); err != nil {
			return nil, stats, err
		}
	}
	if err := tr.Err(); err != nil {
		return nil, stats, fmt.Errorf("read parquet: %w", err)
	}

	stats.Rows = b.store.Len()
	stats.Duration = time.Since(start)
	return b.store, stats, nil
}

// appendBatch decodes one record batch into b. pos maps required column
// names to their index in rec.
func appendBatch(b *storeBuilder, rec arrow.Record, pos map[string]int, stats *LoadStats) error {
	years, ok := rec.Column(pos[ColYear]).(*array.Int64)
	if !ok {
		return fmt.Errorf("%w: %s is %s", ErrColumnType, ColYear, rec.Column(pos[ColYear]).DataType())
	}
	salaries, ok := rec.Column(pos[ColSalary]).(*array.Float64)
	if !ok {
		return fmt.Errorf("%w: %s is %s", ErrColumnType, ColSalary, rec.Column(pos[ColSalary]).DataType())
	}
	var text [6]*array.String
	for i, name := range []string{ColSeniority, ColContract, ColCompanySize, ColRole, ColRemote, ColCountry} {
		if text[i], ok = rec.Column(pos[name]).(*array.String); !ok {
			return fmt.Errorf("%w: %s is %s", ErrColumnType, name, rec.Column(pos[name]).DataType())
		}
	}

	for i := 0; i < int(rec.NumRows()); i++ {
		if years.IsNull(i) || salaries.IsNull(i) {
			stats.Skipped++
			continue
		}
		if s := salaries.Value(i); math.IsNaN(s) || math.IsInf(s, 0) {
			stats.Skipped++
			continue
		}
		b.append(Record{
			Year:         int(years.Value(i)),
			Seniority:    strings.TrimSpace(text[0].Value(i)),
			ContractType: strings.TrimSpace(text[1].Value(i)),
			CompanySize:  strings.TrimSpace(text[2].Value(i)),
			RoleTitle:    strings.TrimSpace(text[3].Value(i)),
			RemoteMode:   strings.TrimSpace(text[4].Value(i)),
			CountryISO3:  strings.TrimSpace(text[5].Value(i)),
			SalaryUSD:    salaries.Value(i),
		})
	}
	return nil
}
