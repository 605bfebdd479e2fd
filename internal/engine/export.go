package engine

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// detailSchema is the layout of the detail table exports, using the source
// column names.
var detailSchema = arrow.NewSchema([]arrow.Field{
	{Name: ColYear, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColSeniority, Type: arrow.BinaryTypes.String},
	{Name: ColContract, Type: arrow.BinaryTypes.String},
	{Name: ColCompanySize, Type: arrow.BinaryTypes.String},
	{Name: ColRole, Type: arrow.BinaryTypes.String},
	{Name: ColRemote, Type: arrow.BinaryTypes.String},
	{Name: ColCountry, Type: arrow.BinaryTypes.String},
	{Name: ColSalary, Type: arrow.PrimitiveTypes.Float64},
}, nil)

// buildRecord copies the view into one Arrow record batch.
// The caller releases the result.
func buildRecord(mem memory.Allocator, v View) arrow.Record {
	b := array.NewRecordBuilder(mem, detailSchema)
	defer b.Release()

	years := b.Field(0).(*array.Int64Builder)
	strs := make([]*array.StringBuilder, 6)
	for i := range strs {
		strs[i] = b.Field(i + 1).(*array.StringBuilder)
	}
	salaries := b.Field(7).(*array.Float64Builder)

	cs := v.store
	for _, row := range v.rows {
		years.Append(int64(cs.YearDict[cs.YearIDs[row]]))
		strs[0].Append(cs.SeniorityDict[cs.SeniorityIDs[row]])
		strs[1].Append(cs.ContractDict[cs.ContractIDs[row]])
		strs[2].Append(cs.SizeDict[cs.SizeIDs[row]])
		strs[3].Append(cs.RoleDict[cs.RoleIDs[row]])
		strs[4].Append(cs.RemoteDict[cs.RemoteIDs[row]])
		strs[5].Append(cs.CountryDict[cs.CountryIDs[row]])
		salaries.Append(cs.Salaries[row])
	}
	return b.NewRecord()
}

// WriteArrow streams the view as an Arrow IPC stream with a single batch.
func WriteArrow(w io.Writer, v View) error {
	mem := memory.NewGoAllocator()
	rec := buildRecord(mem, v)
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(detailSchema), ipc.WithAllocator(mem))
	if err := iw.Write(rec); err != nil {
		_ = iw.Close()
		return fmt.Errorf("write arrow batch: %w", err)
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("close arrow stream: %w", err)
	}
	return nil
}

// WriteCSV writes the view as CSV with the source header.
func WriteCSV(w io.Writer, v View) error {
	rec := buildRecord(memory.NewGoAllocator(), v)
	defer rec.Release()

	cw := csv.NewWriter(w, detailSchema, csv.WithHeader(true))
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteParquet writes the view as a snappy-compressed Parquet file with the
// Arrow schema stored, so LoadParquet reads it back unchanged.
func WriteParquet(w io.Writer, v View) error {
	mem := memory.NewGoAllocator()
	rec := buildRecord(mem, v)
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy), parquet.WithAllocator(mem))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	pw, err := pqarrow.NewFileWriter(detailSchema, w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	if err := pw.Write(rec); err != nil {
		_ = pw.Close()
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet: %w", err)
	}
	return nil
}
