package table

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
)

// WriteParquet encodes the table as a snappy-compressed Parquet file.
func (t *Table) WriteParquet(w io.Writer) error {
	mem := memory.DefaultAllocator

	schema, err := t.arrowSchema()
	if err != nil {
		return err
	}

	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	for i, fld := range schema.Fields() {
		col := t.columns[fld.Name]
		if err := appendColumn(builder.Field(i), fld.Type, col); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeStorage, "failed to encode column %q", fld.Name)
		}
	}

	rec := builder.NewRecord()
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem))

	fw, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to create parquet writer")
	}

	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to write parquet record")
	}

	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to finalize parquet file")
	}
	return nil
}

// ReadParquet decodes a Parquet payload into a table.
func ReadParquet(data []byte) (*Table, error) {
	rdr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to open parquet payload")
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to create parquet reader")
	}

	arrowTable, err := fr.ReadTable(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to read parquet table")
	}
	defer arrowTable.Release()

	return fromArrowTable(arrowTable)
}

func (t *Table) arrowSchema() (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(t.names))
	for _, name := range t.names {
		dt, err := columnArrowType(t.columns[name])
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeStorage, "column %q", name)
		}
		fields = append(fields, arrow.Field{Name: name, Type: dt, Nullable: true})
	}
	return arrow.NewSchema(fields, nil), nil
}

// columnArrowType infers the Arrow type from the first non-nil cell. Mixed
// int64/float64 columns widen to float64; any other mix is rejected so no
// undeclared type escapes into an artifact.
func columnArrowType(values []interface{}) (arrow.DataType, error) {
	var dt arrow.DataType
	for _, v := range values {
		cellType, err := cellArrowType(v)
		if err != nil {
			return nil, err
		}
		if cellType == nil {
			continue
		}
		switch {
		case dt == nil:
			dt = cellType
		case arrow.TypeEqual(dt, cellType):
		case dt.ID() == arrow.INT64 && cellType.ID() == arrow.FLOAT64:
			dt = arrow.PrimitiveTypes.Float64
		case dt.ID() == arrow.FLOAT64 && cellType.ID() == arrow.INT64:
		default:
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"mixed cell types %s and %s", dt, cellType)
		}
	}
	if dt == nil {
		// All-nil columns persist as nullable strings.
		dt = arrow.BinaryTypes.String
	}
	return dt, nil
}

func cellArrowType(v interface{}) (arrow.DataType, error) {
	switch v.(type) {
	case nil:
		return nil, nil
	case string:
		return arrow.BinaryTypes.String, nil
	case int64:
		return arrow.PrimitiveTypes.Int64, nil
	case float64:
		return arrow.PrimitiveTypes.Float64, nil
	case bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case time.Time:
		return arrow.FixedWidthTypes.Timestamp_us, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported cell type %T", v)
	}
}

func appendColumn(b array.Builder, dt arrow.DataType, values []interface{}) error {
	for _, v := range values {
		if v == nil {
			b.AppendNull()
			continue
		}
		switch builder := b.(type) {
		case *array.StringBuilder:
			s, ok := AsString(v)
			if !ok {
				return errors.Newf(errors.ErrorTypeValidation, "cannot encode %T as string", v)
			}
			builder.Append(s)
		case *array.Int64Builder:
			builder.Append(v.(int64))
		case *array.Float64Builder:
			f, ok := AsFloat(v)
			if !ok {
				return errors.Newf(errors.ErrorTypeValidation, "cannot encode %T as float64", v)
			}
			builder.Append(f)
		case *array.BooleanBuilder:
			builder.Append(v.(bool))
		case *array.TimestampBuilder:
			ts, ok := AsTime(v)
			if !ok {
				return errors.Newf(errors.ErrorTypeValidation, "cannot encode %T as timestamp", v)
			}
			builder.Append(arrow.Timestamp(ts.UTC().UnixMicro()))
		default:
			return errors.Newf(errors.ErrorTypeValidation, "unsupported arrow type %s", dt)
		}
	}
	return nil
}

func fromArrowTable(at arrow.Table) (*Table, error) {
	out := New()
	for i := 0; i < int(at.NumCols()); i++ {
		fld := at.Schema().Field(i)
		values := make([]interface{}, 0, int(at.NumRows()))
		for _, chunk := range at.Column(i).Data().Chunks() {
			decoded, err := decodeChunk(chunk, fld.Type)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrorTypeStorage, "column %q", fld.Name)
			}
			values = append(values, decoded...)
		}
		if err := out.AddColumn(fld.Name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeChunk(chunk arrow.Array, dt arrow.DataType) ([]interface{}, error) {
	values := make([]interface{}, chunk.Len())
	switch arr := chunk.(type) {
	case *array.String:
		for j := 0; j < arr.Len(); j++ {
			if !arr.IsNull(j) {
				values[j] = arr.Value(j)
			}
		}
	case *array.Int64:
		for j := 0; j < arr.Len(); j++ {
			if !arr.IsNull(j) {
				values[j] = arr.Value(j)
			}
		}
	case *array.Float64:
		for j := 0; j < arr.Len(); j++ {
			if !arr.IsNull(j) {
				values[j] = arr.Value(j)
			}
		}
	case *array.Boolean:
		for j := 0; j < arr.Len(); j++ {
			if !arr.IsNull(j) {
				values[j] = arr.Value(j)
			}
		}
	case *array.Timestamp:
		tsType, ok := dt.(*arrow.TimestampType)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeStorage, "unexpected type %s for timestamp column", dt)
		}
		for j := 0; j < arr.Len(); j++ {
			if !arr.IsNull(j) {
				values[j] = arr.Value(j).ToTime(tsType.Unit).UTC()
			}
		}
	default:
		return nil, errors.Newf(errors.ErrorTypeStorage, "unsupported parquet column type %s", dt)
	}
	return values, nil
}
