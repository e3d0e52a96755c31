package azkustoingest

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/Azure/azure-kusto-ingest-go/ingestoptions"
	"github.com/shopspring/decimal"
)

// DataFrame is tabular data held in memory.
type DataFrame interface {
	// Len is the number of rows.
	Len() int
	// Row returns the cells of row i, in column order.
	Row(i int) []interface{}
}

// Table is a DataFrame made of rows.
type Table struct {
	Columns []string
	Rows    [][]interface{}
}

// Len implements DataFrame.
func (t Table) Len() int {
	return len(t.Rows)
}

// Row implements DataFrame.
func (t Table) Row(i int) []interface{} {
	return t.Rows[i]
}

// DataFrameSerializer writes a DataFrame to the file that is staged for it. The file is uploaded as is, so
// Ext must name its compression.
type DataFrameSerializer interface {
	// Format is the format of the written data.
	Format() ingestoptions.DataFormat
	// Ext is the file extension of the written data, such as ".csv.gz".
	Ext() string
	Serialize(w io.Writer, df DataFrame) error
}

// CSVSerializer writes UTF-8 CSV without a header row, gzip compressed.
type CSVSerializer struct{}

// Format implements DataFrameSerializer.
func (CSVSerializer) Format() ingestoptions.DataFormat {
	return ingestoptions.CSV
}

// Ext implements DataFrameSerializer.
func (CSVSerializer) Ext() string {
	return ".csv.gz"
}

// Serialize implements DataFrameSerializer.
func (CSVSerializer) Serialize(w io.Writer, df DataFrame) error {
	zw := gzip.NewWriter(w)
	cw := csv.NewWriter(zw)

	var record []string
	for i := 0; i < df.Len(); i++ {
		row := df.Row(i)
		record = record[:0]
		for _, v := range row {
			record = append(record, formatCell(v))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return zw.Close()
}

// formatCell writes v the way the service parses CSV values. nil is an empty (null) cell.
func formatCell(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return formatReal(float64(v), func() string { return decimal.NewFromFloat32(v).String() })
	case float64:
		return formatReal(v, func() string { return decimal.NewFromFloat(v).String() })
	case decimal.Decimal:
		return v.String()
	case *decimal.Decimal:
		if v == nil {
			return ""
		}
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case time.Duration:
		return formatTimespan(v)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}

// formatReal writes NaN and infinities as the service's real literals, finite values in plain notation.
func formatReal(f float64, finite func() string) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return finite()
}

// formatTimespan writes d as [-][d.]hh:mm:ss.fffffff.
func formatTimespan(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ticks := d / 100

	out := fmt.Sprintf("%02d:%02d:%02d.%07d", h, m, s, ticks)
	if days > 0 {
		out = fmt.Sprintf("%d.%s", days, out)
	}
	return sign + out
}
