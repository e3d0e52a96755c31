// Package ingestoptions holds the public enumerations shared by the ingestion client and its internal packages:
// the encoding format of the source data and the compression applied to it.
package ingestoptions

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// CompressionType is a file's compression type.
type CompressionType int8

// String implements fmt.Stringer.
func (c CompressionType) String() string {
	switch c {
	case CTNone:
		return "none"
	case GZIP:
		return "gzip"
	case ZIP:
		return "zip"
	}
	return "unknown compression type"
}

//goland:noinspection GoUnusedConst - Part of the API
const (
	// CTUnknown indicates that that the compression type was unset.
	CTUnknown CompressionType = 0
	// CTNone indicates that the file was not compressed.
	CTNone CompressionType = 1
	// GZIP indicates that the file is GZIP compressed.
	GZIP CompressionType = 2
	// ZIP indicates that the file is ZIP compressed.
	ZIP CompressionType = 3
)

// DataFormat indicates what type of encoding format was used for source data.
// More info here: https://docs.microsoft.com/en-us/azure/kusto/management/data-ingestion/
type DataFormat int

//goland:noinspection GoUnusedConst - Part of the API
const (
	// DFUnknown indicates the EncodingType is not set.
	DFUnknown DataFormat = 0
	// AVRO indicates the source is encoded in Apache Avro format.
	AVRO DataFormat = 1
	// ApacheAVRO indicates the source is encoded in Apache avro2json format.
	ApacheAVRO DataFormat = 2
	// CSV indicates the source is encoded in comma seperated values.
	CSV DataFormat = 3
	// JSON indicates the source is encoded as one or more lines, each containing a record in Javascript Object Notation.
	JSON DataFormat = 4
	// MultiJSON indicates the source is encoded in JSON-Array of individual records in Javascript Object Notation.
	MultiJSON DataFormat = 5
	// ORC indicates the source is encoded in Apache Optimized Row Columnar format.
	ORC DataFormat = 6
	// Parquet indicates the source is encoded in Apache Parquet format.
	Parquet DataFormat = 7
	// PSV is pipe "|" separated values.
	PSV DataFormat = 8
	// Raw is a text file that has only a single string value.
	Raw DataFormat = 9
	// SCSV is a file containing semicolon ";" separated values.
	SCSV DataFormat = 10
	// SOHSV is a file containing SOH-separated values(ASCII codepoint 1).
	SOHSV DataFormat = 11
	// SStream indicats the source is encoded as a Microsoft Cosmos Structured Streams format
	SStream DataFormat = 12
	// TSV is a file containing tab seperated values ("\t").
	TSV DataFormat = 13
	// TSVE is a file containing escaped-tab seperated values ("\t").
	TSVE DataFormat = 14
	// TXT is a text file with lines delimited by "\n".
	TXT DataFormat = 15
	// W3CLogFile indicates the source is encoded using W3C Extended Log File format.
	W3CLogFile DataFormat = 16
	// SingleJSON indicates the source is a single JSON value -- newlines are regular whitespace.
	SingleJSON DataFormat = 17
)

type dfDescriptor struct {
	camelName        string
	jsonName         string
	detectableExt    string
	validMappingKind bool
	binary           bool
}

var dfDescriptions = []dfDescriptor{
	{"", "", "", false, false},
	{"Avro", "avro", ".avro", true, true},
	{"ApacheAvro", "apacheavro", "", false, true},
	{"Csv", "csv", ".csv", true, false},
	{"Json", "json", ".json", true, false},
	{"MultiJson", "multijson", "", false, false},
	{"Orc", "orc", ".orc", true, true},
	{"Parquet", "parquet", ".parquet", true, true},
	{"Psv", "psv", ".psv", false, false},
	{"Raw", "raw", ".raw", false, false},
	{"Scsv", "scsv", ".scsv", false, false},
	{"Sohsv", "sohsv", ".sohsv", false, false},
	{"SStream", "sstream", ".ss", false, false},
	{"Tsv", "tsv", ".tsv", false, false},
	{"Tsve", "tsve", ".tsve", false, false},
	{"Txt", "txt", ".txt", false, false},
	{"W3cLogFile", "w3clogfile", ".w3clogfile", false, false},
	{"SingleJson", "singlejson", "", false, false},
}

func (d DataFormat) known() bool {
	return d > 0 && int(d) < len(dfDescriptions)
}

// String implements fmt.Stringer.
func (d DataFormat) String() string {
	if d.known() {
		return dfDescriptions[d].jsonName
	}
	return ""
}

// CamelCase returns the CamelCase version, which is how the service expects a mapping kind.
func (d DataFormat) CamelCase() string {
	if d.known() {
		return dfDescriptions[d].camelName
	}
	return ""
}

// KnownOrDefault returns CSV if the format is unset.
func (d DataFormat) KnownOrDefault() DataFormat {
	if d == DFUnknown {
		return CSV
	}
	return d
}

// IsValidMappingKind returns true if a dataformat can be used as a MappingKind.
func (d DataFormat) IsValidMappingKind() bool {
	if d.known() {
		return dfDescriptions[d].validMappingKind
	}
	return false
}

// IsBinary reports formats that carry their own compression and are uploaded as is.
func (d DataFormat) IsBinary() bool {
	if d.known() {
		return dfDescriptions[d].binary
	}
	return false
}

// MarshalJSON implements json.Marshaler.MarshalJSON.
func (d DataFormat) MarshalJSON() ([]byte, error) {
	if d == DFUnknown {
		return nil, fmt.Errorf("DataFormat is an invalid encoding type")
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler. Both the lower case and the CamelCase names are accepted.
func (d *DataFormat) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	f, err := ParseDataFormat(s)
	if err != nil {
		return err
	}
	*d = f
	return nil
}

// ParseDataFormat returns the DataFormat with the given name, matched case insensitively.
func ParseDataFormat(s string) (DataFormat, error) {
	for i, desc := range dfDescriptions[1:] {
		if strings.EqualFold(s, desc.jsonName) || strings.EqualFold(s, desc.camelName) {
			return DataFormat(i + 1), nil
		}
	}
	return DFUnknown, fmt.Errorf("%q is not a DataFormat we understand", s)
}

// DataFormatDiscovery looks at the file name and tries to discover what type of file it is.
// A trailing compression extension (.gz, .zip) is ignored.
func DataFormatDiscovery(fName string) DataFormat {
	name := fName
	u := strings.ToLower(name)
	if strings.HasSuffix(u, ".zip") || strings.HasSuffix(u, ".gz") {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return DFUnknown
	}
	for i, desc := range dfDescriptions {
		if desc.detectableExt != "" && desc.detectableExt == ext {
			return DataFormat(i)
		}
	}
	return DFUnknown
}

// CompressionDiscovery looks at the file extension. If it is one we support, we return that
// CompressionType that represents that value. Otherwise we return CTNone to indicate that the
// file is not compressed.
func CompressionDiscovery(fName string) CompressionType {
	var ext string
	if strings.HasPrefix(strings.ToLower(fName), "http") {
		ext = strings.ToLower(filepath.Ext(path.Base(fName)))
	} else {
		ext = strings.ToLower(filepath.Ext(fName))
	}

	switch ext {
	case ".gz":
		return GZIP
	case ".zip":
		return ZIP
	}
	return CTNone
}
