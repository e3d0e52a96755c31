package azkustoingest

import (
	"testing"

	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/properties"
	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/Azure/azure-kusto-ingest-go/ingestoptions"
	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/assert"
)

func TestIngestionPropertiesValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc  string
		props IngestionProperties
		err   bool
	}{
		{desc: "minimal", props: IngestionProperties{Database: "db", Table: "t"}},
		{desc: "no database", props: IngestionProperties{Table: "t"}, err: true},
		{desc: "no table", props: IngestionProperties{Database: "db"}, err: true},
		{
			desc:  "mapping ref with format",
			props: IngestionProperties{Database: "db", Table: "t", Format: ingestoptions.JSON, IngestionMappingRef: "m"},
		},
		{
			desc:  "mapping ref without kind or format",
			props: IngestionProperties{Database: "db", Table: "t", IngestionMappingRef: "m"},
		},
		{
			desc:  "mapping ref with a format that is no mapping kind",
			props: IngestionProperties{Database: "db", Table: "t", Format: ingestoptions.TSV, IngestionMappingRef: "m"},
			err:   true,
		},
		{
			desc:  "mapping kind that cannot be one",
			props: IngestionProperties{Database: "db", Table: "t", IngestionMappingRef: "m", IngestionMappingType: ingestoptions.TSV},
			err:   true,
		},
		{
			desc:  "inline mapping",
			props: IngestionProperties{Database: "db", Table: "t", IngestionMapping: `[{"column":"a","Properties":{"Ordinal":"0"}}]`, IngestionMappingType: ingestoptions.CSV},
		},
		{
			desc:  "inline mapping is not json",
			props: IngestionProperties{Database: "db", Table: "t", IngestionMapping: `[{`, IngestionMappingType: ingestoptions.CSV},
			err:   true,
		},
		{
			desc:  "both mappings",
			props: IngestionProperties{Database: "db", Table: "t", IngestionMapping: `[]`, IngestionMappingRef: "m", Format: ingestoptions.CSV},
			err:   true,
		},
		{
			desc:  "validation policy is not json",
			props: IngestionProperties{Database: "db", Table: "t", ValidationPolicy: "strict"},
			err:   true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.desc, func(t *testing.T) {
			t.Parallel()

			err := test.props.Validate()
			if test.err {
				assert.Error(t, err)
				assert.Equal(t, errors.KInvalidInput, errors.KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestIngestionPropertiesIngestion(t *testing.T) {
	t.Parallel()

	props := IngestionProperties{
		Database:            "db",
		Table:               "table",
		Format:              ingestoptions.JSON,
		IngestionMappingRef: "mapping",
		Tags:                []string{"a", "b"},
		IngestIfNotExists:   "a",
		FlushImmediately:    true,
		DeleteBlobOnSuccess: true,
		ReportLevel:         FailureAndSuccess,
		ReportMethod:        ReportStatusToTable,
		Additional:          map[string]string{"creationTime": "2024-01-01"},
	}

	got := props.ingestion(BlobDescriptor{URL: "https://a.blob.core.windows.net/c/b.json?sig=1", Size: 12}, ingestoptions.JSON, "token")

	want := properties.Ingestion{
		BlobPath:             "https://a.blob.core.windows.net/c/b.json?sig=1",
		RawDataSize:          12,
		DatabaseName:         "db",
		TableName:            "table",
		FlushImmediately:     true,
		ReportLevel:          FailureAndSuccess,
		ReportMethod:         ReportStatusToTable,
		AuthorizationContext: "token",
		Additional: properties.Additional{
			Format:               ingestoptions.JSON,
			IngestionMappingRef:  "mapping",
			IngestionMappingType: ingestoptions.JSON,
			Tags:                 []string{"a", "b"},
			IngestIfNotExists:    "a",
			Extra:                map[string]string{"creationTime": "2024-01-01"},
		},
	}

	if diff := pretty.Compare(want, got); diff != "" {
		t.Errorf("ingestion() -want/+got:\n%s", diff)
	}
}

func TestIngestionPropertiesMappingType(t *testing.T) {
	t.Parallel()

	props := IngestionProperties{Database: "db", Table: "t", IngestionMappingRef: "m"}
	blob := BlobDescriptor{URL: "https://a.blob.core.windows.net/c/b?sig=1", Size: 1}

	tests := []struct {
		desc   string
		given  ingestoptions.DataFormat
		format ingestoptions.DataFormat
		want   ingestoptions.DataFormat
	}{
		{desc: "unknown format", format: ingestoptions.DFUnknown, want: ingestoptions.CSV},
		{desc: "discovered format", format: ingestoptions.JSON, want: ingestoptions.JSON},
		{desc: "given kind wins", given: ingestoptions.AVRO, format: ingestoptions.JSON, want: ingestoptions.AVRO},
	}

	for _, test := range tests {
		p := props
		p.IngestionMappingType = test.given
		got := p.ingestion(blob, test.format, "token")
		assert.Equal(t, test.want, got.Additional.IngestionMappingType, test.desc)
		assert.Equal(t, test.format.KnownOrDefault(), got.Additional.Format, test.desc)
	}
}

func TestBlobFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url   string
		given ingestoptions.DataFormat
		want  ingestoptions.DataFormat
	}{
		{url: "https://a.blob.core.windows.net/c/file.parquet?sig=1", want: ingestoptions.Parquet},
		{url: "https://a.blob.core.windows.net/c/file.json.gz?sig=1", want: ingestoptions.JSON},
		{url: "https://a.blob.core.windows.net/c/file?sig=1", want: ingestoptions.DFUnknown},
		{url: "https://a.blob.core.windows.net/c/file.csv?sig=1", given: ingestoptions.TSV, want: ingestoptions.TSV},
	}

	for _, test := range tests {
		props := IngestionProperties{Format: test.given}
		assert.Equal(t, test.want, props.blobFormat(test.url), test.url)
	}
}
