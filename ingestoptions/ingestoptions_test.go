package ingestoptions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDiscovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  DataFormat
	}{
		{".avro.zip", AVRO},
		{".AVRO.GZ", AVRO},
		{".csv", CSV},
		{"df_1700000000_42.csv.gz", CSV},
		{".json", JSON},
		{".orc", ORC},
		{".parquet", Parquet},
		{".psv", PSV},
		{".raw", Raw},
		{".scsv", SCSV},
		{".sohsv", SOHSV},
		{".tsv", TSV},
		{".txt", TXT},
		{".whatever", DFUnknown},
		{"noextension", DFUnknown},
		{".w3clogfile", W3CLogFile},
	}

	for _, test := range tests {
		test := test // capture
		t.Run(test.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.want, DataFormatDiscovery(test.input))
		})
	}
}

func TestCompressionDiscovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  CompressionType
	}{
		{"https://somehost.somedomain.com:8080/v1/somestuff/file.gz", GZIP},
		{"https://somehost.somedomain.com:8080/v1/somestuff/file.zip", ZIP},
		{"/path/to/a/file.gz", GZIP},
		{"/path/to/a/file.zip", ZIP},
		{"/path/to/a/file", CTNone},
	}

	for _, test := range tests {
		test := test // capture
		t.Run(test.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.want, CompressionDiscovery(test.input))
		})
	}
}

func TestDataFormatJSON(t *testing.T) {
	t.Parallel()

	for f := AVRO; f <= SingleJSON; f++ {
		b, err := json.Marshal(f)
		require.NoError(t, err)

		var got DataFormat
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, f, got, "format %s", f.CamelCase())

		camel, err := json.Marshal(f.CamelCase())
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(camel, &got))
		assert.Equal(t, f, got, "format %s", f.CamelCase())
	}

	_, err := json.Marshal(DFUnknown)
	assert.Error(t, err)

	var bad DataFormat
	assert.Error(t, json.Unmarshal([]byte(`"notaformat"`), &bad))
}

func TestIsBinary(t *testing.T) {
	t.Parallel()

	assert.True(t, Parquet.IsBinary())
	assert.True(t, AVRO.IsBinary())
	assert.True(t, ORC.IsBinary())
	assert.False(t, CSV.IsBinary())
	assert.False(t, DFUnknown.IsBinary())
	assert.Equal(t, CSV, DFUnknown.KnownOrDefault())
	assert.Equal(t, JSON, JSON.KnownOrDefault())
}
