package azkustoingest

import (
	"encoding/json"
	"net/url"
	"path"

	"github.com/Azure/azure-kusto-ingest-go/azkustoingest/internal/properties"
	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/Azure/azure-kusto-ingest-go/ingestoptions"
)

// ReportLevel tells the service which ingestion outcomes to report.
type ReportLevel = properties.ReportLevel

const (
	// FailuresOnly reports only failed ingestions. This is the default.
	FailuresOnly = properties.FailuresOnly
	// ReportNone reports nothing.
	ReportNone = properties.None
	// FailureAndSuccess reports every outcome.
	FailureAndSuccess = properties.FailureAndSuccess
)

// ReportMethod tells the service where to report ingestion outcomes.
type ReportMethod = properties.ReportMethod

const (
	// ReportStatusToQueue reports to the status queues. This is the default.
	ReportStatusToQueue = properties.ReportStatusToQueue
	// ReportStatusToTable reports to the status table.
	ReportStatusToTable = properties.ReportStatusToTable
	// ReportStatusToQueueAndTable reports to both.
	ReportStatusToQueueAndTable = properties.ReportStatusToQueueAndTable
)

// IngestionProperties says where data goes and how the service should read it.
// Database and Table are required, everything else is passed through to the service.
type IngestionProperties struct {
	Database string
	Table    string

	// Format is the format of the data. When unset, it is discovered from each file or blob name and
	// falls back to CSV.
	Format ingestoptions.DataFormat
	// IngestionMapping is an inline JSON mapping of the data to the table's columns.
	IngestionMapping string
	// IngestionMappingRef is the name of a mapping already created on the table.
	IngestionMappingRef string
	// IngestionMappingType is the kind of mapping. When a mapping is given it defaults to the format of
	// each file or blob, CSV when that is unknown.
	IngestionMappingType ingestoptions.DataFormat
	// ValidationPolicy is a JSON document telling the service what to do with invalid data.
	ValidationPolicy string
	Tags             []string
	// IngestIfNotExists skips the ingestion if the table has extents tagged ingest-by with this value.
	IngestIfNotExists string
	IgnoreFirstRecord bool
	FlushImmediately  bool
	IgnoreSizeLimit   bool
	// DeleteBlobOnSuccess lets the service delete the blob once it was ingested.
	DeleteBlobOnSuccess bool
	ReportLevel         ReportLevel
	ReportMethod        ReportMethod
	// Additional holds extra properties the client does not model. They never override the ones above.
	Additional map[string]string
}

// Validate reports malformed properties as KInvalidInput.
func (p IngestionProperties) Validate() error {
	const op = errors.OpUnknown

	switch {
	case p.Database == "":
		return errors.ES(op, errors.KInvalidInput, "IngestionProperties.Database must be set").SetNoRetry()
	case p.Table == "":
		return errors.ES(op, errors.KInvalidInput, "IngestionProperties.Table must be set").SetNoRetry()
	case p.IngestionMapping != "" && p.IngestionMappingRef != "":
		return errors.ES(op, errors.KInvalidInput, "IngestionMapping and IngestionMappingRef cannot both be set").SetNoRetry()
	case p.IngestionMapping != "" && !json.Valid([]byte(p.IngestionMapping)):
		return errors.ES(op, errors.KInvalidInput, "IngestionMapping must be a valid JSON document").SetNoRetry()
	case p.ValidationPolicy != "" && !json.Valid([]byte(p.ValidationPolicy)):
		return errors.ES(op, errors.KInvalidInput, "ValidationPolicy must be a valid JSON document").SetNoRetry()
	}

	if p.IngestionMapping != "" || p.IngestionMappingRef != "" {
		kind := p.mappingType(p.Format)
		if !kind.IsValidMappingKind() {
			return errors.ES(op, errors.KInvalidInput, "%q is not a valid mapping kind, set IngestionMappingType", kind.CamelCase()).SetNoRetry()
		}
	}
	return nil
}

// mappingType is the mapping kind sent with data in format. It follows the format, CSV when that is unset,
// the same default the descriptor uses.
func (p IngestionProperties) mappingType(format ingestoptions.DataFormat) ingestoptions.DataFormat {
	if p.IngestionMappingType != ingestoptions.DFUnknown {
		return p.IngestionMappingType
	}
	return format.KnownOrDefault()
}

// ingestion builds the descriptor for one staged blob. format is the format of that blob.
func (p IngestionProperties) ingestion(blob BlobDescriptor, format ingestoptions.DataFormat, authContext string) properties.Ingestion {
	ing := properties.Ingestion{
		BlobPath:             blob.URL,
		RawDataSize:          blob.Size,
		DatabaseName:         p.Database,
		TableName:            p.Table,
		RetainBlobOnSuccess:  !p.DeleteBlobOnSuccess,
		FlushImmediately:     p.FlushImmediately,
		IgnoreSizeLimit:      p.IgnoreSizeLimit,
		ReportLevel:          p.ReportLevel,
		ReportMethod:         p.ReportMethod,
		AuthorizationContext: authContext,
		Additional: properties.Additional{
			Format:              format.KnownOrDefault(),
			IngestionMapping:    p.IngestionMapping,
			IngestionMappingRef: p.IngestionMappingRef,
			ValidationPolicy:    p.ValidationPolicy,
			IgnoreFirstRecord:   p.IgnoreFirstRecord,
			Tags:                p.Tags,
			IngestIfNotExists:   p.IngestIfNotExists,
			Extra:               p.Additional,
		},
	}
	if p.IngestionMapping != "" || p.IngestionMappingRef != "" {
		ing.Additional.IngestionMappingType = p.mappingType(format)
	}
	return ing
}

// blobFormat is the format of a blob: the one given, else the one its name shows.
func (p IngestionProperties) blobFormat(blobURL string) ingestoptions.DataFormat {
	if p.Format != ingestoptions.DFUnknown {
		return p.Format
	}
	u, err := url.Parse(blobURL)
	if err != nil {
		return ingestoptions.DFUnknown
	}
	return ingestoptions.DataFormatDiscovery(path.Base(u.Path))
}
