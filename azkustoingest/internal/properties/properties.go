// Package properties provides the ingestion descriptor: the message that is serialized and placed on an ingestion
// queue for every staged blob. Its JSON field names are the contract with the service that reads the queue.
package properties

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-kusto-ingest-go/ingestoptions"
	"github.com/google/uuid"
)

// ReportLevel tells the service which ingestion outcomes to report.
type ReportLevel int

const (
	// FailuresOnly reports only failed ingestions.
	FailuresOnly ReportLevel = 0
	// None reports nothing.
	None ReportLevel = 1
	// FailureAndSuccess reports all outcomes.
	FailureAndSuccess ReportLevel = 2
)

// ReportMethod tells the service where to report ingestion outcomes.
type ReportMethod int

const (
	// ReportStatusToQueue reports to the failed/succeeded ingestion queues.
	ReportStatusToQueue ReportMethod = 0
	// ReportStatusToTable reports to the ingestion status table.
	ReportStatusToTable ReportMethod = 1
	// ReportStatusToQueueAndTable reports to both.
	ReportStatusToQueueAndTable ReportMethod = 2
)

// Ingestion is a JSON serializable ingestion command that must be provided to the service.
type Ingestion struct {
	// ID is the unique UUID for this message.
	ID uuid.UUID `json:"Id"`
	// BlobPath is the URI representing the blob, including its SAS query string.
	BlobPath string
	// RawDataSize is the size of the blob as it was written to storage.
	RawDataSize int64
	// DatabaseName is the name of the Kusto database the data will ingest into.
	DatabaseName string
	// TableName is the name of the Kusto table the data will ingest into.
	TableName string
	// RetainBlobOnSuccess indicates if the source blob should be retained or deleted after ingestion.
	RetainBlobOnSuccess bool
	// FlushImmediately tells the service to skip aggregation and ingest the blob on its own.
	FlushImmediately bool
	// IgnoreSizeLimit overrides the service side size limit used when batching.
	IgnoreSizeLimit bool
	ReportLevel     ReportLevel  `json:",omitempty"`
	ReportMethod    ReportMethod `json:",omitempty"`
	// SourceMessageCreationTime is when the message was created.
	SourceMessageCreationTime time.Time `json:",omitempty"`
	// AuthorizationContext is the token proving the client may ingest, as handed out by the resource authority.
	AuthorizationContext string
	Additional           Additional `json:"AdditionalProperties"`
}

// Additional is the set of format, mapping and tagging options passed through to the service.
type Additional struct {
	// AuthContext mirrors Ingestion.AuthorizationContext. The service reads it from here.
	AuthContext string `json:"authorizationContext,omitempty"`
	// IngestionMapping is a json string that maps the data being imported to the table's columns.
	IngestionMapping string `json:"ingestionMapping,omitempty"`
	// IngestionMappingRef is the name of a mapping that has been created on the table.
	IngestionMappingRef string `json:"ingestionMappingReference,omitempty"`
	// IngestionMappingType is what the mapping is encoded in: csv, json, avro, ...
	IngestionMappingType ingestoptions.DataFormat `json:"ingestionMappingType,omitempty"`
	// ValidationPolicy is a JSON encoded string that tells the service what to do with invalid data.
	ValidationPolicy string                   `json:"validationPolicy,omitempty"`
	Format           ingestoptions.DataFormat `json:"format,omitempty"`
	// IgnoreFirstRecord skips a header row.
	IgnoreFirstRecord bool `json:"ignoreFirstRecord,omitempty"`
	// Tags is a list of tags to associated with the ingested data.
	Tags []string `json:"tags,omitempty"`
	// IngestIfNotExists prevents ingestion if the table already has extents tagged ingest-by with this value.
	IngestIfNotExists string `json:"ingestIfNotExists,omitempty"`
	// Extra holds pass-through keys the client does not model. Known keys always win.
	Extra map[string]string `json:"-"`
}

const (
	keyMappingType = "ingestionMappingType"
	keyTags        = "tags"
)

// MarshalJSON implements json.Marshaller.
func (a Additional) MarshalJSON() ([]byte, error) {
	// DataFormat and IngestionMappingType are two different enumerators on the service side and they are matched
	// as exact strings, "csv" for one and "Csv" for the other. Tags travel as a JSON encoded string.
	type additional2 Additional

	// omitempty does not apply to our DataFormat types, so zero them before the generic pass.
	plain := a
	plain.IngestionMappingType = ingestoptions.DFUnknown
	plain.Format = ingestoptions.DFUnknown
	plain.Tags = nil

	b, err := json.Marshal(additional2(plain))
	if err != nil {
		return nil, err
	}

	m := map[string]interface{}{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}

	for k, v := range a.Extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}

	if a.Format != ingestoptions.DFUnknown {
		m["format"] = a.Format.String()
	}
	if a.IngestionMappingType != ingestoptions.DFUnknown {
		m[keyMappingType] = a.IngestionMappingType.CamelCase()
	}
	if len(a.Tags) > 0 {
		tags, err := json.Marshal(a.Tags)
		if err != nil {
			return nil, err
		}
		m[keyTags] = string(tags)
	}

	return json.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler. It reverses MarshalJSON, keys that are not modeled land in Extra.
func (a *Additional) UnmarshalJSON(b []byte) error {
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}

	out := Additional{}
	for k, raw := range m {
		var err error
		switch k {
		case "authorizationContext":
			err = json.Unmarshal(raw, &out.AuthContext)
		case "ingestionMapping":
			err = json.Unmarshal(raw, &out.IngestionMapping)
		case "ingestionMappingReference":
			err = json.Unmarshal(raw, &out.IngestionMappingRef)
		case keyMappingType:
			err = json.Unmarshal(raw, &out.IngestionMappingType)
		case "validationPolicy":
			err = json.Unmarshal(raw, &out.ValidationPolicy)
		case "format":
			err = json.Unmarshal(raw, &out.Format)
		case "ignoreFirstRecord":
			err = json.Unmarshal(raw, &out.IgnoreFirstRecord)
		case "ingestIfNotExists":
			err = json.Unmarshal(raw, &out.IngestIfNotExists)
		case keyTags:
			var s string
			if err = json.Unmarshal(raw, &s); err == nil {
				err = json.Unmarshal([]byte(s), &out.Tags)
			}
		default:
			var s string
			if err = json.Unmarshal(raw, &s); err != nil {
				// Non string values are kept in their JSON form.
				s, err = string(raw), nil
			}
			if out.Extra == nil {
				out.Extra = map[string]string{}
			}
			out.Extra[k] = s
		}
		if err != nil {
			return fmt.Errorf("AdditionalProperties.%s: %w", k, err)
		}
	}
	*a = out
	return nil
}

// MarshalJSONString will marshal Ingestion into a base64 encoded string of its UTF-8 JSON form.
func (i Ingestion) MarshalJSONString() (base64String string, err error) {
	i = i.defaults()
	if err := i.validate(); err != nil {
		return "", err
	}

	j, err := json.Marshal(i)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(j), nil
}

// UnmarshalJSONString decodes a message produced by MarshalJSONString.
func UnmarshalJSONString(s string) (Ingestion, error) {
	j, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Ingestion{}, fmt.Errorf("message is not base64: %w", err)
	}
	var i Ingestion
	if err := json.Unmarshal(j, &i); err != nil {
		return Ingestion{}, fmt.Errorf("message is not an ingestion descriptor: %w", err)
	}
	return i, nil
}

// defaults sets default values that can be auto-generated if not set. This is used inside our MarshalJSONString().
func (i Ingestion) defaults() Ingestion {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}

	if i.SourceMessageCreationTime.IsZero() {
		i.SourceMessageCreationTime = time.Now().UTC()
	}

	if i.Additional.AuthContext == "" {
		i.Additional.AuthContext = i.AuthorizationContext
	}
	if i.AuthorizationContext == "" {
		i.AuthorizationContext = i.Additional.AuthContext
	}

	return i
}

func (i Ingestion) validate() error {
	if i.ID == uuid.Nil {
		return fmt.Errorf("the ID cannot be an zero value UUID")
	}
	switch "" {
	case i.DatabaseName:
		return fmt.Errorf("the database name cannot be an empty string")
	case i.TableName:
		return fmt.Errorf("the table name cannot be an empty string")
	case i.AuthorizationContext:
		return fmt.Errorf("the authorization context was an empty string, which is not allowed")
	case i.BlobPath:
		return fmt.Errorf("the BlobPath was not set")
	}
	if i.RawDataSize < 0 {
		return fmt.Errorf("the RawDataSize cannot be negative(%d)", i.RawDataSize)
	}
	return nil
}
