// Package ingest implements stages A-C of the pipeline: reading and
// validating a feed file, normalizing and rate-filtering records, and
// accumulating valid records into the append-only raw table.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ukcatalog/core/internal/core"
)

// feedFile mirrors the wire format in the external interfaces section:
// a metadata envelope plus an ordered products array.
type feedFile struct {
	Metadata map[string]json.RawMessage `json:"metadata"`
	Products []feedProduct              `json:"products"`
}

type feedProduct struct {
	BankName         string   `json:"bankName"`
	Platform         string   `json:"platform"`
	AccountType      string   `json:"accountType"`
	AERRate          *float64 `json:"aerRate"`
	GrossRate        *float64 `json:"grossRate"`
	TermMonths       *int     `json:"termMonths"`
	NoticePeriodDays *int     `json:"noticePeriodDays"`
	MinDeposit       *float64 `json:"minDeposit"`
	MaxDeposit       *float64 `json:"maxDeposit"`
	FSCSProtected    bool     `json:"fscsProtected"`
	SpecialFeatures  *string  `json:"specialFeatures"`
	ScrapedAt        string   `json:"scrapedAt"`
}

// Envelope is the parsed, validated feed header plus its raw product list.
type Envelope struct {
	Source         string
	Method         string
	Products       []feedProduct
	MetadataRaw    map[string]json.RawMessage
}

// ReadEnvelope reads path and validates the required envelope fields. It
// does not validate individual records — that happens per-record in Stage A.
func ReadEnvelope(path string) (*Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewBatchError("ingest", core.EnvelopeInvalid, fmt.Sprintf("cannot read file %s", path), err)
	}

	var ff feedFile
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, core.NewBatchError("ingest", core.EnvelopeInvalid, "malformed JSON envelope", err)
	}

	source := stringMetadata(ff.Metadata, "source")
	method := stringMetadata(ff.Metadata, "method")
	if source == "" || method == "" {
		return nil, core.NewBatchError("ingest", core.EnvelopeInvalid, "envelope missing required source/method", nil)
	}
	if ff.Products == nil {
		return nil, core.NewBatchError("ingest", core.EnvelopeInvalid, "envelope missing products sequence", nil)
	}

	return &Envelope{
		Source:      source,
		Method:      method,
		Products:    ff.Products,
		MetadataRaw: ff.Metadata,
	}, nil
}

func stringMetadata(meta map[string]json.RawMessage, key string) string {
	raw, ok := meta[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
