package internal

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

type DeliveryStatus string

const (
	StatusNew                 DeliveryStatus = "new"
	StatusPendingVerification DeliveryStatus = "pending_verification"
	StatusNegotiated          DeliveryStatus = "negotiated"
	StatusSettled             DeliveryStatus = "settled"
)

// PlaceholderValue marks identifying fields of a delivery created before the
// supplier has confirmed anything about it.
const PlaceholderValue = "TEMP"

const (
	CurrencyPLN = "PLN"
	CurrencyEUR = "EUR"
)

const (
	PriceTypeNet   = "net"
	PriceTypeGross = "gross"
)

// RawRow is one row of a submitted file, exactly as parsed: column names in
// source order, cell values untouched. It only lives through ingestion of a
// single file.
type RawRow struct {
	Columns []string
	Cells   map[string]string
}

// MarshalJSON keeps the source column order, which a plain map would lose.
func (r RawRow) MarshalJSON() ([]byte, error) {
	buf := bytes.NewBufferString("{")
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Cells[col])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(":")
		buf.Write(val)
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

func (r *RawRow) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	r.Columns = nil
	r.Cells = map[string]string{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		r.Columns = append(r.Columns, key)
		r.Cells[key] = value
	}
	_, err := dec.Token()
	return err
}

// ProductRecord is one persisted line item of a delivery. OriginalData always
// reproduces the raw row; MappedFields records which source column fed each
// canonical field.
type ProductRecord struct {
	ID           string
	DeliveryID   string
	ProductName  *string
	EANCode      *string
	ASINCode     *string
	Quantity     decimal.Decimal
	Unit         *string
	Price        decimal.Decimal
	Value        decimal.Decimal
	Currency     *string
	LotNumber    *string
	PalletNumber *string
	RowNum       int
	OriginalData RawRow
	MappedFields map[string]string
	Additional   map[string]string
	CreatedAt    string
}

// Delivery is the aggregate a supplier submits and later confirms.
type Delivery struct {
	ID               string
	SupplierID       string
	LotNumber        string
	PalletNumber     string
	DeliveryCategory string
	OtherCategory    *string
	TotalValue       decimal.Decimal
	TotalValuePLN    decimal.Decimal
	DeliveryValue    decimal.Decimal
	Status           DeliveryStatus
	ProductClass     string
	ItemsCount       int
	LotsCount        int
	PalletsCount     int
	VATRate          decimal.Decimal
	ValuePercentage  decimal.Decimal
	Currency         string
	ExchangeRate     *decimal.Decimal
	PriceType        *string
	DeliveryDate     string
	CreatedAt        string
	UpdatedAt        *string
}

// FileRecord keeps metadata about one uploaded file of a delivery.
type FileRecord struct {
	ID          int64
	DeliveryID  string
	FileName    string
	ContentType string
	FileSize    int64
	RowCount    int
	Headers     []string
	CreatedAt   string
}

// LotMatch is a lot identifier found in free text: the substring that matched
// and its normalized LOT<digits>[_<YYMMDD>] form.
type LotMatch struct {
	Original  string
	Formatted string
}

// LotValuesAnalysis classifies the values of a lot column.
type LotValuesAnalysis struct {
	HasValidLots bool
	ValidLots    []string
	AllEmpty     bool
}

// LotAnalysis is the per-file lot summary returned with an ingest.
type LotAnalysis struct {
	FoundInFilename *string  `json:"found_in_filename"`
	OriginalMatch   *string  `json:"original_match"`
	HasLotColumn    bool     `json:"has_lot_column"`
	Lots            []string `json:"lots"`
	AllEmpty        bool     `json:"all_empty"`
}

// IngestSummary reports what one file ingestion did. RowsSaved can be lower
// than RowsTotal when whole batches failed to commit.
type IngestSummary struct {
	DeliveryID   string          `json:"delivery_id"`
	FileName     string          `json:"file_name"`
	RowsTotal    int             `json:"rows_total"`
	RowsSaved    int             `json:"rows_saved"`
	BatchesTotal int             `json:"batches_total"`
	BatchesOK    int             `json:"batches_ok"`
	ItemsCount   int             `json:"items_count"`
	TotalValue   decimal.Decimal `json:"total_value"`
	Lots         []string        `json:"lots"`
	Pallets      []string        `json:"pallets"`
	LotAnalysis  LotAnalysis     `json:"lot_analysis"`
	Diagnostics  []RowDiagnostic `json:"diagnostics,omitempty"`
}

// RowDiagnostic records one non-fatal mapping problem, so callers can assert
// on ingestion quality without parsing log output.
type RowDiagnostic struct {
	RowNum int    `json:"row_num"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func StringPtr(v string) *string { return &v }

func DecimalPtr(v decimal.Decimal) *decimal.Decimal { return &v }
