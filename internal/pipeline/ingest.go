// Package pipeline runs delivery files through mapping, persistence and
// valuation. Ingestion is deliberately forgiving: bad cells degrade to
// defaults with diagnostics, and a failed batch is logged and skipped rather
// than aborting the whole file.
package pipeline

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"deliverydesk/internal"
	"deliverydesk/internal/config"
	"deliverydesk/internal/lot"
	"deliverydesk/internal/mapping"
	"deliverydesk/internal/storage"
	"deliverydesk/internal/tabular"
	"deliverydesk/internal/util"
	"deliverydesk/internal/valuation"
)

var (
	ErrDeliveryNotFound = errors.New("delivery not found")
	ErrNotOwner         = errors.New("delivery belongs to another supplier")
)

type Service struct {
	db       *storage.DB
	cfg      config.Config
	log      zerolog.Logger
	resolver *mapping.Resolver
}

func NewService(db *storage.DB, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{db: db, cfg: cfg, log: log, resolver: mapping.NewResolver()}
}

// IngestFile parses raw file bytes and ingests the rows. The file itself is
// recorded in delivery_files so uploads stay traceable.
func (s *Service) IngestFile(content []byte, fileName, contentType, deliveryID, supplierID string) (internal.IngestSummary, error) {
	table, err := tabular.Parse(content, fileName, contentType)
	if err != nil {
		return internal.IngestSummary{}, err
	}

	summary, err := s.Ingest(table, fileName, deliveryID, supplierID)
	if err != nil {
		return internal.IngestSummary{}, err
	}

	if _, err := s.db.InsertFileRecord(internal.FileRecord{
		DeliveryID:  summary.DeliveryID,
		FileName:    fileName,
		ContentType: contentType,
		FileSize:    int64(len(content)),
		RowCount:    summary.RowsTotal,
		Headers:     table.Headers,
	}); err != nil {
		s.log.Warn().Err(err).Str("delivery", summary.DeliveryID).Msg("file record not saved")
	}

	return summary, nil
}

// Ingest maps and persists the rows of one parsed file. With an empty
// deliveryID a placeholder delivery is created first; otherwise the delivery
// must exist and belong to supplierID.
func (s *Service) Ingest(table tabular.Table, fileName, deliveryID, supplierID string) (internal.IngestSummary, error) {
	delivery, err := s.ensureDelivery(deliveryID, supplierID)
	if err != nil {
		return internal.IngestSummary{}, err
	}

	filenameLot := lot.AnalyzeFilename(fileName)

	summary := internal.IngestSummary{
		DeliveryID: delivery.ID,
		FileName:   fileName,
		RowsTotal:  len(table.Rows),
	}

	products := make([]internal.ProductRecord, 0, len(table.Rows))
	lotValues := make([]string, 0, len(table.Rows))
	for i, row := range table.Rows {
		rowNum := i + 1
		res := s.resolver.Resolve(row)
		for _, diag := range res.Diagnostics {
			summary.Diagnostics = append(summary.Diagnostics, internal.RowDiagnostic{
				RowNum: rowNum,
				Field:  diag.Field,
				Reason: diag.Reason,
			})
		}

		if col, ok := res.MappedFields[mapping.FieldLotNumber]; ok {
			lotValues = append(lotValues, row.Cells[col])
		}

		products = append(products, internal.ProductRecord{
			ID:           uuid.NewString(),
			DeliveryID:   delivery.ID,
			ProductName:  res.ProductName,
			EANCode:      res.EANCode,
			ASINCode:     res.ASINCode,
			Quantity:     res.Quantity,
			Unit:         res.Unit,
			Price:        res.Price,
			Value:        res.Value,
			Currency:     res.Currency,
			LotNumber:    normalizeRowLot(res.LotNumber),
			PalletNumber: res.PalletNumber,
			RowNum:       rowNum,
			OriginalData: row,
			MappedFields: res.MappedFields,
			Additional:   res.Additional,
		})
	}

	for start := 0; start < len(products); start += s.cfg.IngestBatchSize {
		end := start + s.cfg.IngestBatchSize
		if end > len(products) {
			end = len(products)
		}
		batch := products[start:end]
		summary.BatchesTotal++

		if err := s.db.InsertProducts(batch); err != nil {
			s.log.Error().Err(err).
				Str("delivery", delivery.ID).
				Int("batch", summary.BatchesTotal).
				Int("rows", len(batch)).
				Msg("batch insert failed, continuing")
			continue
		}
		summary.BatchesOK++
		summary.RowsSaved += len(batch)
	}

	agg, err := s.db.ProductAggregates(delivery.ID)
	if err != nil {
		return internal.IngestSummary{}, err
	}

	lotNumber := strings.Join(agg.Lots, ",")
	if filenameLot != nil {
		lotNumber = filenameLot.Formatted
	}
	palletNumber := strings.Join(agg.Pallets, ",")
	if err := s.db.UpdateDeliveryAggregates(delivery.ID, agg, lotNumber, palletNumber); err != nil {
		return internal.IngestSummary{}, err
	}

	summary.ItemsCount = agg.ItemsCount
	summary.TotalValue = agg.TotalValue
	summary.Lots = agg.Lots
	summary.Pallets = agg.Pallets

	values := lot.AnalyzeLotValues(lotValues)
	summary.LotAnalysis = internal.LotAnalysis{
		HasLotColumn: lot.AnalyzeFileContent(table.Headers),
		Lots:         values.ValidLots,
		AllEmpty:     values.AllEmpty,
	}
	if filenameLot != nil {
		summary.LotAnalysis.FoundInFilename = internal.StringPtr(filenameLot.Formatted)
		summary.LotAnalysis.OriginalMatch = internal.StringPtr(filenameLot.Original)
	}

	s.log.Info().
		Str("delivery", delivery.ID).
		Str("file", fileName).
		Int("rows_total", summary.RowsTotal).
		Int("rows_saved", summary.RowsSaved).
		Int("batches_ok", summary.BatchesOK).
		Int("batches_total", summary.BatchesTotal).
		Str("total_value", summary.TotalValue.String()).
		Msg("file ingested")

	return summary, nil
}

func (s *Service) ensureDelivery(deliveryID, supplierID string) (*internal.Delivery, error) {
	if deliveryID != "" {
		delivery, err := s.db.GetDelivery(deliveryID)
		if err != nil {
			return nil, err
		}
		if delivery == nil {
			return nil, ErrDeliveryNotFound
		}
		if delivery.SupplierID != supplierID {
			return nil, ErrNotOwner
		}
		return delivery, nil
	}

	id, err := s.db.NextDeliveryID()
	if err != nil {
		return nil, err
	}

	placeholder := internal.Delivery{
		ID:               id,
		SupplierID:       supplierID,
		LotNumber:        internal.PlaceholderValue,
		PalletNumber:     internal.PlaceholderValue,
		DeliveryCategory: internal.PlaceholderValue,
		Status:           internal.StatusNew,
		ProductClass:     internal.PlaceholderValue,
		VATRate:          util.ParseDecimalOr(s.cfg.DefaultVATRate, decimal.NewFromInt(23)),
		ValuePercentage:  util.ParseDecimalOr(s.cfg.DefaultValuePercentage, decimal.NewFromInt(100)),
		Currency:         s.cfg.DefaultCurrency,
		DeliveryDate:     time.Now().Format("2006-01-02"),
	}
	if err := s.db.CreateDelivery(placeholder); err != nil {
		return nil, err
	}
	s.log.Info().Str("delivery", id).Str("supplier", supplierID).Msg("placeholder delivery created")

	return &placeholder, nil
}

// FinalizeRequest carries the supplier's confirmed settings for a delivery.
// Optional fields stay untouched when nil.
type FinalizeRequest struct {
	DeliveryID   string
	SupplierID   string
	Settings     valuation.Settings
	LotNumber    *string
	PalletNumber *string
	DeliveryDate *string
	Category     *string
	ProductClass *string
}

// Finalize recomputes the delivery total from the persisted products, runs the
// valuation with the confirmed settings and moves the delivery to
// pending_verification.
func (s *Service) Finalize(req FinalizeRequest) (*internal.Delivery, error) {
	delivery, err := s.db.GetDelivery(req.DeliveryID)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}
	if delivery.SupplierID != req.SupplierID {
		return nil, ErrNotOwner
	}

	agg, err := s.db.ProductAggregates(req.DeliveryID)
	if err != nil {
		return nil, err
	}

	result := valuation.CalculateDeliveryValueSimple(agg.TotalValue, req.Settings)

	upd := storage.FinalizeUpdate{
		TotalValue:      result.TotalMarketValue,
		TotalValuePLN:   result.TotalMarketValuePLN,
		DeliveryValue:   result.DeliveryValue,
		VATRate:         req.Settings.VATRate,
		ValuePercentage: req.Settings.ValuePercentage,
		Currency:        req.Settings.Currency,
		PalletNumber:    req.PalletNumber,
		DeliveryDate:    req.DeliveryDate,
		Category:        req.Category,
		ProductClass:    req.ProductClass,
		Status:          internal.StatusPendingVerification,
	}
	if req.Settings.VATRate.IsZero() {
		upd.VATRate = decimal.NewFromInt(23)
	}
	if !req.Settings.ExchangeRate.IsZero() {
		upd.ExchangeRate = internal.DecimalPtr(req.Settings.ExchangeRate)
	}
	if req.Settings.PriceType != "" {
		upd.PriceType = internal.StringPtr(req.Settings.PriceType)
	}
	if req.LotNumber != nil {
		upd.LotNumber = lot.FormatLotNumber(*req.LotNumber)
		if upd.LotNumber == nil {
			upd.LotNumber = req.LotNumber
		}
	}

	if err := s.db.UpdateDeliveryFinalize(req.DeliveryID, upd); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("delivery", req.DeliveryID).
		Str("delivery_value", result.DeliveryValue.String()).
		Str("vat_amount", result.VATAmount.String()).
		Msg("delivery finalized")

	return s.db.GetDelivery(req.DeliveryID)
}

// normalizeRowLot upgrades a raw lot cell to its canonical form when one can
// be extracted, otherwise keeps the original text.
func normalizeRowLot(raw *string) *string {
	if raw == nil {
		return nil
	}
	if formatted := lot.FormatLotNumber(*raw); formatted != nil {
		return formatted
	}
	return raw
}
