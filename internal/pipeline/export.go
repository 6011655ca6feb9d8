package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"deliverydesk/internal"
)

// ExportDeliveryXLSX writes the persisted products of one delivery to a
// review workbook, one product per row, provenance columns last.
func (s *Service) ExportDeliveryXLSX(deliveryID, supplierID, outputPath string) error {
	delivery, err := s.db.GetDelivery(deliveryID)
	if err != nil {
		return err
	}
	if delivery == nil {
		return ErrDeliveryNotFound
	}
	if delivery.SupplierID != supplierID {
		return ErrNotOwner
	}

	products, err := s.db.ListProducts(deliveryID)
	if err != nil {
		return err
	}

	return ExportProductsToXLSX(products, outputPath)
}

func ExportProductsToXLSX(products []internal.ProductRecord, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"row_num", "product_name", "ean_code", "asin_code",
		"quantity", "unit", "price", "value", "currency",
		"lot_number", "pallet_number",
		"mapped_fields", "additional_data",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, p := range products {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		mappedJSON, _ := json.Marshal(p.MappedFields)
		additionalJSON, _ := json.Marshal(p.Additional)

		set(1, p.RowNum)
		set(2, derefString(p.ProductName))
		set(3, derefString(p.EANCode))
		set(4, derefString(p.ASINCode))
		set(5, p.Quantity.String())
		set(6, derefString(p.Unit))
		set(7, p.Price.String())
		set(8, p.Value.String())
		set(9, derefString(p.Currency))
		set(10, derefString(p.LotNumber))
		set(11, derefString(p.PalletNumber))
		set(12, string(mappedJSON))
		set(13, string(additionalJSON))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
