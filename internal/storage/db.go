package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"deliverydesk/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS deliveries (
  id_delivery TEXT PRIMARY KEY,
  id_supplier TEXT NOT NULL,
  lot_number TEXT NOT NULL DEFAULT '',
  pallet_number TEXT NOT NULL DEFAULT '',
  delivery_category TEXT NOT NULL DEFAULT '',
  other_category TEXT,
  total_value TEXT NOT NULL DEFAULT '0',
  total_value_pln TEXT NOT NULL DEFAULT '0',
  delivery_value TEXT NOT NULL DEFAULT '0',
  status TEXT NOT NULL DEFAULT 'new',
  product_class TEXT NOT NULL DEFAULT '',
  items_count INTEGER NOT NULL DEFAULT 0,
  lots_count INTEGER NOT NULL DEFAULT 0,
  pallets_count INTEGER NOT NULL DEFAULT 0,
  vat_rate TEXT NOT NULL DEFAULT '23',
  value_percentage TEXT NOT NULL DEFAULT '100',
  currency TEXT NOT NULL DEFAULT 'PLN',
  exchange_rate TEXT,
  price_type TEXT,
  delivery_date TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_deliveries_supplier ON deliveries(id_supplier);
CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries(status);

CREATE TABLE IF NOT EXISTS delivery_products (
  id_product TEXT PRIMARY KEY,
  id_delivery TEXT NOT NULL,
  product_name TEXT,
  ean_code TEXT,
  asin_code TEXT,
  quantity TEXT NOT NULL DEFAULT '1',
  unit TEXT,
  price TEXT NOT NULL DEFAULT '0',
  value TEXT NOT NULL DEFAULT '0',
  currency TEXT,
  lot_number TEXT,
  pallet_number TEXT,
  row_num INTEGER NOT NULL DEFAULT 0,
  original_data TEXT NOT NULL DEFAULT '{}',
  mapped_fields TEXT NOT NULL DEFAULT '{}',
  additional_data TEXT NOT NULL DEFAULT '{}',
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(id_delivery) REFERENCES deliveries(id_delivery) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_products_delivery ON delivery_products(id_delivery);
CREATE INDEX IF NOT EXISTS idx_products_lot ON delivery_products(lot_number);

CREATE TABLE IF NOT EXISTS delivery_files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  id_delivery TEXT NOT NULL,
  file_name TEXT NOT NULL,
  content_type TEXT NOT NULL DEFAULT '',
  file_size INTEGER NOT NULL DEFAULT 0,
  row_count INTEGER NOT NULL DEFAULT 0,
  headers TEXT NOT NULL DEFAULT '[]',
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(id_delivery) REFERENCES deliveries(id_delivery) ON DELETE CASCADE
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// NextDeliveryID produces a sequential DEL000001-style identifier from the
// highest suffix already present.
func (d *DB) NextDeliveryID() (string, error) {
	rows, err := d.conn.Query(`SELECT id_delivery FROM deliveries WHERE id_delivery LIKE 'DEL%'`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	max := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		n, err := strconv.Atoi(strings.TrimPrefix(id, "DEL"))
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	return fmt.Sprintf("DEL%06d", max+1), nil
}

func (d *DB) CreateDelivery(del internal.Delivery) error {
	_, err := d.conn.Exec(`
INSERT INTO deliveries (
  id_delivery, id_supplier, lot_number, pallet_number, delivery_category, other_category,
  total_value, total_value_pln, delivery_value, status, product_class,
  items_count, lots_count, pallets_count,
  vat_rate, value_percentage, currency, exchange_rate, price_type, delivery_date
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		del.ID, del.SupplierID, del.LotNumber, del.PalletNumber, del.DeliveryCategory, del.OtherCategory,
		del.TotalValue.String(), del.TotalValuePLN.String(), del.DeliveryValue.String(), string(del.Status), del.ProductClass,
		del.ItemsCount, del.LotsCount, del.PalletsCount,
		del.VATRate.String(), del.ValuePercentage.String(), del.Currency, decimalPtrString(del.ExchangeRate), del.PriceType, del.DeliveryDate,
	)
	return err
}

const deliveryColumns = `
  id_delivery, id_supplier, lot_number, pallet_number, delivery_category, other_category,
  total_value, total_value_pln, delivery_value, status, product_class,
  items_count, lots_count, pallets_count,
  vat_rate, value_percentage, currency, exchange_rate, price_type, delivery_date,
  created_at, updated_at`

func (d *DB) GetDelivery(id string) (*internal.Delivery, error) {
	row := d.conn.QueryRow(`SELECT`+deliveryColumns+` FROM deliveries WHERE id_delivery = ?`, id)
	del, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return del, nil
}

func (d *DB) ListDeliveries(supplierID string) ([]internal.Delivery, error) {
	rows, err := d.conn.Query(`SELECT`+deliveryColumns+` FROM deliveries WHERE id_supplier = ? ORDER BY created_at DESC`, supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Delivery
	for rows.Next() {
		del, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *del)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*internal.Delivery, error) {
	var (
		del                                    internal.Delivery
		status                                 string
		totalValue, totalValuePLN, deliveryVal string
		vatRate, valuePct                      string
		exchangeRate                           sql.NullString
	)
	err := row.Scan(
		&del.ID, &del.SupplierID, &del.LotNumber, &del.PalletNumber, &del.DeliveryCategory, &del.OtherCategory,
		&totalValue, &totalValuePLN, &deliveryVal, &status, &del.ProductClass,
		&del.ItemsCount, &del.LotsCount, &del.PalletsCount,
		&vatRate, &valuePct, &del.Currency, &exchangeRate, &del.PriceType, &del.DeliveryDate,
		&del.CreatedAt, &del.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	del.Status = internal.DeliveryStatus(status)
	if del.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
		return nil, fmt.Errorf("delivery %s: bad total_value: %w", del.ID, err)
	}
	if del.TotalValuePLN, err = decimal.NewFromString(totalValuePLN); err != nil {
		return nil, fmt.Errorf("delivery %s: bad total_value_pln: %w", del.ID, err)
	}
	if del.DeliveryValue, err = decimal.NewFromString(deliveryVal); err != nil {
		return nil, fmt.Errorf("delivery %s: bad delivery_value: %w", del.ID, err)
	}
	if del.VATRate, err = decimal.NewFromString(vatRate); err != nil {
		return nil, fmt.Errorf("delivery %s: bad vat_rate: %w", del.ID, err)
	}
	if del.ValuePercentage, err = decimal.NewFromString(valuePct); err != nil {
		return nil, fmt.Errorf("delivery %s: bad value_percentage: %w", del.ID, err)
	}
	if exchangeRate.Valid {
		rate, err := decimal.NewFromString(exchangeRate.String)
		if err != nil {
			return nil, fmt.Errorf("delivery %s: bad exchange_rate: %w", del.ID, err)
		}
		del.ExchangeRate = internal.DecimalPtr(rate)
	}

	return &del, nil
}

// InsertProducts writes one batch in a single transaction. Either the whole
// batch lands or none of it does; the caller decides what a failed batch means.
func (d *DB) InsertProducts(products []internal.ProductRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO delivery_products (
  id_product, id_delivery, product_name, ean_code, asin_code,
  quantity, unit, price, value, currency,
  lot_number, pallet_number, row_num,
  original_data, mapped_fields, additional_data
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		originalJSON, err := json.Marshal(p.OriginalData)
		if err != nil {
			return err
		}
		mappedJSON, _ := json.Marshal(p.MappedFields)
		additionalJSON, _ := json.Marshal(p.Additional)
		if _, err := stmt.Exec(
			p.ID, p.DeliveryID, p.ProductName, p.EANCode, p.ASINCode,
			p.Quantity.String(), p.Unit, p.Price.String(), p.Value.String(), p.Currency,
			p.LotNumber, p.PalletNumber, p.RowNum,
			string(originalJSON), string(mappedJSON), string(additionalJSON),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const productColumns = `
  id_product, id_delivery, product_name, ean_code, asin_code,
  quantity, unit, price, value, currency,
  lot_number, pallet_number, row_num,
  original_data, mapped_fields, additional_data, created_at`

func (d *DB) ListProducts(deliveryID string) ([]internal.ProductRecord, error) {
	rows, err := d.conn.Query(`SELECT`+productColumns+` FROM delivery_products WHERE id_delivery = ? ORDER BY row_num ASC`, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ProductRecord
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (d *DB) GetProduct(id string) (*internal.ProductRecord, error) {
	row := d.conn.QueryRow(`SELECT`+productColumns+` FROM delivery_products WHERE id_product = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanProduct(row rowScanner) (*internal.ProductRecord, error) {
	var (
		p                                   internal.ProductRecord
		quantity, price, value              string
		originalJSON, mappedJSON, addedJSON string
	)
	err := row.Scan(
		&p.ID, &p.DeliveryID, &p.ProductName, &p.EANCode, &p.ASINCode,
		&quantity, &p.Unit, &price, &value, &p.Currency,
		&p.LotNumber, &p.PalletNumber, &p.RowNum,
		&originalJSON, &mappedJSON, &addedJSON, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("product %s: bad quantity: %w", p.ID, err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("product %s: bad price: %w", p.ID, err)
	}
	if p.Value, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("product %s: bad value: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(originalJSON), &p.OriginalData); err != nil {
		return nil, fmt.Errorf("product %s: bad original_data: %w", p.ID, err)
	}
	_ = json.Unmarshal([]byte(mappedJSON), &p.MappedFields)
	_ = json.Unmarshal([]byte(addedJSON), &p.Additional)

	return &p, nil
}

// Aggregates summarizes the persisted products of one delivery. Sums are
// computed in Go so decimal arithmetic stays exact.
type Aggregates struct {
	ItemsCount int
	TotalValue decimal.Decimal
	Lots       []string
	Pallets    []string
}

func (d *DB) ProductAggregates(deliveryID string) (Aggregates, error) {
	rows, err := d.conn.Query(`
SELECT value, lot_number, pallet_number
FROM delivery_products WHERE id_delivery = ?
`, deliveryID)
	if err != nil {
		return Aggregates{}, err
	}
	defer rows.Close()

	agg := Aggregates{TotalValue: decimal.Zero}
	seenLots := map[string]struct{}{}
	seenPallets := map[string]struct{}{}
	for rows.Next() {
		var (
			value       string
			lot, pallet sql.NullString
		)
		if err := rows.Scan(&value, &lot, &pallet); err != nil {
			return Aggregates{}, err
		}
		agg.ItemsCount++
		v, err := decimal.NewFromString(value)
		if err != nil {
			return Aggregates{}, fmt.Errorf("delivery %s: bad product value: %w", deliveryID, err)
		}
		agg.TotalValue = agg.TotalValue.Add(v)
		if lot.Valid && lot.String != "" {
			if _, ok := seenLots[lot.String]; !ok {
				seenLots[lot.String] = struct{}{}
				agg.Lots = append(agg.Lots, lot.String)
			}
		}
		if pallet.Valid && pallet.String != "" {
			if _, ok := seenPallets[pallet.String]; !ok {
				seenPallets[pallet.String] = struct{}{}
				agg.Pallets = append(agg.Pallets, pallet.String)
			}
		}
	}
	return agg, rows.Err()
}

func (d *DB) UpdateDeliveryAggregates(id string, agg Aggregates, lotNumber, palletNumber string) error {
	_, err := d.conn.Exec(`
UPDATE deliveries SET
  items_count = ?,
  lots_count = ?,
  pallets_count = ?,
  total_value = ?,
  lot_number = ?,
  pallet_number = ?,
  updated_at = CURRENT_TIMESTAMP
WHERE id_delivery = ?
`, agg.ItemsCount, len(agg.Lots), len(agg.Pallets), agg.TotalValue.String(), lotNumber, palletNumber, id)
	return err
}

// FinalizeUpdate carries the valuation outcome plus the confirmed settings
// written back when a supplier saves a delivery.
type FinalizeUpdate struct {
	TotalValue      decimal.Decimal
	TotalValuePLN   decimal.Decimal
	DeliveryValue   decimal.Decimal
	VATRate         decimal.Decimal
	ValuePercentage decimal.Decimal
	Currency        string
	ExchangeRate    *decimal.Decimal
	PriceType       *string
	LotNumber       *string
	PalletNumber    *string
	DeliveryDate    *string
	Category        *string
	ProductClass    *string
	Status          internal.DeliveryStatus
}

func (d *DB) UpdateDeliveryFinalize(id string, upd FinalizeUpdate) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
UPDATE deliveries SET
  total_value = ?,
  total_value_pln = ?,
  delivery_value = ?,
  vat_rate = ?,
  value_percentage = ?,
  currency = ?,
  exchange_rate = ?,
  price_type = ?,
  status = ?,
  updated_at = CURRENT_TIMESTAMP
WHERE id_delivery = ?
`,
		upd.TotalValue.String(), upd.TotalValuePLN.String(), upd.DeliveryValue.String(),
		upd.VATRate.String(), upd.ValuePercentage.String(), upd.Currency,
		decimalPtrString(upd.ExchangeRate), upd.PriceType, string(upd.Status), id,
	)
	if err != nil {
		return err
	}

	optional := []struct {
		column string
		value  *string
	}{
		{"lot_number", upd.LotNumber},
		{"pallet_number", upd.PalletNumber},
		{"delivery_date", upd.DeliveryDate},
		{"delivery_category", upd.Category},
		{"product_class", upd.ProductClass},
	}
	for _, opt := range optional {
		if opt.value == nil {
			continue
		}
		if _, err := tx.Exec(`UPDATE deliveries SET `+opt.column+` = ? WHERE id_delivery = ?`, *opt.value, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) InsertFileRecord(f internal.FileRecord) (int64, error) {
	headersJSON, _ := json.Marshal(f.Headers)
	result, err := d.conn.Exec(`
INSERT INTO delivery_files (id_delivery, file_name, content_type, file_size, row_count, headers)
VALUES (?, ?, ?, ?, ?, ?)
`, f.DeliveryID, f.FileName, f.ContentType, f.FileSize, f.RowCount, string(headersJSON))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *DB) ListFileRecords(deliveryID string) ([]internal.FileRecord, error) {
	rows, err := d.conn.Query(`
SELECT id, id_delivery, file_name, content_type, file_size, row_count, headers, created_at
FROM delivery_files WHERE id_delivery = ? ORDER BY id ASC
`, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.FileRecord
	for rows.Next() {
		var (
			f           internal.FileRecord
			headersJSON string
		)
		if err := rows.Scan(&f.ID, &f.DeliveryID, &f.FileName, &f.ContentType, &f.FileSize, &f.RowCount, &headersJSON, &f.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(headersJSON), &f.Headers)
		out = append(out, f)
	}
	return out, rows.Err()
}

func decimalPtrString(v *decimal.Decimal) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}
