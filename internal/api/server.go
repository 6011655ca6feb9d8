// Package api exposes the ingestion pipeline over HTTP. The supplier identity
// always arrives explicitly in the X-Supplier-ID header; there is no session
// state.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"deliverydesk/internal"
	"deliverydesk/internal/pipeline"
	"deliverydesk/internal/storage"
	"deliverydesk/internal/tabular"
	"deliverydesk/internal/util"
	"deliverydesk/internal/valuation"
)

const supplierHeader = "X-Supplier-ID"

const maxUploadBytes = 32 << 20

type Server struct {
	svc *pipeline.Service
	db  *storage.DB
	log zerolog.Logger
}

func NewServer(svc *pipeline.Service, db *storage.DB, log zerolog.Logger) *Server {
	return &Server{svc: svc, db: db, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/process-file", s.handleProcessFile)
		r.Get("/deliveries", s.handleListDeliveries)
		r.Get("/deliveries/{id}", s.handleGetDelivery)
		r.Post("/deliveries/{id}/save", s.handleSaveDelivery)
		r.Get("/deliveries/{id}/products", s.handleListProducts)
		r.Get("/products/{id}", s.handleGetProduct)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleProcessFile(w http.ResponseWriter, r *http.Request) {
	supplierID := r.Header.Get(supplierHeader)
	if supplierID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+supplierHeader+" header")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read uploaded file")
		return
	}

	deliveryID := r.FormValue("delivery_id")
	contentType := header.Header.Get("Content-Type")

	summary, err := s.svc.IngestFile(content, header.Filename, contentType, deliveryID, supplierID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "file processed",
		"summary": summary,
	})
}

type saveDeliveryRequest struct {
	VATRate         string  `json:"vat_rate"`
	ValuePercentage string  `json:"value_percentage"`
	Currency        string  `json:"currency"`
	ExchangeRate    string  `json:"exchange_rate"`
	PriceType       string  `json:"price_type"`
	LotNumber       *string `json:"lot_number"`
	PalletNumber    *string `json:"pallet_number"`
	DeliveryDate    *string `json:"delivery_date"`
	Category        *string `json:"delivery_category"`
	ProductClass    *string `json:"product_class"`
}

func (s *Server) handleSaveDelivery(w http.ResponseWriter, r *http.Request) {
	supplierID := r.Header.Get(supplierHeader)
	if supplierID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+supplierHeader+" header")
		return
	}

	var req saveDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = internal.CurrencyPLN
	}

	settings := valuation.Settings{
		VATRate:         util.ParseDecimalOr(req.VATRate, decimal.Zero),
		ValuePercentage: util.ParseDecimalOr(req.ValuePercentage, decimal.Zero),
		ExchangeRate:    util.ParseDecimalOr(req.ExchangeRate, decimal.Zero),
		PriceType:       req.PriceType,
		Currency:        currency,
	}

	delivery, err := s.svc.Finalize(pipeline.FinalizeRequest{
		DeliveryID:   chi.URLParam(r, "id"),
		SupplierID:   supplierID,
		Settings:     settings,
		LotNumber:    req.LotNumber,
		PalletNumber: req.PalletNumber,
		DeliveryDate: req.DeliveryDate,
		Category:     req.Category,
		ProductClass: req.ProductClass,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "delivery saved",
		"delivery": deliveryView(*delivery),
	})
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	supplierID := r.Header.Get(supplierHeader)
	if supplierID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+supplierHeader+" header")
		return
	}

	deliveries, err := s.db.ListDeliveries(supplierID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	views := make([]map[string]any, 0, len(deliveries))
	for _, d := range deliveries {
		views = append(views, deliveryView(d))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"count":      len(views),
		"deliveries": views,
	})
}

func (s *Server) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	supplierID := r.Header.Get(supplierHeader)
	if supplierID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+supplierHeader+" header")
		return
	}

	delivery, err := s.db.GetDelivery(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if delivery == nil || delivery.SupplierID != supplierID {
		writeError(w, http.StatusNotFound, "delivery not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"delivery": deliveryView(*delivery),
	})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	supplierID := r.Header.Get(supplierHeader)
	if supplierID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+supplierHeader+" header")
		return
	}

	deliveryID := chi.URLParam(r, "id")
	delivery, err := s.db.GetDelivery(deliveryID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if delivery == nil || delivery.SupplierID != supplierID {
		writeError(w, http.StatusNotFound, "delivery not found")
		return
	}

	products, err := s.db.ListProducts(deliveryID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	views := make([]map[string]any, 0, len(products))
	for _, p := range products {
		views = append(views, productView(p))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"count":    len(views),
		"products": views,
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	supplierID := r.Header.Get(supplierHeader)
	if supplierID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+supplierHeader+" header")
		return
	}

	product, err := s.db.GetProduct(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	delivery, err := s.db.GetDelivery(product.DeliveryID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if delivery == nil || delivery.SupplierID != supplierID {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"product": productView(*product),
	})
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var formatErr *tabular.FormatError
	switch {
	case errors.Is(err, pipeline.ErrDeliveryNotFound):
		writeError(w, http.StatusNotFound, "delivery not found")
	case errors.Is(err, pipeline.ErrNotOwner):
		writeError(w, http.StatusForbidden, "delivery belongs to another supplier")
	case errors.As(err, &formatErr):
		writeError(w, http.StatusBadRequest, formatErr.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func deliveryView(d internal.Delivery) map[string]any {
	return map[string]any{
		"id_delivery":       d.ID,
		"id_supplier":       d.SupplierID,
		"lot_number":        d.LotNumber,
		"pallet_number":     d.PalletNumber,
		"delivery_category": d.DeliveryCategory,
		"other_category":    d.OtherCategory,
		"product_class":     d.ProductClass,
		"total_value":       d.TotalValue,
		"total_value_pln":   d.TotalValuePLN,
		"delivery_value":    d.DeliveryValue,
		"status":            d.Status,
		"items_count":       d.ItemsCount,
		"lots_count":        d.LotsCount,
		"pallets_count":     d.PalletsCount,
		"vat_rate":          d.VATRate,
		"value_percentage":  d.ValuePercentage,
		"currency":          d.Currency,
		"exchange_rate":     d.ExchangeRate,
		"price_type":        d.PriceType,
		"delivery_date":     d.DeliveryDate,
		"created_at":        d.CreatedAt,
		"updated_at":        d.UpdatedAt,
	}
}

func productView(p internal.ProductRecord) map[string]any {
	return map[string]any{
		"id_product":      p.ID,
		"id_delivery":     p.DeliveryID,
		"product_name":    p.ProductName,
		"ean_code":        p.EANCode,
		"asin_code":       p.ASINCode,
		"quantity":        p.Quantity,
		"unit":            p.Unit,
		"price":           p.Price,
		"value":           p.Value,
		"currency":        p.Currency,
		"lot_number":      p.LotNumber,
		"pallet_number":   p.PalletNumber,
		"row_num":         p.RowNum,
		"original_data":   p.OriginalData,
		"mapped_fields":   p.MappedFields,
		"additional_data": p.Additional,
		"created_at":      p.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}
