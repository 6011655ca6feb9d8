package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"deliverydesk/internal/api"
	"deliverydesk/internal/config"
	"deliverydesk/internal/logging"
	"deliverydesk/internal/pipeline"
	"deliverydesk/internal/storage"
	"deliverydesk/internal/util"
	"deliverydesk/internal/valuation"
)

func main() {
	cfg, err := config.Load()
	must(err)
	log := logging.New(cfg)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	svc := pipeline.NewService(db, cfg, log)

	cmd := os.Args[1]
	switch cmd {
	case "serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		addr := fs.String("addr", cfg.HTTPAddr, "listen address")
		_ = fs.Parse(os.Args[2:])
		server := api.NewServer(svc, db, log)
		log.Info().Str("addr", *addr).Msg("http server starting")
		must(http.ListenAndServe(*addr, server.Router()))
	case "ingest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "delivery file (xlsx, csv or html)")
		deliveryID := fs.String("delivery", "", "existing delivery id, empty creates one")
		supplierID := fs.String("supplier", "", "supplier id")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" || strings.TrimSpace(*supplierID) == "" {
			must(fmt.Errorf("--file and --supplier are required"))
		}
		content, err := os.ReadFile(*file)
		must(err)
		contentType := mime.TypeByExtension(filepath.Ext(*file))
		summary, err := svc.IngestFile(content, filepath.Base(*file), contentType, *deliveryID, *supplierID)
		must(err)
		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(out))
	case "finalize":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		deliveryID := fs.String("delivery", "", "delivery id")
		supplierID := fs.String("supplier", "", "supplier id")
		vatRate := fs.String("vat", "", "vat rate percent, empty uses 23")
		valuePct := fs.String("percentage", "", "value percentage")
		currency := fs.String("currency", cfg.DefaultCurrency, "PLN|EUR")
		exchangeRate := fs.String("rate", "", "exchange rate to PLN, empty uses 1")
		priceType := fs.String("priceType", "", "net|gross, empty uses net")
		lotNumber := fs.String("lot", "", "lot number override")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*deliveryID) == "" || strings.TrimSpace(*supplierID) == "" {
			must(fmt.Errorf("--delivery and --supplier are required"))
		}
		if strings.TrimSpace(*valuePct) == "" {
			*valuePct = cfg.DefaultValuePercentage
		}
		req := pipeline.FinalizeRequest{
			DeliveryID: *deliveryID,
			SupplierID: *supplierID,
			Settings: valuation.Settings{
				VATRate:         util.ParseDecimalOr(*vatRate, decimal.Zero),
				ValuePercentage: util.ParseDecimalOr(*valuePct, decimal.Zero),
				ExchangeRate:    util.ParseDecimalOr(*exchangeRate, decimal.Zero),
				PriceType:       *priceType,
				Currency:        *currency,
			},
		}
		if strings.TrimSpace(*lotNumber) != "" {
			req.LotNumber = lotNumber
		}
		delivery, err := svc.Finalize(req)
		must(err)
		fmt.Printf("delivery %s saved status=%s delivery_value=%s\n", delivery.ID, delivery.Status, delivery.DeliveryValue.String())
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		deliveryID := fs.String("delivery", "", "delivery id")
		supplierID := fs.String("supplier", "", "supplier id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*deliveryID) == "" || strings.TrimSpace(*supplierID) == "" || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--delivery, --supplier and --out are required"))
		}
		must(svc.ExportDeliveryXLSX(*deliveryID, *supplierID, *out))
		fmt.Printf("exported delivery %s to %s\n", *deliveryID, *out)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: deliverydesk <command>")
	fmt.Println("commands:")
	fmt.Println("  serve [--addr=:8080]")
	fmt.Println("  ingest --file=./delivery.xlsx --supplier=SUP001 [--delivery=DEL000001]")
	fmt.Println("  finalize --delivery=DEL000001 --supplier=SUP001 [--vat=23] [--percentage=50] [--currency=PLN] [--rate=1] [--priceType=net] [--lot=LOT123456]")
	fmt.Println("  export:xlsx --delivery=DEL000001 --supplier=SUP001 --out=./out/review.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
