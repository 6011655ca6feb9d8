package lot

import (
	"reflect"
	"testing"
)

func TestAnalyzeFilename(t *testing.T) {
	m := AnalyzeFilename("PLLOT10021410_240506.xlsx")
	if m == nil {
		t.Fatal("no match")
	}
	if m.Formatted != "LOT10021410_240506" {
		t.Fatalf("formatted=%s", m.Formatted)
	}

	m = AnalyzeFilename("dostawa_LOTPL10021410.xlsx")
	if m == nil || m.Formatted != "LOT10021410" {
		t.Fatalf("match=%+v", m)
	}

	if m := AnalyzeFilename("inwentaryzacja_2024.xlsx"); m != nil {
		t.Fatalf("unexpected match: %+v", m)
	}
	if m := AnalyzeFilename(""); m != nil {
		t.Fatalf("unexpected match: %+v", m)
	}
}

func TestAnalyzeFilenameDropsInvalidDate(t *testing.T) {
	m := AnalyzeFilename("LOT10021410_249999.xlsx")
	if m == nil {
		t.Fatal("no match")
	}
	if m.Formatted != "LOT10021410" {
		t.Fatalf("formatted=%s", m.Formatted)
	}
}

func TestFormatLotNumber(t *testing.T) {
	got := FormatLotNumber("LOT 526555585")
	if got == nil || *got != "LOT526555585" {
		t.Fatalf("got=%v", got)
	}

	if got := FormatLotNumber("LOT123"); got != nil {
		t.Fatalf("got=%v", *got)
	}
	if got := FormatLotNumber(""); got != nil {
		t.Fatalf("got=%v", *got)
	}

	got = FormatLotNumber("lot526555585")
	if got == nil || *got != "LOT526555585" {
		t.Fatalf("got=%v", got)
	}
}

func TestFormatLotNumberIdempotent(t *testing.T) {
	first := FormatLotNumber("pl_lot_10021410_240506")
	if first == nil {
		t.Fatal("no match")
	}
	second := FormatLotNumber(*first)
	if second == nil || *second != *first {
		t.Fatalf("first=%s second=%v", *first, second)
	}
}

func TestValidateLotFormat(t *testing.T) {
	valid := []string{"LOT123456", "LOT1234567890", "LOT123456_240506", "lot123456"}
	for _, v := range valid {
		if !ValidateLotFormat(v) {
			t.Fatalf("expected valid: %s", v)
		}
	}

	invalid := []string{"", "LOT12345", "LOT12345678901", "LOT123456_991332", "123456", "LOT 123456"}
	for _, v := range invalid {
		if ValidateLotFormat(v) {
			t.Fatalf("expected invalid: %s", v)
		}
	}
}

func TestAnalyzeFileContent(t *testing.T) {
	if !AnalyzeFileContent([]string{"Nazwa", "Numer partii", "Ilość"}) {
		t.Fatal("expected lot column")
	}
	if !AnalyzeFileContent([]string{"Product", "LOT", "Qty"}) {
		t.Fatal("expected lot column")
	}
	if AnalyzeFileContent([]string{"Product", "Qty", "Price"}) {
		t.Fatal("unexpected lot column")
	}
	if AnalyzeFileContent(nil) {
		t.Fatal("unexpected lot column")
	}
}

func TestAnalyzeLotValues(t *testing.T) {
	res := AnalyzeLotValues([]string{"LOT123456", "nan", "", "garbage"})
	if !res.HasValidLots {
		t.Fatal("expected valid lots")
	}
	if !reflect.DeepEqual(res.ValidLots, []string{"LOT123456"}) {
		t.Fatalf("valid=%v", res.ValidLots)
	}
	if res.AllEmpty {
		t.Fatal("not all empty")
	}

	res = AnalyzeLotValues([]string{"", "NaN", "None"})
	if res.HasValidLots || !res.AllEmpty {
		t.Fatalf("res=%+v", res)
	}
}
