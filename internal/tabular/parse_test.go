package tabular

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Nazwa", "Ilość", "Cena"},
		{"Kabel HDMI", 3, "10,50"},
		{"", "", ""},
		{"Mysz", 1, "25"},
	})

	table, err := Parse(blob, "dostawa.xlsx", "")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(table.Headers, []string{"Nazwa", "Ilość", "Cena"}) {
		t.Fatalf("headers=%v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows=%d", len(table.Rows))
	}
	if table.Rows[0].Cells["Cena"] != "10,50" {
		t.Fatalf("cell=%q", table.Rows[0].Cells["Cena"])
	}
}

func TestParseXLSXShortRowsPadded(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Nazwa", "Ilość", "Cena"},
		{"Kabel"},
	})

	table, err := Parse(blob, "d.xlsx", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("rows=%d", len(table.Rows))
	}
	if table.Rows[0].Cells["Cena"] != "" {
		t.Fatalf("cell=%q", table.Rows[0].Cells["Cena"])
	}
}

func TestParseCSVSemicolon(t *testing.T) {
	blob := []byte("Nazwa;Ilość;Cena\nKabel;2;10,50\nMysz;1;25\n")

	table, err := Parse(blob, "dostawa.csv", "text/csv")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(table.Headers, []string{"Nazwa", "Ilość", "Cena"}) {
		t.Fatalf("headers=%v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows=%d", len(table.Rows))
	}
	if table.Rows[0].Cells["Cena"] != "10,50" {
		t.Fatalf("cell=%q", table.Rows[0].Cells["Cena"])
	}
}

func TestParseCSVComma(t *testing.T) {
	blob := []byte("name,qty,price\ncable,2,10.50\n")

	table, err := Parse(blob, "delivery.csv", "")
	if err != nil {
		t.Fatal(err)
	}
	if table.Rows[0].Cells["price"] != "10.50" {
		t.Fatalf("cell=%q", table.Rows[0].Cells["price"])
	}
}

func TestParseDuplicateHeaders(t *testing.T) {
	blob := []byte("EAN,EAN,EAN\n1,2,3\n")

	table, err := Parse(blob, "d.csv", "")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(table.Headers, []string{"EAN", "EAN.1", "EAN.2"}) {
		t.Fatalf("headers=%v", table.Headers)
	}
	if table.Rows[0].Cells["EAN.1"] != "2" {
		t.Fatalf("cell=%q", table.Rows[0].Cells["EAN.1"])
	}
}

func TestParseDuplicateHeaderLiteralCollision(t *testing.T) {
	blob := []byte("A,A.1,A\n1,2,3\n")

	table, err := Parse(blob, "d.csv", "")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(table.Headers, []string{"A", "A.1", "A.2"}) {
		t.Fatalf("headers=%v", table.Headers)
	}
	if table.Rows[0].Cells["A.1"] != "2" || table.Rows[0].Cells["A.2"] != "3" {
		t.Fatalf("cells=%v", table.Rows[0].Cells)
	}
}

func TestParseHTMLTable(t *testing.T) {
	blob := []byte(`<html><body><table>
<tr><th>Nazwa</th><th>Ilość</th></tr>
<tr><td>Kabel</td><td>2</td></tr>
<tr><td>Mysz</td><td>1</td></tr>
</table></body></html>`)

	table, err := Parse(blob, "dostawa.html", "text/html")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(table.Headers, []string{"Nazwa", "Ilość"}) {
		t.Fatalf("headers=%v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows=%d", len(table.Rows))
	}
	if table.Rows[1].Cells["Nazwa"] != "Mysz" {
		t.Fatalf("cell=%q", table.Rows[1].Cells["Nazwa"])
	}
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte("%PDF-1.4"), "dostawa.pdf", "application/pdf")
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("err=%v", err)
	}
}
