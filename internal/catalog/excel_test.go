package catalog

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExcel_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	want := SampleProducts()
	require.NoError(t, SaveExcel(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseExcel_HeaderOrderAndBlankRows(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Name")
	f.SetCellValue("Sheet1", "B1", "ID")
	f.SetCellValue("Sheet1", "C1", "Price")
	f.SetCellValue("Sheet1", "A2", "Monitor")
	f.SetCellValue("Sheet1", "B2", 12)
	f.SetCellValue("Sheet1", "C2", 199.5)
	f.SetCellValue("Sheet1", "A4", "Keyboard")
	f.SetCellValue("Sheet1", "B4", 13)
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	products, err := Parse(buf.Bytes(), ".xlsx")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(12), products[0].ID)
	assert.Equal(t, "Monitor", products[0].Name)
	assert.Equal(t, 199.5, products[0].Price)
	assert.Equal(t, int64(13), products[1].ID)
	assert.Equal(t, 0.0, products[1].Price)
}

func TestParseExcel_Errors(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "name")
	f.SetCellValue("Sheet1", "A2", "No id column")
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	_, err = Parse(buf.Bytes(), ".xlsx")
	assert.Error(t, err)

	g := excelize.NewFile()
	defer g.Close()
	g.SetCellValue("Sheet1", "A1", "id")
	g.SetCellValue("Sheet1", "B1", "name")
	g.SetCellValue("Sheet1", "A2", "abc")
	g.SetCellValue("Sheet1", "B2", "Bad id")
	buf.Reset()
	_, err = g.WriteTo(&buf)
	require.NoError(t, err)
	_, err = Parse(buf.Bytes(), ".xlsx")
	assert.Error(t, err)

	_, err = Parse([]byte("not a zip"), ".xlsx")
	assert.Error(t, err)
}
