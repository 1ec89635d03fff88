package catalog

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/prodsearch/internal/models"
)

// Columns is the header row of an Excel catalog. Column order in files may differ.
var Columns = []string{"id", "name", "description", "category", "price", "rating"}

// parseExcel reads products from the first sheet. The first row is a header naming the columns;
// id and name are required.
func parseExcel(content []byte) ([]models.Product, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"id", "name"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("sheet %q: missing %q column", sheets[0], required)
		}
	}

	var products []models.Product
	for r, row := range rows[1:] {
		line := r + 2
		cell := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if strings.Join(row, "") == "" {
			continue
		}
		var p models.Product
		if p.ID, err = strconv.ParseInt(cell("id"), 10, 64); err != nil {
			return nil, fmt.Errorf("row %d: invalid id %q", line, cell("id"))
		}
		p.Name = cell("name")
		p.Description = cell("description")
		p.Category = cell("category")
		if p.Price, err = parseFloat(cell("price")); err != nil {
			return nil, fmt.Errorf("row %d: invalid price: %w", line, err)
		}
		if p.Rating, err = parseFloat(cell("rating")); err != nil {
			return nil, fmt.Errorf("row %d: invalid rating: %w", line, err)
		}
		products = append(products, p)
	}
	return products, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// SaveExcel writes products to path as a single-sheet workbook with the Columns header.
func SaveExcel(path string, products []models.Product) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, p := range products {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{p.ID, p.Name, p.Description, p.Category, p.Price, p.Rating}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return fmt.Errorf("write product %d: %w", p.ID, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
