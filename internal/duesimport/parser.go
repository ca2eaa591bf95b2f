// Package duesimport turns a dues spreadsheet into per-cell transitions.
package duesimport

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/money"
	"github.com/extrame/xls"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	colMemberID   = "Member ID"
	colMemberName = "Member Name"
)

// MonthColumns are the month headers, January first.
var MonthColumns = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var truthyTokens = map[string]struct{}{
	"paid": {},
	"y":    {},
	"yes":  {},
	"true": {},
	"1":    {},
}

// Cell is the desired state of one month. Amount is set only when the sheet
// carried a positive number other than a truthy token.
type Cell struct {
	Month  int
	Paid   bool
	Amount *decimal.Decimal
}

// Row is one member line of the sheet.
type Row struct {
	MemberID   int64
	MemberName string
	Months     [12]Cell
}

// ParseFile opens path and parses it by extension.
func ParseFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Failed to parse Excel: file could not be opened")
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse reads the first sheet of an .xlsx or .xls workbook.
func Parse(r io.ReadSeeker, filename string) ([]Row, error) {
	var (
		grid [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		grid, err = readXLSX(r)
	case ".xls":
		grid, err = readXLS(r)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Only .xlsx and .xls files are allowed")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Failed to parse Excel: "+err.Error())
	}
	return parseGrid(grid)
}

func readXLSX(r io.Reader) ([][]string, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return book.GetRows(sheets[0], excelize.Options{RawCellValue: true})
}

func readXLS(r io.ReadSeeker) ([][]string, error) {
	book, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, err
	}
	if book.NumSheets() == 0 {
		return nil, nil
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	grid := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

func parseGrid(grid [][]string) ([]Row, error) {
	if len(grid) == 0 || blank(grid[0]) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Excel file has no header")
	}

	index := make(map[string]int, len(grid[0]))
	for i, name := range grid[0] {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	required := append([]string{colMemberID, colMemberName}, MonthColumns[:]...)
	var missing []string
	for _, col := range required {
		if _, ok := index[strings.ToLower(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Missing required columns: "+strings.Join(missing, ", "))
	}

	value := func(cells []string, col string) string {
		i := index[strings.ToLower(col)]
		if i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}

	rows := make([]Row, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		if blank(cells) {
			continue
		}

		id, ok := parseMemberID(value(cells, colMemberID))
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid Member ID type in Excel")
		}
		name := value(cells, colMemberName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid Member Name type in Excel")
		}

		row := Row{MemberID: id, MemberName: name}
		for i, col := range MonthColumns {
			cell, err := parseCell(i+1, value(cells, col))
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err,
					fmt.Sprintf("Invalid amount for member %d in %s: %s", id, col, err))
			}
			row.Months[i] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseMemberID(raw string) (int64, bool) {
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsPositive() || !d.IsInteger() {
		return 0, false
	}
	return d.IntPart(), true
}

// parseCell checks truthy tokens before numbers, so "1" means paid at the
// default amount rather than a payment of 1. A positive amount the ledger
// cannot store exactly is an error.
func parseCell(month int, raw string) (Cell, error) {
	cell := Cell{Month: month}
	token := strings.ToLower(raw)
	if _, ok := truthyTokens[token]; ok {
		cell.Paid = true
		return cell, nil
	}
	d, err := decimal.NewFromString(token)
	if err != nil || !d.IsPositive() {
		return cell, nil
	}
	if err := money.Check(d); err != nil {
		return cell, err
	}
	cell.Paid = true
	cell.Amount = &d
	return cell, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
