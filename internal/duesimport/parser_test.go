package duesimport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fullHeader = []any{"Member ID", "Member Name", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)
	for i, row := range rows {
		row := row
		require.NoError(t, book.SetSheetRow(sheet, fmt.Sprintf("A%d", i+1), &row))
	}
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func monthsRow(id any, name string, cells ...any) []any {
	row := []any{id, name}
	row = append(row, cells...)
	for len(row) < len(fullHeader) {
		row = append(row, "")
	}
	return row
}

func TestParseReadsCellsAndCustomAmounts(t *testing.T) {
	data := workbook(t,
		fullHeader,
		monthsRow(7, "Ayu", "paid", "Y", 15000, 0, "no", "TRUE", 1, " yes ", "", -5, "lunas", "1"),
		monthsRow("8", "Budi"),
	)

	rows, err := Parse(bytes.NewReader(data), "dues.xlsx")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	ayu := rows[0]
	assert.Equal(t, int64(7), ayu.MemberID)
	assert.Equal(t, "Ayu", ayu.MemberName)

	paid := make([]bool, 12)
	for i, c := range ayu.Months {
		assert.Equal(t, i+1, c.Month)
		paid[i] = c.Paid
	}
	assert.Equal(t, []bool{true, true, true, false, false, true, true, true, false, false, false, true}, paid)

	assert.Nil(t, ayu.Months[0].Amount)
	require.NotNil(t, ayu.Months[2].Amount)
	assert.True(t, ayu.Months[2].Amount.Equal(decimal.NewFromInt(15000)))
	assert.Nil(t, ayu.Months[6].Amount, "a bare 1 is a truthy token, not an amount")

	for _, c := range rows[1].Months {
		assert.False(t, c.Paid)
	}
}

func TestParseMatchesHeadersLoosely(t *testing.T) {
	header := []any{" member id ", "MEMBER NAME", "jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec", "Notes"}
	data := workbook(t, header, monthsRow(3, "Citra", "paid"))

	rows, err := Parse(bytes.NewReader(data), "DUES.XLSX")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Months[0].Paid)
}

func TestParseSkipsBlankRows(t *testing.T) {
	data := workbook(t, fullHeader, monthsRow(1, "Ayu"), []any{"", ""}, monthsRow(2, "Budi"))

	rows, err := Parse(bytes.NewReader(data), "dues.xlsx")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestParseRejectsWholeFile(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"no header", workbook(t), "Excel file has no header"},
		{"missing columns", workbook(t, []any{"Member ID", "Member Name", "Jan", "Feb"}), "Missing required columns: Mar, Apr, May, Jun, Jul, Aug, Sep, Oct, Nov, Dec"},
		{"bad member id", workbook(t, fullHeader, monthsRow(1, "Ayu"), monthsRow("abc", "Budi")), "Invalid Member ID type in Excel"},
		{"zero member id", workbook(t, fullHeader, monthsRow(0, "Ayu")), "Invalid Member ID type in Excel"},
		{"blank name", workbook(t, fullHeader, monthsRow(4, "  ")), "Invalid Member Name type in Excel"},
		{"too precise amount", workbook(t, fullHeader, monthsRow(5, "Dewi", "paid", "", "12.345")), "Invalid amount for member 5 in Mar: must have at most 2 decimal places"},
		{"too large amount", workbook(t, fullHeader, monthsRow(6, "Eka", "10000000000000")), "Invalid amount for member 6 in Jan: must have at most 13 integer digits"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(bytes.NewReader(tc.data), "dues.xlsx")
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			assert.Equal(t, tc.want, typed.Message())
		})
	}
}

func TestParseRejectsCorruptAndUnknownFiles(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("not a workbook")), "dues.xlsx")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = Parse(bytes.NewReader([]byte("a,b")), "dues.csv")
	require.Error(t, err)
	assert.Equal(t, "Only .xlsx and .xls files are allowed", pkgerrors.As(err).Message())
}

func TestParseFileOpensFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dues.xlsx")
	require.NoError(t, os.WriteFile(path, workbook(t, fullHeader, monthsRow(5, "Dewi", "paid")), 0o644))

	rows, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.xlsx"))
	require.Error(t, err)
}
