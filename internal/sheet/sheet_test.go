package sheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/LeventeLantos/result-messaging/internal/results"
)

func workbook(t *testing.T, grid [][]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	name := f.GetSheetName(f.GetActiveSheetIndex())

	for i, row := range grid {
		row := row
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(name, axis, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestParse_CanonicalizesHeadersAndTypes(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Name", "Roll", "Guardian  Phone  No", "student phone", "SMS Result"},
		{"Asha", 101, 1712345678, "01812345678", "hello"},
		{nil, nil, nil, nil, nil},
		{"Babu", 102, nil, "01912345678", "hi"},
	})

	table, err := Parse(buf, Options{RequireResult: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Roll", ColGuardianPhone, ColStudentPhone, results.ColResult}, table.Columns)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, "Asha", first["Name"])
	assert.Equal(t, 101.0, first["Roll"])
	assert.Equal(t, 1712345678.0, first[ColGuardianPhone])
	assert.Equal(t, "01812345678", first[ColStudentPhone])
	assert.Equal(t, "hello", first[results.ColResult])

	assert.Nil(t, table.Rows[1][ColGuardianPhone])
}

func TestParse_RequireResult(t *testing.T) {
	grid := [][]any{
		{"Name", "Roll", "Total"},
		{"Asha", 1, 80},
	}

	_, err := Parse(workbook(t, grid), Options{RequireResult: true})
	require.ErrorIs(t, err, ErrMissingResultColumn)

	table, err := Parse(workbook(t, grid), Options{})
	require.NoError(t, err)
	assert.Equal(t, 80.0, table.Rows[0]["Total"])
}

func TestParse_NotAWorkbook(t *testing.T) {
	_, err := Parse(bytes.NewBufferString("name,roll\n"), Options{})
	require.Error(t, err)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "Guardian Phone No", NormalizeHeader("  Guardian  Phone \t No "))
	assert.Equal(t, "", NormalizeHeader("   "))
}

func TestExport_RoundTrip(t *testing.T) {
	rows := []results.Row{
		{"Name": "Asha", "Total": 80.0, results.ColPosition: 1, results.ColResult: "msg a"},
		{"Name": "Babu", "Total": nil, results.ColPosition: nil, results.ColResult: "msg b"},
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, rows, nil))

	table, err := Parse(&buf, Options{RequireResult: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Total", results.ColPosition, results.ColResult}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 80.0, table.Rows[0]["Total"])
	assert.Equal(t, 1.0, table.Rows[0][results.ColPosition])
	assert.Equal(t, "msg b", table.Rows[1][results.ColResult])
	assert.Nil(t, table.Rows[1]["Total"])
}

func TestExport_ExplicitColumnsGetDerivedAppended(t *testing.T) {
	rows := []results.Row{{"Roll": "7", "Name": "Asha", results.ColResult: "m"}}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, rows, []string{"Roll", "Name"}))

	table, err := Parse(&buf, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Roll", "Name", results.ColResult}, table.Columns)
	assert.Equal(t, "7", table.Rows[0]["Roll"])
}
