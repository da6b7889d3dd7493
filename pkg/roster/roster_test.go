package roster

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestResolveColumnsPrefersEarliestAlias(t *testing.T) {
	cols := ResolveColumns([]string{"ID", " Full Name ", "E-Mail", "RegId", "Name"})
	assert.Equal(t, 4, cols.Name, "name outranks full name")
	assert.Equal(t, 3, cols.ID, "regid outranks id")
	assert.Equal(t, 2, cols.Email)
}

func TestResolveColumnsMissingFields(t *testing.T) {
	cols := ResolveColumns([]string{"Staff ID", "Department"})
	assert.Equal(t, -1, cols.Name)
	assert.Equal(t, 0, cols.ID)
	assert.Equal(t, -1, cols.Email)
}

func TestParseCSVSkipsBlankRows(t *testing.T) {
	doc := "\ufeffStudent Name,Registration ID,Email\n" +
		"Asha Rao,21BCE001,asha@uni.edu\n" +
		",,\n" +
		"Ben Ode,21BCE002\n"

	res, err := Parse("roster.CSV", strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, Entry{Name: "Asha Rao", ID: "21BCE001", Email: "asha@uni.edu"}, res.Entries[0])
	assert.Equal(t, Entry{Name: "Ben Ode", ID: "21BCE002"}, res.Entries[1])
}

func TestParseRejectsUnknownColumns(t *testing.T) {
	_, err := Parse("roster.csv", strings.NewReader("foo,bar\n1,2\n"))
	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestParseRejectsUnsupportedExtension(t *testing.T) {
	_, err := Parse("roster.txt", strings.NewReader("name\nx\n"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseXLSX(t *testing.T) {
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetSheetRow(sheet, "A1", &[]interface{}{"Staff Name", "Staff ID", "Mail"}))
	require.NoError(t, book.SetSheetRow(sheet, "A2", &[]interface{}{"Dr. Iyer", "F-117", "iyer@uni.edu"}))
	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf))

	res, err := Parse("faculty.xlsx", &buf)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, Entry{Name: "Dr. Iyer", ID: "F-117", Email: "iyer@uni.edu"}, res.Entries[0])
}
