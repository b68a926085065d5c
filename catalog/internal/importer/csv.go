package importer

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/Astemirdum/bookshelf-service/catalog/internal/errs"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/normalize"
)

const bom = "\ufeff"

// ReadFile reads every data row of the CSV file at path. An unreadable or
// malformed file is reported as errs.ErrSourceNotFound.
func ReadFile(path string) ([]normalize.SpreadsheetRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrSourceNotFound, "%s: %v", path, err)
	}
	defer f.Close()

	rows, err := ReadRows(f)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrSourceNotFound, "%s: %v", path, err)
	}
	return rows, nil
}

// ReadRows keys each record by the header row. Blank lines are skipped and
// cells missing from short records are left out of the row.
func ReadRows(r io.Reader) ([]normalize.SpreadsheetRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		header []string
		rows   []normalize.SpreadsheetRow
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "csv read")
		}
		if isEmptyRow(record) {
			continue
		}
		if header == nil {
			header = make([]string, len(record))
			for i, h := range record {
				header[i] = strings.TrimPrefix(h, bom)
			}
			continue
		}
		row := make(normalize.SpreadsheetRow, len(header))
		for i, cell := range record {
			if i >= len(header) {
				break
			}
			row[header[i]] = strings.ToValidUTF8(cell, "\uFFFD")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
