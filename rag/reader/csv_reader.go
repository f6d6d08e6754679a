package reader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ProfileCSVReader reads candidate profiles from an add_profile CSV export
// with a header row.
type ProfileCSVReader struct {
	// Path is the CSV file to read
	Path string
	// Delimiter is the field delimiter (default: comma)
	Delimiter rune
}

// NewProfileCSVReader creates a new ProfileCSVReader.
func NewProfileCSVReader(path string) *ProfileCSVReader {
	return &ProfileCSVReader{
		Path:      path,
		Delimiter: ',',
	}
}

// LoadProfiles reads every row as a Profile. Rows without an id are skipped.
func (r *ProfileCSVReader) LoadProfiles(ctx context.Context) ([]Profile, error) {
	file, err := os.Open(r.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewReaderError(r.Path, "failed to open file", ErrDocumentNotFound)
		}
		return nil, NewReaderError(r.Path, "failed to open file", err)
	}
	defer file.Close()

	delimiter := r.Delimiter
	if delimiter == ',' && strings.ToLower(filepath.Ext(r.Path)) == ".tsv" {
		delimiter = '\t'
	}

	cr := csv.NewReader(file)
	cr.Comma = delimiter
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	headers, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, NewReaderError(r.Path, "failed to parse CSV header", err)
	}
	for i, h := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
	}

	var profiles []Profile
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, NewReaderError(r.Path, fmt.Sprintf("failed to parse CSV line %d", line), err)
		}

		fields := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				fields[h] = record[i]
			}
		}
		p := ProfileFromFields(fields)
		if p.ID == "" {
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

var _ ProfileReader = (*ProfileCSVReader)(nil)
