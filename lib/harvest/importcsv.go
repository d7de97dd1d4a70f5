package harvest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadIDsFromCSV extracts candidate identifiers from a delimited text file.
// The first column of each row must be a numeric identifier; header rows
// and malformed lines are simply skipped.
func ReadIDsFromCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var ids []string
	for _, row := range records {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(row[0])
		_, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
