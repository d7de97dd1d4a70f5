package harvest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExportCSV(t *testing.T) {
	dataset := map[string]Record{
		"20": {
			Name:               `He said "hi"` + "\nand left",
			ReleaseDate:        "1 Jan, 2020",
			Price:              4.99,
			Windows:            true,
			Developers:         []string{"Bar", "Baz"},
			SupportedLanguages: []string{"English", "French"},
		},
		"3": {
			Name:        "First",
			ReleaseDate: "2 Feb, 2021",
		},
	}

	var buf bytes.Buffer
	err := ExportCSV(dataset, &buf, nil)
	if err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, rows, 3)
	require.Equal(t, csvHeader, rows[0])

	// ascending numeric order, not lexical
	require.Equal(t, "3", rows[1][0])
	require.Equal(t, "20", rows[2][0])

	// quotes and newlines are scrubbed out of cells
	require.Equal(t, "He said hi and left", rows[2][1])
	require.Equal(t, "4.99", rows[2][4])
	require.Equal(t, "true", rows[2][14])
	require.Equal(t, "false", rows[2][15])
	require.Equal(t, "Bar,Baz", rows[2][22])
	require.Equal(t, "English,French", rows[2][7])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestExportCSVSurfacesWriteError(t *testing.T) {
	dataset := map[string]Record{"1": {Name: "A"}}
	err := ExportCSV(dataset, failingWriter{}, nil)
	require.Error(t, err)
}

type countingTracker struct {
	n int64
}

func (c *countingTracker) Increment(delta int64) {
	c.n += delta
}

func TestExportCSVTracksProgress(t *testing.T) {
	dataset := map[string]Record{
		"1": {Name: "A"},
		"2": {Name: "B"},
	}

	var buf bytes.Buffer
	tracker := &countingTracker{}
	err := ExportCSV(dataset, &buf, tracker)
	if err != nil {
		t.Fatal(err)
	}
	require.EqualValues(t, 2, tracker.n)
}
