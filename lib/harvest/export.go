package harvest

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"
)

var csvHeader = []string{
	"AppID",
	"Name",
	"Release date",
	"Required age",
	"Price",
	"DLC count",
	"About the game",
	"Supported languages",
	"Full audio languages",
	"Reviews",
	"Header image",
	"Website",
	"Support url",
	"Support email",
	"Windows",
	"Mac",
	"Linux",
	"Metacritic score",
	"Metacritic url",
	"Achievements",
	"Recommendations",
	"Notes",
	"Developers",
	"Publishers",
	"Categories",
	"Genres",
	"Screenshots",
	"Movies",
}

var cellCleaner = strings.NewReplacer(`"`, "", "\n", " ", "\r", " ")

func cell(v string) string {
	return strings.TrimSpace(cellCleaner.Replace(v))
}

func cellList(values []string) string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		cleaned = append(cleaned, cell(v))
	}
	return strings.Join(cleaned, ",")
}

// ExportCSV writes the accepted dataset as a flat table, one row per
// identifier in ascending numeric order. Nested package data has no
// tabular shape and is left out, matching the dataset's published CSV
// form.
func ExportCSV(dataset map[string]Record, w io.Writer, tracker Tracker) error {
	ids := make([]string, 0, len(dataset))
	for id := range dataset {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, aerr := strconv.ParseInt(ids[i], 10, 64)
		b, berr := strconv.ParseInt(ids[j], 10, 64)
		if aerr != nil || berr != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})

	out := csv.NewWriter(w)
	err := out.Write(csvHeader)
	if err != nil {
		return err
	}

	for _, id := range ids {
		rec := dataset[id]
		row := []string{
			id,
			cell(rec.Name),
			cell(rec.ReleaseDate),
			strconv.Itoa(rec.RequiredAge),
			strconv.FormatFloat(rec.Price, 'f', -1, 64),
			strconv.Itoa(rec.DLCCount),
			cell(rec.AboutTheGame),
			cellList(rec.SupportedLanguages),
			cellList(rec.FullAudioLanguages),
			cell(rec.Reviews),
			cell(rec.HeaderImage),
			cell(rec.Website),
			cell(rec.SupportURL),
			cell(rec.SupportEmail),
			strconv.FormatBool(rec.Windows),
			strconv.FormatBool(rec.Mac),
			strconv.FormatBool(rec.Linux),
			strconv.Itoa(rec.MetacriticScore),
			cell(rec.MetacriticURL),
			strconv.FormatInt(rec.Achievements, 10),
			strconv.FormatInt(rec.Recommendations, 10),
			cell(rec.Notes),
			cellList(rec.Developers),
			cellList(rec.Publishers),
			cellList(rec.Categories),
			cellList(rec.Genres),
			cellList(rec.Screenshots),
			cellList(rec.Movies),
		}
		err = out.Write(row)
		if err != nil {
			return err
		}
		if tracker != nil {
			tracker.Increment(1)
		}
	}

	out.Flush()
	return out.Error()
}
