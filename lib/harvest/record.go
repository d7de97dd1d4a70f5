package harvest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"steamharvest/lib/steam"
	"steamharvest/lib/textutil"
)

// PackageSub is one purchase option inside a package.
type PackageSub struct {
	Text        string  `json:"text"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

type Package struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Subs        []PackageSub `json:"subs"`
}

// Record is the canonical normalized shape persisted in the dataset, one
// per accepted identifier. Enrichment fields are always present once
// enrichment is enabled, real or defaulted.
type Record struct {
	Name                   string         `json:"name"`
	ReleaseDate            string         `json:"release_date"`
	EstimatedOwners        string         `json:"estimated_owners"`
	PeakCCU                int64          `json:"peak_ccu"`
	RequiredAge            int            `json:"required_age"`
	Price                  float64        `json:"price"`
	DLCCount               int            `json:"dlc_count"`
	DetailedDescription    string         `json:"detailed_description"`
	AboutTheGame           string         `json:"about_the_game"`
	ShortDescription       string         `json:"short_description"`
	Reviews                string         `json:"reviews"`
	HeaderImage            string         `json:"header_image"`
	Website                string         `json:"website"`
	SupportURL             string         `json:"support_url"`
	SupportEmail           string         `json:"support_email"`
	Windows                bool           `json:"windows"`
	Mac                    bool           `json:"mac"`
	Linux                  bool           `json:"linux"`
	MetacriticScore        int            `json:"metacritic_score"`
	MetacriticURL          string         `json:"metacritic_url"`
	UserScore              float64        `json:"user_score"`
	Positive               int64          `json:"positive"`
	Negative               int64          `json:"negative"`
	ScoreRank              string         `json:"score_rank"`
	Achievements           int64          `json:"achievements"`
	Recommendations        int64          `json:"recommendations"`
	Notes                  string         `json:"notes"`
	AveragePlaytimeForever int64          `json:"average_playtime_forever"`
	AveragePlaytime2Weeks  int64          `json:"average_playtime_2weeks"`
	MedianPlaytimeForever  int64          `json:"median_playtime_forever"`
	MedianPlaytime2Weeks   int64          `json:"median_playtime_2weeks"`
	Discount               float64        `json:"discount"`
	Packages               []Package      `json:"packages"`
	Developers             []string       `json:"developers"`
	Publishers             []string       `json:"publishers"`
	Categories             []string       `json:"categories"`
	Genres                 []string       `json:"genres"`
	Screenshots            []string       `json:"screenshots"`
	Movies                 []string       `json:"movies"`
	SupportedLanguages     []string       `json:"supported_languages"`
	FullAudioLanguages     []string       `json:"full_audio_languages"`
	Tags                   map[string]int `json:"tags"`
}

// Normalize maps a usable detail payload into the canonical record shape.
// Every optional key has an explicit default; the only way a payload fails
// here is an advertised price that carries no parseable amount.
func Normalize(data *steam.AppDetails) (Record, error) {
	price, err := normalizePrice(data)
	if err != nil {
		return Record{}, err
	}

	releaseDate := ""
	if !data.ReleaseDate.ComingSoon {
		releaseDate = data.ReleaseDate.Date
	}

	supported, fullAudio := ParseSupportedLanguages(data.SupportedLanguages)

	rec := Record{
		Name:                strings.TrimSpace(data.Name),
		ReleaseDate:         releaseDate,
		RequiredAge:         int(data.RequiredAge),
		Price:               price,
		DLCCount:            len(data.DLC),
		DetailedDescription: textutil.Sanitize(data.DetailedDescription),
		AboutTheGame:        textutil.Sanitize(data.AboutTheGame),
		ShortDescription:    textutil.Sanitize(data.ShortDescription),
		Reviews:             textutil.Sanitize(data.Reviews),
		HeaderImage:         strings.TrimSpace(data.HeaderImage),
		Website:             strings.TrimSpace(data.Website),
		SupportURL:          strings.TrimSpace(data.SupportInfo.URL),
		SupportEmail:        strings.TrimSpace(data.SupportInfo.Email),
		Windows:             data.Platforms.Windows,
		Mac:                 data.Platforms.Mac,
		Linux:               data.Platforms.Linux,
		Notes:               textutil.Sanitize(data.ContentDescriptors.Notes),
		Packages:            normalizePackages(data.PackageGroups),
		Developers:          trimAll(data.Developers),
		Publishers:          trimAll(data.Publishers),
		Categories:          descriptions(data.Categories),
		Genres:              descriptions(data.Genres),
		Screenshots:         screenshotURLs(data.Screenshots),
		Movies:              movieURLs(data.Movies),
		SupportedLanguages:  supported,
		FullAudioLanguages:  fullAudio,
	}

	if data.Metacritic != nil {
		rec.MetacriticScore = data.Metacritic.Score
		rec.MetacriticURL = data.Metacritic.URL
	}
	if data.Achievements != nil {
		rec.Achievements = data.Achievements.Total
	}
	if data.Recommendations != nil {
		rec.Recommendations = data.Recommendations.Total
	}

	return rec, nil
}

// Enrichment carries the supplementary statistics merged into a record from
// the secondary source.
type Enrichment struct {
	EstimatedOwners        string
	PeakCCU                int64
	UserScore              float64
	Positive               int64
	Negative               int64
	ScoreRank              string
	AveragePlaytimeForever int64
	AveragePlaytime2Weeks  int64
	MedianPlaytimeForever  int64
	MedianPlaytime2Weeks   int64
	Discount               float64
	Tags                   map[string]int
}

// DefaultEnrichment is the fixed zero/empty set substituted when the
// secondary source has nothing for an item.
func DefaultEnrichment() Enrichment {
	return Enrichment{
		EstimatedOwners: "0 - 0",
		Tags:            map[string]int{},
	}
}

// EnrichmentFromSpy converts the raw SteamSpy stats.
func EnrichmentFromSpy(spy *steam.SpyDetails) Enrichment {
	return Enrichment{
		EstimatedOwners:        strings.ReplaceAll(spy.Owners, ",", ""),
		PeakCCU:                spy.CCU,
		UserScore:              spy.UserScore,
		Positive:               spy.Positive,
		Negative:               spy.Negative,
		ScoreRank:              string(spy.ScoreRank),
		AveragePlaytimeForever: spy.AverageForever,
		AveragePlaytime2Weeks:  spy.Average2Weeks,
		MedianPlaytimeForever:  spy.MedianForever,
		MedianPlaytime2Weeks:   spy.Median2Weeks,
		Discount:               spy.Discount.Float(),
		Tags:                   spy.Tags,
	}
}

func (r *Record) ApplyEnrichment(e Enrichment) {
	r.EstimatedOwners = e.EstimatedOwners
	r.PeakCCU = e.PeakCCU
	r.UserScore = e.UserScore
	r.Positive = e.Positive
	r.Negative = e.Negative
	r.ScoreRank = e.ScoreRank
	r.AveragePlaytimeForever = e.AveragePlaytimeForever
	r.AveragePlaytime2Weeks = e.AveragePlaytime2Weeks
	r.MedianPlaytimeForever = e.MedianPlaytimeForever
	r.MedianPlaytime2Weeks = e.MedianPlaytime2Weeks
	r.Discount = e.Discount
	r.Tags = e.Tags
	if r.Tags == nil {
		r.Tags = map[string]int{}
	}
}

var priceToken = regexp.MustCompile(`[0-9]+(?:[.,][0-9]+)?`)

// ParsePrice extracts the first numeric token from a formatted price
// string, accepting either "," or "." as the decimal separator, and rounds
// to two decimals.
func ParsePrice(formatted string) (float64, error) {
	token := priceToken.FindString(formatted)
	if token == "" {
		return 0, fmt.Errorf("no numeric token in price %q", formatted)
	}
	token = strings.ReplaceAll(token, ",", ".")
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", formatted, err)
	}
	return round2(value), nil
}

func normalizePrice(data *steam.AppDetails) (float64, error) {
	if data.IsFree || data.PriceOverview == nil {
		return 0, nil
	}
	return ParsePrice(data.PriceOverview.FinalFormatted)
}

// fullAudioMarker is the boilerplate the storefront appends to the
// supported-languages blob.
const fullAudioMarker = "languages with full audio support"

// ParseSupportedLanguages splits the raw supported-languages markup into
// plain language names. Tokens marked with an asterisk also land in the
// full-audio list, asterisk removed.
func ParseSupportedLanguages(raw string) ([]string, []string) {
	if raw == "" {
		return []string{}, []string{}
	}

	cleaned := strings.ReplaceAll(raw, fullAudioMarker, "")
	cleaned = textutil.StripTags(cleaned)

	var supported, fullAudio []string
	for _, token := range strings.Split(cleaned, ", ") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if strings.Contains(token, "*") {
			token = strings.ReplaceAll(token, "*", "")
			if token == "" {
				continue
			}
			fullAudio = append(fullAudio, token)
		}
		supported = append(supported, token)
	}
	if supported == nil {
		supported = []string{}
	}
	if fullAudio == nil {
		fullAudio = []string{}
	}
	return supported, fullAudio
}

func normalizePackages(groups []steam.PackageGroup) []Package {
	packages := make([]Package, 0, len(groups))
	for _, group := range groups {
		pkg := Package{
			Title:       textutil.Sanitize(group.Title),
			Description: textutil.Sanitize(group.Description),
			Subs:        make([]PackageSub, 0, len(group.Subs)),
		}
		for _, sub := range group.Subs {
			pkg.Subs = append(pkg.Subs, PackageSub{
				Text:        textutil.Sanitize(sub.OptionText),
				Description: textutil.Sanitize(sub.OptionDescription),
				Price:       round2(float64(sub.PriceInCentsWithDiscount) / 100),
			})
		}
		packages = append(packages, pkg)
	}
	return packages
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

func descriptions(values []steam.Descriptor) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.Description)
	}
	return out
}

func screenshotURLs(values []steam.Screenshot) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.PathFull)
	}
	return out
}

func movieURLs(values []steam.Movie) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.Mp4.Max)
	}
	return out
}
