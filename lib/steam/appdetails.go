package steam

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Reason is the closed set of rejection causes. The zero value means "not
// rejected". A non-game item carries its declared type as the reason.
type Reason string

const (
	ReasonBadResponse Reason = "bad_response"
	ReasonNoSuccess   Reason = "no_success"
	ReasonNoPrice     Reason = "no_price"
	ReasonNoDeveloper Reason = "no_developer"
	ReasonException   Reason = "exception"
)

// Age tolerates the storefront's habit of sending required_age as either a
// bare number or a quoted string (sometimes with a "+" suffix).
type Age int

func (a *Age) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	s = strings.TrimSuffix(s, "+")
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*a = Age(int(n))
	return nil
}

type PriceOverview struct {
	FinalFormatted string `json:"final_formatted"`
}

type Platforms struct {
	Windows bool `json:"windows"`
	Mac     bool `json:"mac"`
	Linux   bool `json:"linux"`
}

type Metacritic struct {
	Score int    `json:"score"`
	URL   string `json:"url"`
}

type Descriptor struct {
	Description string `json:"description"`
}

type Screenshot struct {
	PathFull string `json:"path_full"`
}

type Movie struct {
	Mp4 struct {
		Max string `json:"max"`
	} `json:"mp4"`
}

type Total struct {
	Total int64 `json:"total"`
}

type ReleaseDate struct {
	ComingSoon bool   `json:"coming_soon"`
	Date       string `json:"date"`
}

type SupportInfo struct {
	URL   string `json:"url"`
	Email string `json:"email"`
}

type ContentDescriptors struct {
	Notes string `json:"notes"`
}

type PackageSub struct {
	OptionText               string `json:"option_text"`
	OptionDescription        string `json:"option_description"`
	PriceInCentsWithDiscount int64  `json:"price_in_cents_with_discount"`
}

type PackageGroup struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Subs        []PackageSub `json:"subs"`
}

// AppDetails is the detail payload with every optional key decoded up front.
// Absent slices stay nil, absent nested blocks stay nil pointers; defaults
// are applied once at normalization time instead of scattered presence
// checks.
type AppDetails struct {
	Type                string             `json:"type"`
	Name                string             `json:"name"`
	RequiredAge         Age                `json:"required_age"`
	IsFree              bool               `json:"is_free"`
	DLC                 []int64            `json:"dlc"`
	DetailedDescription string             `json:"detailed_description"`
	AboutTheGame        string             `json:"about_the_game"`
	ShortDescription    string             `json:"short_description"`
	Reviews             string             `json:"reviews"`
	SupportedLanguages  string             `json:"supported_languages"`
	HeaderImage         string             `json:"header_image"`
	Website             string             `json:"website"`
	PriceOverview       *PriceOverview     `json:"price_overview"`
	Developers          []string           `json:"developers"`
	Publishers          []string           `json:"publishers"`
	Platforms           Platforms          `json:"platforms"`
	Metacritic          *Metacritic        `json:"metacritic"`
	Categories          []Descriptor       `json:"categories"`
	Genres              []Descriptor       `json:"genres"`
	Screenshots         []Screenshot       `json:"screenshots"`
	Movies              []Movie            `json:"movies"`
	Recommendations     *Total             `json:"recommendations"`
	Achievements        *Total             `json:"achievements"`
	ReleaseDate         ReleaseDate        `json:"release_date"`
	SupportInfo         SupportInfo        `json:"support_info"`
	ContentDescriptors  ContentDescriptors `json:"content_descriptors"`
	PackageGroups       []PackageGroup     `json:"package_groups"`
}

// DetailResult is the classified outcome of one detail fetch. Data is nil
// when the item was rejected, in which case Reason and (best effort) Name
// say why and what it was called.
type DetailResult struct {
	Data   *AppDetails
	Reason Reason
	Name   string
}

type appEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// AppDetails fetches and classifies one item. The returned error is non-nil
// only for transport-level conditions the caller cannot recover from
// (context cancellation, retry budget exhaustion); everything else comes
// back as a classified DetailResult.
func (c *Client) AppDetails(ctx context.Context, appID string) (DetailResult, error) {
	ctx, span := tracer.Start(ctx, "client:AppDetails")
	defer span.End()
	span.SetAttributes(attribute.String("app_id", appID))

	res, err := c.get(ctx, c.opts.StoreBaseURL+"/api/appdetails", map[string]string{
		"appids": appID,
		"cc":     c.opts.Currency,
		"l":      c.opts.Language,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detail request failed")
		return DetailResult{}, err
	}

	var envelope map[string]appEnvelope
	err = json.Unmarshal(res.Body(), &envelope)
	if err != nil {
		span.SetStatus(codes.Error, "undecodable detail response")
		return DetailResult{Reason: ReasonBadResponse}, nil
	}
	entry, ok := envelope[appID]
	if !ok {
		span.SetStatus(codes.Error, "detail response missing app entry")
		return DetailResult{Reason: ReasonBadResponse}, nil
	}

	return classify(entry), nil
}

// classify applies the rejection rules in order, first match wins. Any
// structural surprise inside the payload is reported as an exception
// instead of propagating.
func classify(entry appEnvelope) DetailResult {
	if !entry.Success {
		return DetailResult{Reason: ReasonNoSuccess}
	}

	var data AppDetails
	err := json.Unmarshal(entry.Data, &data)
	if err != nil {
		return DetailResult{Reason: ReasonException, Name: peekName(entry.Data)}
	}

	if data.Type == "" {
		return DetailResult{Reason: ReasonException, Name: data.Name}
	}
	if data.Type != "game" {
		return DetailResult{Reason: Reason(data.Type), Name: data.Name}
	}
	if !data.IsFree && data.PriceOverview != nil && data.PriceOverview.FinalFormatted == "" {
		return DetailResult{Reason: ReasonNoPrice, Name: data.Name}
	}
	if data.Developers != nil && len(data.Developers) == 0 {
		return DetailResult{Reason: ReasonNoDeveloper, Name: data.Name}
	}
	return DetailResult{Data: &data, Name: data.Name}
}

// peekName pulls the display name out of a payload that failed full
// decoding, so the rejected entry still carries something readable.
func peekName(raw json.RawMessage) string {
	var partial struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(raw, &partial) != nil {
		return ""
	}
	return partial.Name
}
