package steam

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FlexString decodes a value that may arrive as a string or a bare number.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*f = ""
		return nil
	}
	*f = FlexString(strings.Trim(s, `"`))
	return nil
}

// TagVotes decodes SteamSpy's tags field, which is an object of
// tag -> votes when tags exist and an empty array when none do.
type TagVotes map[string]int

func (t *TagVotes) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if !strings.HasPrefix(trimmed, "{") {
		*t = TagVotes{}
		return nil
	}
	var m map[string]int
	err := json.Unmarshal(b, &m)
	if err != nil {
		return err
	}
	*t = m
	return nil
}

// SpyDetails is the flat stats object returned by the enrichment source.
type SpyDetails struct {
	Developer      string     `json:"developer"`
	Owners         string     `json:"owners"`
	CCU            int64      `json:"ccu"`
	UserScore      float64    `json:"userscore"`
	Positive       int64      `json:"positive"`
	Negative       int64      `json:"negative"`
	ScoreRank      FlexString `json:"score_rank"`
	AverageForever int64      `json:"average_forever"`
	Average2Weeks  int64      `json:"average_2weeks"`
	MedianForever  int64      `json:"median_forever"`
	Median2Weeks   int64      `json:"median_2weeks"`
	Discount       FlexString `json:"discount"`
	Tags           TagVotes   `json:"tags"`
}

// Float parses the flex value as a number, 0 when empty or malformed.
func (f FlexString) Float() float64 {
	n, err := strconv.ParseFloat(string(f), 64)
	if err != nil {
		return 0
	}
	return n
}

// SpyDetails looks an item up on the enrichment source. A response without
// a developer means SteamSpy has no data for the item; that and any decode
// problem come back as (nil, nil) so the caller falls back to defaults.
// Only transport-level failures produce an error.
func (c *Client) SpyDetails(ctx context.Context, appID string) (*SpyDetails, error) {
	ctx, span := tracer.Start(ctx, "client:SpyDetails")
	defer span.End()
	span.SetAttributes(attribute.String("app_id", appID))

	res, err := c.get(ctx, c.opts.SpyBaseURL+"/api.php", map[string]string{
		"request": "appdetails",
		"appid":   appID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enrichment request failed")
		return nil, err
	}

	var details SpyDetails
	err = json.Unmarshal(res.Body(), &details)
	if err != nil {
		span.SetStatus(codes.Error, "undecodable enrichment response")
		return nil, nil
	}
	if details.Developer == "" {
		return nil, nil
	}
	return &details, nil
}
