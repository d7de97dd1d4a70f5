package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const appListPageSize = 10000

// AppListPage is one page of the catalog listing plus the cursor needed to
// ask for the next one.
type AppListPage struct {
	AppIDs    []string
	LastAppID int64
	HaveMore  bool
}

type appListResponse struct {
	Response struct {
		Apps []struct {
			AppID int64 `json:"appid"`
		} `json:"apps"`
		HaveMoreResults bool  `json:"have_more_results"`
		LastAppID       int64 `json:"last_appid"`
	} `json:"response"`
}

// AppListPage fetches a single catalog page starting after lastAppID.
func (c *Client) AppListPage(ctx context.Context, key string, lastAppID int64) (AppListPage, error) {
	ctx, span := tracer.Start(ctx, "client:AppListPage")
	defer span.End()
	span.SetAttributes(attribute.Int64("last_appid", lastAppID))

	res, err := c.get(ctx, c.opts.APIBaseURL+"/IStoreService/GetAppList/v1/", map[string]string{
		"key":           key,
		"include_games": "true",
		"last_appid":    strconv.FormatInt(lastAppID, 10),
		"max_results":   strconv.Itoa(appListPageSize),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "app list request failed")
		return AppListPage{}, err
	}

	var decoded appListResponse
	err = json.Unmarshal(res.Body(), &decoded)
	if err != nil {
		span.SetStatus(codes.Error, "undecodable app list response")
		return AppListPage{}, fmt.Errorf("decode app list page: %w", err)
	}

	page := AppListPage{
		LastAppID: decoded.Response.LastAppID,
		HaveMore:  decoded.Response.HaveMoreResults,
	}
	for _, app := range decoded.Response.Apps {
		page.AppIDs = append(page.AppIDs, strconv.FormatInt(app.AppID, 10))
	}
	return page, nil
}

// AllAppIDs pages through the whole catalog listing, following the
// last-appid cursor until the service reports no more results.
func (c *Client) AllAppIDs(ctx context.Context, key string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "client:AllAppIDs")
	defer span.End()

	var all []string
	var cursor int64
	for {
		page, err := c.AppListPage(ctx, key, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.AppIDs...)
		slog.Info("fetched app list page", "page_size", len(page.AppIDs), "total", len(all))
		if !page.HaveMore {
			break
		}
		// a degenerate response that reports more results without moving
		// the cursor would page forever
		if page.LastAppID <= cursor {
			return nil, fmt.Errorf("app list cursor did not advance past %d", cursor)
		}
		cursor = page.LastAppID
	}

	span.SetAttributes(attribute.Int("app_count", len(all)))
	return all, nil
}
