package steam

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllAppIDsFollowsCursor(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/IStoreService/GetAppList/v1/" {
			http.NotFound(w, r)
			return
		}
		require.Equal(t, "secret", r.URL.Query().Get("key"))

		switch r.URL.Query().Get("last_appid") {
		case "0":
			fmt.Fprint(w, `{"response": {
				"apps": [{"appid": 10}, {"appid": 20}],
				"have_more_results": true,
				"last_appid": 20
			}}`)
		case "20":
			fmt.Fprint(w, `{"response": {
				"apps": [{"appid": 30}],
				"have_more_results": false
			}}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("last_appid"))
			http.Error(w, "bad cursor", http.StatusBadRequest)
		}
	})
	client, _ := testClient(t, handler)

	ids, err := client.AllAppIDs(context.Background(), "secret")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, []string{"10", "20", "30"}, ids)
}

func TestAllAppIDsStuckCursor(t *testing.T) {
	var hits int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		// claims more results but never moves the cursor
		fmt.Fprint(w, `{"response": {
			"apps": [{"appid": 20}],
			"have_more_results": true,
			"last_appid": 20
		}}`)
	})
	client, _ := testClient(t, handler)

	_, err := client.AllAppIDs(context.Background(), "secret")
	require.ErrorContains(t, err, "did not advance")
	require.Equal(t, 2, hits)
}

func TestAppListPageDecodeFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	})
	client, _ := testClient(t, handler)

	_, err := client.AppListPage(context.Background(), "secret", 0)
	require.Error(t, err)
}
