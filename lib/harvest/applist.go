package harvest

import (
	"context"
	"log/slog"
	"strconv"

	"steamharvest/lib/steam"
)

// EnsureUniverse makes sure the state holds the full candidate identifier
// set. A cached universe wins unless refresh is forced; otherwise the
// remote catalog listing is paged through, merged with whatever was cached
// before, de-duplicated and persisted.
func EnsureUniverse(ctx context.Context, client *steam.Client, state *State, apiKey string, force bool) error {
	if len(state.Universe) > 0 && !force {
		slog.Info("using cached app list", "count", len(state.Universe))
		return nil
	}

	slog.Info("requesting app list from the catalog service")
	remote, err := client.AllAppIDs(ctx, apiKey)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(state.Universe))
	for _, id := range state.Universe {
		seen[id] = struct{}{}
	}
	merged := state.Universe
	for _, id := range remote {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	state.Universe = merged

	slog.Info("app list refreshed", "count", len(state.Universe))
	return state.SaveUniverse(true)
}

// FilterCandidates prepares a caller-supplied identifier subset: malformed
// (non-numeric) tokens and ids that already have an outcome or are deferred
// are dropped before the subset reaches the orchestrator.
func FilterCandidates(state *State, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		_, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		if state.Known(id) || state.IsDeferred(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
