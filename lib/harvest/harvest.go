package harvest

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"steamharvest/lib/steam"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("lib/harvest")

// Tracker receives one increment per processed identifier. It is satisfied
// by go-pretty progress trackers; a nil tracker disables reporting.
type Tracker interface {
	Increment(delta int64)
}

type Config struct {
	// Sleep is the base pause between requests. Roughly one iteration in
	// ten doubles it so request timing stays non-uniform.
	Sleep time.Duration
	// Autosave is the number of state changes between forced persists,
	// tracked independently per store.
	Autosave int
	// SkipDeferred leaves deferred ids untouched (no network call) instead
	// of retrying them. Disable for a dedicated deferred-retry run.
	SkipDeferred bool
	// Enrich pulls supplementary statistics for every accepted record,
	// substituting zero-valued defaults when the source has nothing.
	Enrich bool
	// Seed fixes the shuffle order; 0 seeds from the clock.
	Seed int64
}

const (
	DefaultSleep    = 1500 * time.Millisecond
	DefaultAutosave = 25
)

// Summary is the final count of outcomes for one run.
type Summary struct {
	Added    int
	Rejected int
	Deferred int
	Skipped  int
}

// Harvester drives the identifier-by-identifier loop against the remote
// service, mutating the shared state and persisting it at autosave
// boundaries. Processing is strictly sequential, one identifier in flight
// at a time; the pauses between requests are a politeness mechanism, not a
// performance problem to solve.
type Harvester struct {
	client  *steam.Client
	state   *State
	cfg     Config
	rng     *rand.Rand
	tracker Tracker

	sinceDatasetSave  int
	sinceRejectedSave int
	sinceDeferredSave int
}

func New(client *steam.Client, state *State, cfg Config) *Harvester {
	if cfg.Sleep <= 0 {
		cfg.Sleep = DefaultSleep
	}
	if cfg.Autosave <= 0 {
		cfg.Autosave = DefaultAutosave
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Harvester{
		client: client,
		state:  state,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (h *Harvester) SetTracker(t Tracker) {
	h.tracker = t
}

// Run processes the candidate identifiers in shuffled order. It returns
// after every candidate has an outcome or the context is cancelled; either
// way all four stores are flushed before returning. The returned error is
// non-nil only when the remote is systemically blocked (retry budget
// exhausted) or a store cannot be persisted.
func (h *Harvester) Run(ctx context.Context, candidates []string) (Summary, error) {
	ctx, span := tracer.Start(ctx, "harvester:Run")
	defer span.End()
	span.SetAttributes(attribute.Int("candidates", len(candidates)))

	shuffled := make([]string, len(candidates))
	copy(shuffled, candidates)
	h.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	var sum Summary
	var runErr error

	for _, id := range shuffled {
		// cancellation is cooperative at iteration boundaries only, so an
		// interrupted run never leaves a half-applied outcome
		if ctx.Err() != nil {
			break
		}

		if h.state.Known(id) {
			sum.Skipped++
			h.track()
			continue
		}
		if h.cfg.SkipDeferred && h.state.IsDeferred(id) {
			sum.Skipped++
			h.track()
			continue
		}

		err := h.processOne(ctx, id, &sum)
		h.track()
		if err != nil {
			runErr = err
			break
		}

		err = h.autosave()
		if err != nil {
			runErr = err
			break
		}

		h.pause(ctx)
	}

	flushErr := h.state.FlushAll(true)
	if runErr == nil {
		runErr = flushErr
	}

	if runErr != nil {
		slog.Warn("scan aborted",
			"err", runErr,
			"added", sum.Added,
			"rejected", sum.Rejected,
			"deferred", sum.Deferred,
			"skipped", sum.Skipped,
		)
	} else {
		slog.Info("scan finished",
			"added", sum.Added,
			"rejected", sum.Rejected,
			"deferred", sum.Deferred,
			"skipped", sum.Skipped,
		)
	}
	return sum, runErr
}

// processOne fetches, classifies and applies exactly one outcome for id.
func (h *Harvester) processOne(ctx context.Context, id string, sum *Summary) error {
	res, err := h.client.AppDetails(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	if res.Data == nil {
		h.state.Reject(id, res.Name, string(res.Reason))
		h.sinceRejectedSave++
		sum.Rejected++
		slog.Warn("game rejected", "app_id", id, "reason", res.Reason)
		return nil
	}

	rec, err := Normalize(res.Data)
	if err != nil {
		h.state.Reject(id, res.Name, string(steam.ReasonException))
		h.sinceRejectedSave++
		sum.Rejected++
		slog.Warn("game failed normalization", "app_id", id, "err", err)
		return nil
	}

	if rec.ReleaseDate == "" {
		h.state.Defer(id)
		h.sinceDeferredSave++
		sum.Deferred++
		slog.Info("game not released yet", "app_id", id, "name", rec.Name)
		return nil
	}

	if h.cfg.Enrich {
		h.enrich(ctx, id, &rec)
	}

	h.state.Accept(id, rec)
	h.sinceDatasetSave++
	sum.Added++
	slog.Info("game added", "app_id", id, "name", rec.Name, "total", len(h.state.Accepted))
	return nil
}

// enrich merges supplementary statistics into the record, falling back to
// the fixed default set on any failure so the enrichment fields are always
// present.
func (h *Harvester) enrich(ctx context.Context, id string, rec *Record) {
	enrichment := DefaultEnrichment()
	spy, err := h.client.SpyDetails(ctx, id)
	if err != nil {
		slog.Warn("enrichment lookup failed, using defaults", "app_id", id, "err", err)
	} else if spy != nil {
		enrichment = EnrichmentFromSpy(spy)
	}
	rec.ApplyEnrichment(enrichment)
}

// autosave persists any store whose change counter crossed the configured
// interval, rotating backups as it goes.
func (h *Harvester) autosave() error {
	if h.sinceDatasetSave >= h.cfg.Autosave {
		err := h.state.SaveDataset(true)
		if err != nil {
			return err
		}
		h.sinceDatasetSave = 0
	}
	if h.sinceRejectedSave >= h.cfg.Autosave {
		err := h.state.SaveRejected(true)
		if err != nil {
			return err
		}
		h.sinceRejectedSave = 0
	}
	if h.sinceDeferredSave >= h.cfg.Autosave {
		err := h.state.SaveDeferred(true)
		if err != nil {
			return err
		}
		h.sinceDeferredSave = 0
	}
	return nil
}

// pause sleeps the base interval, occasionally doubled, and wakes early on
// cancellation.
func (h *Harvester) pause(ctx context.Context) {
	d := h.cfg.Sleep
	if h.rng.Float64() < 0.1 {
		d *= 2
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (h *Harvester) track() {
	if h.tracker != nil {
		h.tracker.Increment(1)
	}
}
