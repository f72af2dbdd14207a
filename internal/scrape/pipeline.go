package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"filmlog/internal/config"
	"filmlog/internal/logging"
	"filmlog/internal/services"
	"filmlog/internal/store"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateUsername rejects names the site could never serve.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return services.Wrap(services.ErrValidation, "pipeline", "validate", fmt.Sprintf("invalid username %q", username), nil)
	}
	return nil
}

// Sink receives what a run produces.
type Sink interface {
	UpdateProfileInfo(ctx context.Context, info store.ProfileInfo) error
	ApplySync(ctx context.Context, batch store.SyncBatch, final bool) error
}

// progress bands per phase; the pipeline never reports 100.
const (
	percentProfile = 5.0
	percentFlush   = 95.0
	percentDone    = 99.0
)

var listingBands = map[Listing][2]float64{
	ListingFilms:     {percentProfile, 45},
	ListingDiary:     {45, 65},
	ListingReviews:   {65, 80},
	ListingWatchlist: {80, 90},
	ListingLists:     {90, percentFlush},
}

// Pipeline walks a profile's listings and flushes the merged records.
type Pipeline struct {
	fetcher          Fetcher
	limiter          *Limiter
	sink             Sink
	logger           *slog.Logger
	maxPages         int
	maxFailureRatio  float64
	maxConsecutive   int
	flushBatchSize   int
	cooldown         time.Duration
	maxRateLimitHits int
	newSyncID        func() string
	now              func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithCooldown overrides the pause applied after a 429 without Retry-After.
func WithCooldown(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.cooldown = d
	}
}

// WithFetcher replaces the HTTP client.
func WithFetcher(f Fetcher) PipelineOption {
	return func(p *Pipeline) {
		p.fetcher = f
	}
}

// NewPipeline builds a pipeline over client and sink.
func NewPipeline(cfg *config.Config, client *Client, sink Sink, logger *slog.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		sink:             sink,
		logger:           logging.NewComponentLogger(logger, "pipeline"),
		maxPages:         cfg.Scraper.MaxPages,
		maxFailureRatio:  cfg.Scraper.MaxParseFailureRatio,
		maxConsecutive:   cfg.Scraper.MaxConsecutiveFailures,
		flushBatchSize:   cfg.Scraper.FlushBatchSize,
		cooldown:         cfg.RateLimitCooldown(),
		maxRateLimitHits: cfg.Scraper.MaxRateLimitHits,
		newSyncID:        uuid.NewString,
		now:              time.Now,
	}
	if client != nil {
		p.fetcher = client
		p.limiter = client.Limiter()
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.limiter == nil {
		p.limiter = NewLimiter(cfg)
	}
	return p
}

// run holds the mutable state of one Pipeline.Run call.
type run struct {
	username      string
	logger        *slog.Logger
	progress      chan<- Progress
	result        Result
	percent       float64
	listingTotals map[Listing]int
	records       int
	collected     *collector
}

func (r *run) pagesTotal() int {
	total := 0
	for _, n := range r.listingTotals {
		total += n
	}
	return total
}

// Run fetches the profile page, walks every listing, and flushes the merged
// records. Page-level failures are counted; the run fails when the share of
// skipped listing pages exceeds the configured ratio. Progress is sent on
// progress (which may be nil) after every page, with a monotonic percent
// that stays below 100.
func (p *Pipeline) Run(ctx context.Context, username string, progress chan<- Progress) (Result, error) {
	started := p.now()
	if err := ValidateUsername(username); err != nil {
		return Result{}, err
	}
	username = store.NormalizeUsername(username)
	ctx = services.WithUsername(ctx, username)
	r := &run{
		username:      username,
		logger:        logging.WithContext(ctx, p.logger),
		progress:      progress,
		listingTotals: make(map[Listing]int),
		collected:     newCollector(),
	}
	r.result.SyncID = p.newSyncID()

	if err := p.fetchProfile(ctx, r); err != nil {
		return r.result, err
	}

	for _, listing := range Listings {
		if err := p.walkListing(ctx, r, listing); err != nil {
			return r.result, err
		}
	}

	res := &r.result
	if res.PagesAttempted > 0 && res.SkipRatio() > p.maxFailureRatio {
		marker := services.ErrNetwork
		if res.ParseFailures > 0 {
			marker = services.ErrParse
		}
		return *res, services.Wrap(marker, "pipeline", "run",
			fmt.Sprintf("%d of %d pages could not be read (limit %.0f%%)", res.PagesSkipped, res.PagesAttempted, p.maxFailureRatio*100), nil)
	}

	if err := p.flush(ctx, r); err != nil {
		return *res, err
	}
	res.Duration = p.now().Sub(started)
	r.logger.Info("profile sync finished",
		logging.String(logging.FieldEventType, "sync_finished"),
		logging.Int("films", res.Films),
		logging.Int("reviews", res.Reviews),
		logging.Int("watchlist", res.Watchlist),
		logging.Int("lists", res.Lists),
		logging.Int("pages_fetched", res.PagesFetched),
		logging.Int("pages_skipped", res.PagesSkipped),
		logging.Duration("duration", res.Duration),
	)
	return *res, nil
}

func (p *Pipeline) fetchProfile(ctx context.Context, r *run) error {
	body, err := p.fetchPage(ctx, r, "/"+r.username+"/")
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return services.Wrap(services.ErrNotFound, "pipeline", "profile", fmt.Sprintf("profile %s does not exist", r.username), nil)
		default:
			return err
		}
	}
	info, err := ParseProfile(body, r.username)
	if err != nil {
		logging.WarnWithContext(r.logger, "profile page unreadable; keeping stored metadata", "profile_parse_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "site markup may have changed"),
		)
	} else if err := p.sink.UpdateProfileInfo(ctx, info); err != nil {
		return services.Wrap(services.ErrPersistence, "pipeline", "profile", "store profile info", err)
	}
	p.report(ctx, r, Progress{Percent: percentProfile, Message: "Fetched profile page"})
	return nil
}

// fetchPage fetches path, pausing the whole site on 429 and trying again
// until the rate-limit budget is spent.
func (p *Pipeline) fetchPage(ctx context.Context, r *run, path string) ([]byte, error) {
	for {
		body, err := p.fetcher.Fetch(ctx, r.username, path)
		if err == nil || !errors.Is(err, services.ErrRateLimited) {
			return body, err
		}
		r.result.RateLimitHits++
		if r.result.RateLimitHits > p.maxRateLimitHits {
			return nil, services.Wrap(services.ErrRateLimited, "pipeline", "fetch",
				fmt.Sprintf("site kept rate limiting after %d cooldowns", p.maxRateLimitHits), err)
		}
		wait := p.cooldown
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.HasRetryAfter {
			wait = statusErr.RetryAfter
		}
		until := p.limiter.Cooldown(wait)
		logging.WarnWithContext(r.logger, "rate limited; pausing requests", "rate_limited",
			logging.String("path", path),
			logging.Duration("cooldown", wait),
			logging.Int("hits", r.result.RateLimitHits),
			logging.String(logging.FieldErrorHint, "lower scraper.requests_per_second if this repeats"),
		)
		p.report(ctx, r, Progress{Message: fmt.Sprintf("Rate limited; resuming at %s", until.Format(time.TimeOnly))})
		if err := p.limiter.WaitCooldown(ctx); err != nil {
			return nil, err
		}
	}
}

// pageOutcome is what walkListing needs from a parsed page.
type pageOutcome struct {
	items    int
	dropped  int
	hasNext  bool
	lastPage int
}

func (p *Pipeline) parseInto(r *run, listing Listing, body []byte) (pageOutcome, error) {
	switch listing {
	case ListingFilms:
		page, err := ParseFilmsPage(body)
		if err != nil {
			return pageOutcome{}, err
		}
		for _, e := range page.Items {
			r.collected.addFilm(e)
		}
		return pageOutcome{len(page.Items), page.Dropped, page.HasNext, page.LastPage}, nil
	case ListingDiary:
		page, err := ParseDiaryPage(body)
		if err != nil {
			return pageOutcome{}, err
		}
		for _, e := range page.Items {
			r.collected.addDiary(e)
		}
		return pageOutcome{len(page.Items), page.Dropped, page.HasNext, page.LastPage}, nil
	case ListingReviews:
		page, err := ParseReviewsPage(body)
		if err != nil {
			return pageOutcome{}, err
		}
		for _, e := range page.Items {
			r.collected.addReview(e)
		}
		return pageOutcome{len(page.Items), page.Dropped, page.HasNext, page.LastPage}, nil
	case ListingWatchlist:
		page, err := ParseWatchlistPage(body)
		if err != nil {
			return pageOutcome{}, err
		}
		for _, e := range page.Items {
			r.collected.addWatchlist(e)
		}
		return pageOutcome{len(page.Items), page.Dropped, page.HasNext, page.LastPage}, nil
	case ListingLists:
		page, err := ParseListsPage(body)
		if err != nil {
			return pageOutcome{}, err
		}
		for _, e := range page.Items {
			r.collected.addList(e)
		}
		return pageOutcome{len(page.Items), page.Dropped, page.HasNext, page.LastPage}, nil
	}
	return pageOutcome{}, fmt.Errorf("unknown listing %q", listing)
}

// walkListing fetches pages in order until an empty page, a page without a
// next link, or the page ceiling. After a failed page it keeps going while
// the pagination hint promises more pages, or, without a hint, until
// maxConsecutive failures in a row.
func (p *Pipeline) walkListing(ctx context.Context, r *run, listing Listing) error {
	var (
		hint        int
		consecutive int
	)
	logger := r.logger.With(logging.String(logging.FieldListing, string(listing)))
	for page := 1; page <= p.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.result.PagesAttempted++
		r.listingTotals[listing] = max(r.listingTotals[listing], page, hint)

		body, err := p.fetchPage(ctx, r, listing.Path(r.username, page))
		var outcome pageOutcome
		if err == nil {
			outcome, err = p.parseInto(r, listing, body)
			if err != nil {
				r.result.ParseFailures++
			}
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, services.ErrRateLimited) {
				return err
			}
			r.result.PagesSkipped++
			consecutive++
			logging.WarnWithContext(logger, "page skipped", "page_skipped",
				logging.Int(logging.FieldPage, page),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "page will be retried on the next sync"),
			)
			p.reportPage(ctx, r, listing, page, hint, fmt.Sprintf("Skipped %s page %d", listing, page))
			if hint > page || (hint == 0 && consecutive < p.maxConsecutive) {
				continue
			}
			return nil
		}

		consecutive = 0
		r.result.PagesFetched++
		r.records += outcome.items
		hint = max(hint, outcome.lastPage)
		r.listingTotals[listing] = max(r.listingTotals[listing], hint)
		if outcome.dropped > 0 {
			logger.Debug("dropped items without film identity",
				logging.Int(logging.FieldPage, page),
				logging.Int("dropped", outcome.dropped),
			)
		}
		p.reportPage(ctx, r, listing, page, hint, fmt.Sprintf("Fetched %s page %d", listing, page))
		if outcome.items == 0 || !outcome.hasNext {
			return nil
		}
	}
	logger.Info("page ceiling reached", logging.Int("max_pages", p.maxPages))
	return nil
}

func (p *Pipeline) flush(ctx context.Context, r *run) error {
	prune := r.result.PagesSkipped == 0
	batches := r.collected.batches(r.username, r.result.SyncID, p.flushBatchSize, prune)
	for i, batch := range batches {
		final := i == len(batches)-1
		if err := p.sink.ApplySync(ctx, batch, final); err != nil {
			return services.Wrap(services.ErrPersistence, "pipeline", "flush",
				fmt.Sprintf("batch %d of %d", i+1, len(batches)), err)
		}
		pct := percentFlush + (percentDone-percentFlush)*float64(i+1)/float64(len(batches))
		p.report(ctx, r, Progress{Percent: pct, Message: fmt.Sprintf("Saved batch %d of %d", i+1, len(batches))})
	}
	films, reviews := r.collected.counts()
	r.result.Films = films
	r.result.Ratings = films
	r.result.Reviews = reviews
	r.result.Watchlist = len(r.collected.watchlist)
	r.result.Lists = len(r.collected.lists)
	r.result.Pruned = prune
	return nil
}

func (p *Pipeline) reportPage(ctx context.Context, r *run, listing Listing, page, hint int, message string) {
	band := listingBands[listing]
	frac := float64(page) / float64(page+1)
	if hint >= page && hint > 0 {
		frac = float64(page) / float64(hint)
	}
	pct := band[0] + (band[1]-band[0])*frac
	if pct >= band[1] {
		pct = band[1] - 0.01
	}
	p.report(ctx, r, Progress{Percent: pct, Message: message, Listing: listing, Page: page})
}

// report fills in the counters, clamps percent so it never regresses, and
// delivers the update unless ctx is done first.
func (p *Pipeline) report(ctx context.Context, r *run, pr Progress) {
	if pr.Percent < r.percent {
		pr.Percent = r.percent
	}
	r.percent = pr.Percent
	pr.PagesTotal = r.pagesTotal()
	pr.PagesFetched = r.result.PagesFetched
	pr.PagesSkipped = r.result.PagesSkipped
	pr.RecordsParsed = r.records
	if r.progress == nil {
		return
	}
	select {
	case r.progress <- pr:
	case <-ctx.Done():
	}
}
