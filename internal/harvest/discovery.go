package harvest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/harvest/internal/metrics"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"github.com/law-makers/harvest/pkg/models"
)

// DefaultMaxIdleRounds is how many consecutive rounds without a new link
// end discovery when the end marker never shows up
const DefaultMaxIdleRounds = 3

// LinkSource is the listing surface discovery reads from, normally a
// browser session. It is used from a single goroutine.
type LinkSource interface {
	// ExtractLinks returns the item links currently visible. Repeated calls
	// may return links already seen.
	ExtractLinks(ctx context.Context) ([]string, error)
	// Advance loads more of the listing, e.g. by scrolling
	Advance(ctx context.Context) error
	// HasReachedEnd reports whether the listing signals it has no more items
	HasReachedEnd(ctx context.Context) (bool, error)
}

// Discovery feeds links from a LinkSource into a Collector until the
// listing ends or stops producing new links
type Discovery struct {
	Source    LinkSource
	Collector *Collector
	Metrics   *metrics.Metrics

	// Cookies and Query are copied into every work item
	Cookies models.Cookies
	Query   string

	// MaxIdleRounds ends the loop after this many consecutive rounds that
	// submitted nothing new. 0 selects DefaultMaxIdleRounds.
	MaxIdleRounds int
	// MaxRounds caps the number of rounds. 0 means no cap.
	MaxRounds int
	// KeyFunc derives the dedup key from a link. Defaults to NormalizeLink.
	KeyFunc func(link string) string
}

// Run executes the discovery loop and closes the collector before it
// returns, whether or not the loop failed. It returns the number of rounds
// completed.
func (d *Discovery) Run(ctx context.Context) (rounds int, err error) {
	defer func() {
		if cerr := d.Collector.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	maxIdle := d.MaxIdleRounds
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdleRounds
	}

	idle := 0
	for {
		if err := ctx.Err(); err != nil {
			return rounds, fmt.Errorf("discovery canceled: %w", err)
		}

		links, err := d.Source.ExtractLinks(ctx)
		if err != nil {
			return rounds, fmt.Errorf("extract links (round %d): %w", rounds+1, err)
		}

		accepted, err := d.Collector.Submit(ctx, d.items(links))
		if err != nil {
			return rounds, fmt.Errorf("submit links (round %d): %w", rounds+1, err)
		}
		rounds++
		d.Metrics.ObserveRound()

		if accepted == 0 {
			idle++
		} else {
			idle = 0
		}

		log.Debug().
			Int("round", rounds).
			Int("links", len(links)).
			Int("accepted", accepted).
			Int("idle_rounds", idle).
			Msg("Discovery round")

		ended, err := d.Source.HasReachedEnd(ctx)
		if err != nil {
			log.Warn().Err(err).Int("round", rounds).Msg("End-of-listing check failed")
		}
		if ended {
			log.Debug().Int("rounds", rounds).Msg("Listing reached its end")
			return rounds, nil
		}
		if idle >= maxIdle {
			log.Info().
				Int("rounds", rounds).
				Int("idle_rounds", idle).
				Msg("No new links found, ending discovery")
			return rounds, nil
		}
		if d.MaxRounds > 0 && rounds >= d.MaxRounds {
			log.Info().Int("rounds", rounds).Msg("Discovery round limit reached")
			return rounds, nil
		}

		if err := d.Source.Advance(ctx); err != nil {
			return rounds, fmt.Errorf("advance listing (round %d): %w", rounds, err)
		}
	}
}

func (d *Discovery) items(links []string) []models.WorkItem {
	keyFunc := d.KeyFunc
	if keyFunc == nil {
		keyFunc = urlutil.NormalizeLink
	}
	items := make([]models.WorkItem, 0, len(links))
	for _, link := range links {
		key := keyFunc(link)
		if key == "" {
			continue
		}
		items = append(items, models.WorkItem{
			Key:     key,
			Link:    link,
			Query:   d.Query,
			Cookies: d.Cookies,
		})
	}
	return items
}
