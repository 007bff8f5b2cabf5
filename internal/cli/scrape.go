// internal/cli/scrape.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/harvest/internal/app"
	"github.com/law-makers/harvest/internal/harvest"
	"github.com/law-makers/harvest/internal/session"
	"github.com/law-makers/harvest/internal/ui"
	"github.com/law-makers/harvest/internal/utils/headers"
	"github.com/law-makers/harvest/internal/utils/output"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"github.com/law-makers/harvest/pkg/models"
)

type scrapeOptions struct {
	queries     []string
	output      string
	failedFile  string
	metricsFile string
	session     string
	saveSession string
	headers     []string
	noProgress  bool
}

var scrapeOpts scrapeOptions

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape [listing-url...]",
	Short: "Harvest every item from one or more listings",
	Long: `Open each listing in a browser, scroll it until no new items appear, and
fetch every discovered item page in parallel while scrolling continues.

Listings are given as URLs, or as search terms with --query which are
appended to --search-url. Results are written as JSON to stdout unless
--output names a file; the extension picks the format (.json, .csv, .html,
.md). Items that fail every attempt stay in the results, marked failed.`,
	Example: `  # Harvest a Google Maps search
  harvest scrape "https://www.google.com/maps/search/cafes+in+Bangalore"

  # Harvest several searches into a CSV file
  harvest scrape -Q "cafes in Bangalore" -Q "bakeries in Mysore" -o places.csv

  # Reuse cookies saved by an earlier run
  harvest scrape -Q "museums in Delhi" --session maps

  # Keep failed links for a later retry and export metrics
  harvest scrape -Q "gyms in Pune" --failed-file failed.txt --metrics-file harvest.prom`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	f := scrapeCmd.Flags()
	f.StringArrayVarP(&scrapeOpts.queries, "query", "Q", nil, "Search term to harvest (repeatable)")
	f.StringVarP(&scrapeOpts.output, "output", "o", "", "File to write results to (.json, .csv, .html, .md)")
	f.StringVar(&scrapeOpts.failedFile, "failed-file", "", "File to write links of failed items to, one per line")
	f.StringVar(&scrapeOpts.metricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format to this path")
	f.StringVar(&scrapeOpts.session, "session", "", "Preload cookies from a saved session")
	f.StringVar(&scrapeOpts.saveSession, "save-session", "", "Save the browser cookies under this name after the run")
	f.StringArrayVarP(&scrapeOpts.headers, "header", "H", nil, `Extra header for item fetches (e.g., -H "Accept-Language: en")`)
	f.BoolVar(&scrapeOpts.noProgress, "no-progress", false, "Do not draw the progress bar")
}

func runScrape(cmd *cobra.Command, args []string) error {
	opts := scrapeOpts
	if len(args) == 0 && len(opts.queries) == 0 {
		return errors.New("give at least one listing URL or --query")
	}
	for _, u := range args {
		if err := urlutil.ValidateURL(u); err != nil {
			return err
		}
	}
	hdrs, err := headers.Parse(opts.headers)
	if err != nil {
		return err
	}
	if opts.output != "" {
		if _, err := output.FormatFor(opts.output); err != nil {
			return err
		}
	}

	a := GetAppFromCmd(cmd)
	if a == nil {
		return errors.New("application not initialized")
	}
	ctx := cmd.Context()

	preload := models.NewCookies(nil)
	if opts.session != "" {
		snap, err := a.Sessions.Load(opts.session)
		if err != nil {
			return err
		}
		preload = snap.CookieSnapshot()
		log.Debug().Str("session", opts.session).Int("cookie_count", preload.Len()).Msg("Session loaded")
	}

	b, err := a.NewBrowser()
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing browser")
		}
	}()

	showBar := !opts.noProgress && !a.Config.JSONLog && a.Config.LogLevel != "debug" && a.Config.LogLevel != "error"
	bar := newProgress(cmd.ErrOrStderr(), showBar)
	runner := a.NewRunner(b, a.NewExecutor(hdrs), harvest.Options{
		Preload:  preload,
		Observer: bar.observe,
	})

	results, runErr := harvestAll(ctx, a, runner, args, opts.queries)
	bar.finish()

	if opts.saveSession != "" {
		saveSession(ctx, a, b, opts.saveSession, firstListing(a, args, opts.queries))
	}

	if err := writeResults(cmd, a, results, opts); err != nil {
		return errors.Join(runErr, err)
	}
	printSummary(cmd, results)

	if errors.Is(runErr, harvest.ErrDrainInterrupted) {
		return fmt.Errorf("interrupted, partial results written: %w", runErr)
	}
	return runErr
}

// harvestAll runs the explicit listings first, then the search queries
func harvestAll(ctx context.Context, a *app.Application, runner *harvest.Runner, urls, queries []string) (models.Results, error) {
	results := make(models.Results)
	var errs []error

	for _, u := range urls {
		r, err := runner.Run(ctx, u)
		results.Merge(r)
		if err != nil {
			errs = append(errs, fmt.Errorf("listing %s: %w", u, err))
		}
		if ctx.Err() != nil {
			return results, errors.Join(errs...)
		}
	}

	if len(queries) > 0 {
		r, err := runner.RunQueries(ctx, a.Config.SearchURL, queries)
		results.Merge(r)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

func firstListing(a *app.Application, urls, queries []string) string {
	if len(urls) > 0 {
		return urls[0]
	}
	return urlutil.SearchURL(a.Config.SearchURL, queries[0])
}

// saveSession stores the browser's cookies. The run may have been
// interrupted, so the cookie read gets its own short deadline.
func saveSession(ctx context.Context, a *app.Application, b harvest.Browser, name, url string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	cookies, err := b.Cookies(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read cookies, session not saved")
		return
	}
	if err := a.Sessions.Save(session.NewSnapshot(name, url, cookies, a.Config.SessionTTL)); err != nil {
		log.Warn().Err(err).Str("session", name).Msg("Failed to save session")
		return
	}
	log.Info().Str("session", name).Int("cookie_count", cookies.Len()).Msg("Session saved")
}

func writeResults(cmd *cobra.Command, a *app.Application, results models.Results, opts scrapeOptions) error {
	if opts.output != "" {
		if err := output.Save(results, opts.output); err != nil {
			return err
		}
		log.Info().Str("file", opts.output).Int("entries", len(results)).Msg("Results saved")
	} else if err := output.WriteJSON(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	if opts.failedFile != "" {
		f, err := os.Create(opts.failedFile)
		if err != nil {
			return fmt.Errorf("create failed-items file: %w", err)
		}
		err = output.WriteFailed(f, results)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("write failed-items file: %w", err)
		}
	}

	if opts.metricsFile != "" {
		if err := a.Metrics.WriteTextfile(opts.metricsFile); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(cmd *cobra.Command, results models.Results) {
	failed := len(results.Failed())
	line := fmt.Sprintf("%d items, %d succeeded, %d failed", len(results), len(results)-failed, failed)
	w := cmd.ErrOrStderr()
	if failed > 0 {
		fmt.Fprintf(w, "%s %s\n", ui.Warn("!"), line)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ui.Success("✓"), line)
}
