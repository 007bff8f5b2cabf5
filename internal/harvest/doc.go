// Package harvest coordinates a listing crawl: a discovery loop feeds links
// into a Collector, a fixed Pool of workers fetches and extracts each one
// through a RetryExecutor, and Drain returns once every discovered link has
// a terminal entry.
package harvest
