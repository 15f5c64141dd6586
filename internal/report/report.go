// Package report turns census data into human-readable summaries: a Markdown
// digest (per channel: population, daily history, generation buckets) and a
// standalone HTML page rendered from it.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/LuisBuenanyo/eos-phone-home/internal/census"
)

// ChannelSummary is the per-channel slice of a Report.
type ChannelSummary struct {
	Channel    string
	Population int64
	Histogram  []int64
	Daily      []census.HistoryPoint
}

// Report is a point-in-time snapshot of the census.
type Report struct {
	GeneratedAt time.Time
	Channels    []ChannelSummary
}

// Build assembles a Report from the store. Channels come back sorted; an
// empty census yields a report with no channels.
func Build(ctx context.Context, store *census.Store, now time.Time) (*Report, error) {
	channels, err := store.Channels(ctx)
	if err != nil {
		return nil, err
	}
	populations, err := store.Populations(ctx)
	if err != nil {
		return nil, err
	}

	rep := &Report{GeneratedAt: now}
	for _, channel := range channels {
		histogram, err := store.Histogram(ctx, channel)
		if err != nil {
			return nil, err
		}
		daily, err := store.History(ctx, channel)
		if err != nil {
			return nil, err
		}
		rep.Channels = append(rep.Channels, ChannelSummary{
			Channel:    channel,
			Population: populations[channel],
			Histogram:  histogram,
			Daily:      daily,
		})
	}
	return rep, nil
}

// Filter returns a copy limited to one channel, or the report unchanged when
// channel is empty.
func (r *Report) Filter(channel string) *Report {
	if channel == "" {
		return r
	}
	out := &Report{GeneratedAt: r.GeneratedAt}
	for _, ch := range r.Channels {
		if ch.Channel == channel {
			out.Channels = append(out.Channels, ch)
		}
	}
	return out
}

// TotalMachines sums the population across channels.
func (r *Report) TotalMachines() int64 {
	var total int64
	for _, ch := range r.Channels {
		total += ch.Population
	}
	return total
}

// Markdown renders the report as GitHub-flavored Markdown.
func (r *Report) Markdown() string {
	var b strings.Builder

	b.WriteString("# Phone home census\n\n")
	fmt.Fprintf(&b, "Generated %s.\n\n", r.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))

	if len(r.Channels) == 0 {
		b.WriteString("No pings recorded.\n")
		return b.String()
	}

	b.WriteString("| Channel | Machines |\n| :--- | ---: |\n")
	for _, ch := range r.Channels {
		fmt.Fprintf(&b, "| %s | %d |\n", ch.Channel, ch.Population)
	}
	fmt.Fprintf(&b, "| Total | %d |\n", r.TotalMachines())

	for _, ch := range r.Channels {
		fmt.Fprintf(&b, "\n## %s\n\n", ch.Channel)
		fmt.Fprintf(&b, "Population: %d machines across %d generations.\n\n", ch.Population, len(ch.Histogram))

		if len(ch.Daily) > 0 {
			b.WriteString("| Date | Updates | Machines |\n| :--- | ---: | ---: |\n")
			for _, p := range ch.Daily {
				fmt.Fprintf(&b, "| %s | %d | %d |\n", p.Date, p.Updates, p.Machines)
			}
		}

		fmt.Fprintf(&b, "\nGeneration buckets:\n\n```\n%v\n```\n", ch.Histogram)
	}
	return b.String()
}
