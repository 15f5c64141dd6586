package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/LuisBuenanyo/eos-phone-home/internal/census"
)

// seededStore holds two machines on eos-3.9-amd64 (one upgraded the next
// day) and one machine on eos-3.8-armhf.
func seededStore(t *testing.T) *census.Store {
	t.Helper()
	s, err := census.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	base := time.Date(2019, 4, 18, 9, 0, 0, 0, time.Local)
	apply := func(channel string, generation int, at time.Time) {
		t.Helper()
		_, err := s.ApplyPing(t.Context(), channel, generation, at)
		require.NoError(t, err)
	}
	apply("eos-3.9-amd64", 0, base)
	apply("eos-3.9-amd64", 0, base.Add(time.Hour))
	apply("eos-3.9-amd64", 1, base.Add(24*time.Hour))
	apply("eos-3.8-armhf", 0, base.Add(2*time.Hour))
	return s
}

func TestBuild_CollectsPerChannelData(t *testing.T) {
	s := seededStore(t)

	rep, err := Build(t.Context(), s, time.Now())
	require.NoError(t, err)
	require.Len(t, rep.Channels, 2)

	armhf := rep.Channels[0]
	require.Equal(t, "eos-3.8-armhf", armhf.Channel)
	require.EqualValues(t, 1, armhf.Population)
	require.Equal(t, []int64{1}, armhf.Histogram)
	require.Len(t, armhf.Daily, 1)

	amd64 := rep.Channels[1]
	require.Equal(t, "eos-3.9-amd64", amd64.Channel)
	require.EqualValues(t, 2, amd64.Population)
	require.Equal(t, []int64{1, 1}, amd64.Histogram)
	require.Equal(t, []census.HistoryPoint{
		{Date: "2019-04-18", Updates: 2, Machines: 2},
		{Date: "2019-04-19", Updates: 1, Machines: 2},
	}, amd64.Daily)

	require.EqualValues(t, 3, rep.TotalMachines())
}

func TestFilter_LimitsToOneChannel(t *testing.T) {
	s := seededStore(t)

	rep, err := Build(t.Context(), s, time.Now())
	require.NoError(t, err)

	only := rep.Filter("eos-3.8-armhf")
	require.Len(t, only.Channels, 1)
	require.Equal(t, "eos-3.8-armhf", only.Channels[0].Channel)

	require.Same(t, rep, rep.Filter(""))
	require.Empty(t, rep.Filter("no-such-channel").Channels)
}

func TestMarkdown_ListsChannelsAndHistory(t *testing.T) {
	s := seededStore(t)

	rep, err := Build(t.Context(), s, time.Date(2019, 4, 20, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	md := rep.Markdown()
	require.Contains(t, md, "# Phone home census")
	require.Contains(t, md, "Generated 2019-04-20 12:00 UTC.")
	require.Contains(t, md, "## eos-3.9-amd64")
	require.Contains(t, md, "| 2019-04-18 | 2 | 2 |")
	require.Contains(t, md, "| 2019-04-19 | 1 | 2 |")
	require.Contains(t, md, "| Total | 3 |")
	require.Contains(t, md, "[1 1]")
}

func TestMarkdown_EmptyCensus(t *testing.T) {
	s, err := census.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	rep, err := Build(t.Context(), s, time.Now())
	require.NoError(t, err)
	require.Contains(t, rep.Markdown(), "No pings recorded.")
}

func TestHTML_RendersStandalonePage(t *testing.T) {
	s := seededStore(t)

	rep, err := Build(t.Context(), s, time.Now())
	require.NoError(t, err)

	page, err := rep.HTML()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	require.Contains(t, page, "<style>")

	doc, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)

	var headings []string
	var tables int
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h2":
				if n.FirstChild != nil {
					headings = append(headings, n.FirstChild.Data)
				}
			case "table":
				tables++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	require.Equal(t, []string{"eos-3.8-armhf", "eos-3.9-amd64"}, headings)
	// Channel overview plus one daily table per channel.
	require.Equal(t, 3, tables)
}

func TestWriteHTML_WritesFile(t *testing.T) {
	s := seededStore(t)

	rep, err := Build(t.Context(), s, time.Now())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "census.html")
	require.NoError(t, rep.WriteHTML(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "eos-3.9-amd64")
	require.Contains(t, string(data), "</html>")
}
