// Package census estimates machine populations from phone-home pings. Each
// machine reports a monotonically increasing ping generation; the census
// tallies generation histograms per release channel without any per-machine
// identifier.
package census

import "encoding/json"

// Counter is a generation histogram for one channel. A ping at generation g
// supersedes the same machine's previous ping at g-1, so bucket g-1 is
// decremented (when populated) as bucket g is incremented. The bucket sum is
// then an estimate of the number of distinct machines seen.
type Counter struct {
	buckets []int64
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Add records a ping at the given generation. Negative generations are
// ignored; callers validate at the service boundary.
func (c *Counter) Add(generation int) {
	if generation < 0 {
		return
	}
	if need := generation + 1 - len(c.buckets); need > 0 {
		c.buckets = append(c.buckets, make([]int64, need)...)
	}
	if generation > 0 && c.buckets[generation-1] > 0 {
		c.buckets[generation-1]--
	}
	c.buckets[generation]++
}

// Population estimates the number of distinct machines seen.
func (c *Counter) Population() int64 {
	var total int64
	for _, n := range c.buckets {
		total += n
	}
	return total
}

// Generations returns how many generation buckets the counter tracks.
func (c *Counter) Generations() int {
	return len(c.buckets)
}

// Buckets returns a copy of the histogram.
func (c *Counter) Buckets() []int64 {
	out := make([]int64, len(c.buckets))
	copy(out, c.buckets)
	return out
}

// MarshalJSON serializes the histogram as a plain JSON array, the format the
// counters table stores.
func (c *Counter) MarshalJSON() ([]byte, error) {
	if c.buckets == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.buckets)
}

// UnmarshalJSON restores a histogram serialized by MarshalJSON.
func (c *Counter) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &c.buckets)
}
