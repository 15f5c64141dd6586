package census

import "math/rand"

// simClient models one machine in the estimation accuracy check. Unreliable
// clients skip a ping roll with probability errorRate/101; a skipped ping
// also skips the increment, exactly like a real machine that only advances
// its counter on acknowledged pings.
type simClient struct {
	generation int
	reliable   bool
	errorRate  int
}

func (c *simClient) ping(rng *rand.Rand) bool {
	if c.reliable {
		return true
	}
	return rng.Intn(101) > c.errorRate
}

func (c *simClient) increment() int {
	gen := c.generation
	c.generation++
	return gen
}

// Result summarizes a simulation run.
type Result struct {
	Clients     int
	Estimate    int64
	Generations int
	Histogram   []int64
}

// Accurate reports whether the population estimate matched the true client
// count.
func (r Result) Accurate() bool {
	return r.Estimate == int64(r.Clients)
}

// Simulator drives cohorts of synthetic clients against a Counter to check
// the estimator's accuracy under failures and late joiners.
type Simulator struct {
	rng     *rand.Rand
	clients []*simClient
	counter *Counter
}

// NewSimulator returns a simulator seeded for reproducible runs.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		rng:     rand.New(rand.NewSource(seed)),
		counter: NewCounter(),
	}
}

func (s *Simulator) iterate(n int) {
	for i := 0; i < n; i++ {
		for _, client := range s.clients {
			if client.ping(s.rng) {
				s.counter.Add(client.increment())
			}
		}
	}
}

// Run exercises four cohorts: 50 clients failing 0-50% of the time for 100
// iterations, 20 reliable late joiners for 25, 30 joiners carrying 30
// unreported increments for 25, and 30 flaky joiners with the same backlog
// for a final 25. At the end the estimate must equal the true client count.
func (s *Simulator) Run() Result {
	for i := 0; i < 50; i++ {
		s.clients = append(s.clients, &simClient{errorRate: s.rng.Intn(51)})
	}
	s.iterate(100)

	for i := 0; i < 20; i++ {
		s.clients = append(s.clients, &simClient{reliable: true})
	}
	s.iterate(25)

	stale := make([]*simClient, 0, 30)
	for i := 0; i < 30; i++ {
		stale = append(stale, &simClient{reliable: true})
	}
	for i := 0; i < 30; i++ {
		for _, client := range stale {
			client.increment()
		}
	}
	s.clients = append(s.clients, stale...)
	s.iterate(25)

	staleFlaky := make([]*simClient, 0, 30)
	for i := 0; i < 30; i++ {
		staleFlaky = append(staleFlaky, &simClient{errorRate: s.rng.Intn(51)})
	}
	for i := 0; i < 30; i++ {
		for _, client := range staleFlaky {
			if client.ping(s.rng) {
				client.increment()
			}
		}
	}
	s.clients = append(s.clients, staleFlaky...)
	s.iterate(25)

	return Result{
		Clients:     len(s.clients),
		Estimate:    s.counter.Population(),
		Generations: s.counter.Generations(),
		Histogram:   s.counter.Buckets(),
	}
}
