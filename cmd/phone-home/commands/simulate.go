package commands

import (
	"fmt"

	"github.com/LuisBuenanyo/eos-phone-home/internal/census"
)

// SimulateCmd implements the 'simulate' command.
type SimulateCmd struct {
	Seed int64 `default:"1" help:"Random seed for reproducible runs"`
}

func (s *SimulateCmd) Run(_ *Global, _ *CLI) error {
	result := census.NewSimulator(s.Seed).Run()

	fmt.Printf("Simulated clients:    %d\n", result.Clients)
	fmt.Printf("Estimated population: %d\n", result.Estimate)
	fmt.Printf("Generations tracked:  %d\n", result.Generations)

	if !result.Accurate() {
		return fmt.Errorf("estimate %d diverged from the actual %d clients", result.Estimate, result.Clients)
	}
	fmt.Println("Estimate matches the actual population")
	return nil
}
