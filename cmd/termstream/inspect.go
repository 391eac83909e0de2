package main

import (
	"fmt"
	"os"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/source"
)

type inspectFlags struct {
	input    string
	uri      string
	evaluate string
}

type inspectReport struct {
	Type        string   `json:"type"`
	NumTerms    int      `json:"num_terms"`
	MinCoupling int      `json:"min_coupling"`
	MaxCoupling int      `json:"max_coupling"`
	AvgCoupling float64  `json:"avg_coupling"`
	Cost        *float64 `json:"cost,omitempty"`
}

func newInspectCmd(a *app) *cobra.Command {
	var fl inspectFlags
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print coupling statistics for a JSONL terms file or an uploaded problem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}

			p, err := loadForInspect(cmd, a, fl)
			if err != nil {
				return err
			}

			stats := domain.NewProblemStats(p.Type)
			stats.Observe(p.Terms)
			report := inspectReport{
				Type:        p.Type.String(),
				NumTerms:    stats.NumTerms,
				MinCoupling: stats.MinCoupling,
				MaxCoupling: stats.MaxCoupling,
				AvgCoupling: stats.AvgCoupling,
			}
			if fl.evaluate != "" {
				config, err := readConfiguration(fl.evaluate)
				if err != nil {
					return err
				}
				cost, err := p.Evaluate(config)
				if err != nil {
					return err
				}
				report.Cost = &cost
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&fl.input, "input", "i", "", "JSONL terms file, - for stdin")
	f.StringVar(&fl.uri, "uri", "", "inspect an uploaded problem instead (needs --store)")
	f.StringVar(&fl.evaluate, "evaluate", "", "JSON file mapping variable ids to values; prints the cost")
	return cmd
}

func loadForInspect(cmd *cobra.Command, a *app, fl inspectFlags) (*domain.Problem, error) {
	if fl.uri != "" {
		if err := a.cfg.RequireStore(); err != nil {
			return nil, err
		}
		return fetchProblem(cmd.Context(), a, fl.uri, "", "")
	}
	if fl.input == "" {
		return nil, fmt.Errorf("%w: --input or --uri is required", domain.ErrInvalidConfig)
	}

	pt, err := domain.ParseProblemType(a.cfg.ProblemType)
	if err != nil {
		return nil, err
	}
	r := cmd.InOrStdin()
	if fl.input != "-" {
		f, err := os.Open(fl.input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	terms, err := source.Collect(cmd.Context(), r)
	if err != nil {
		return nil, err
	}
	return &domain.Problem{Type: pt, Terms: terms}, nil
}

// readConfiguration parses {"<id>": <value>, ...}.
func readConfiguration(path string) (map[int]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: configuration %s: %v", domain.ErrInvalidConfig, path, err)
	}
	config := make(map[int]int, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("%w: configuration key %q is not a variable id", domain.ErrInvalidConfig, k)
		}
		config[id] = v
	}
	return config, nil
}
