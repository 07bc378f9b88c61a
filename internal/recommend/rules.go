package recommend

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/cel-go/cel"

	"carbmine/internal/emissions"
)

// MaxResults caps a ranking.
const MaxResults = 10

// Rule is a named CEL expression that evaluates to a score contribution
// (double). Variables: category, impact and row_sector (lower-cased catalog
// fields), sector (lower-cased request sector), band ("high", "medium",
// "low") and emission (double).
type Rule struct {
	Name       string
	Expression string
}

const impactRule = `impact == "high" ? 2.0 : (impact == "medium" ? 1.0 : 0.0)`

const sectorRule = `row_sector != "" && sector.contains(row_sector) ? 0.5 : 0.0`

// PrimaryRules weight categories by emission band, then impact, then sector.
var PrimaryRules = []Rule{
	{Name: "band", Expression: `(band == "high" && (category.contains("renewable") || category.contains("efficiency") || category.contains("offset") || category.contains("carbon capture"))) ||
		(band == "medium" && (category.contains("efficiency") || category.contains("renewable"))) ||
		(band == "low" && (category.contains("policy") || category.contains("behavior") || category.contains("maintenance") || category.contains("offset"))) ? 3.0 : 0.0`},
	{Name: "impact", Expression: impactRule},
	{Name: "sector", Expression: sectorRule},
}

// FallbackRules match PrimaryRules except that carbon capture earns no band
// weight.
var FallbackRules = []Rule{
	{Name: "band", Expression: `(band == "high" && (category.contains("renewable") || category.contains("efficiency") || category.contains("offset"))) ||
		(band == "medium" && (category.contains("efficiency") || category.contains("renewable"))) ||
		(band == "low" && (category.contains("policy") || category.contains("behavior") || category.contains("offset") || category.contains("maintenance"))) ? 3.0 : 0.0`},
	{Name: "impact", Expression: impactRule},
	{Name: "sector", Expression: sectorRule},
}

// celCostLimit bounds evaluation of a single rule.
const celCostLimit = 100_000

// Ranker orders strategies for a request.
type Ranker interface {
	Rank(ctx context.Context, sector string, emission float64, region string) ([]RankedStrategy, error)
}

type compiledRule struct {
	name string
	prog cel.Program
}

// RuleRanker scores a fixed catalog with compiled CEL rules. It is safe for
// concurrent use.
type RuleRanker struct {
	catalog []Strategy
	rules   []compiledRule
}

// NewRuleRanker compiles rules against the scoring environment.
func NewRuleRanker(catalog []Strategy, rules []Rule) (*RuleRanker, error) {
	env, err := cel.NewEnv(
		cel.Variable("category", cel.StringType),
		cel.Variable("impact", cel.StringType),
		cel.Variable("row_sector", cel.StringType),
		cel.Variable("sector", cel.StringType),
		cel.Variable("band", cel.StringType),
		cel.Variable("emission", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %s: compile error: %w", r.Name, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.DoubleType) {
			return nil, fmt.Errorf("rule %s: must evaluate to double, got %s", r.Name, ast.OutputType())
		}
		prog, err := env.Program(ast, cel.CostLimit(celCostLimit))
		if err != nil {
			return nil, fmt.Errorf("rule %s: program creation error: %w", r.Name, err)
		}
		compiled = append(compiled, compiledRule{name: r.Name, prog: prog})
	}

	return &RuleRanker{catalog: slices.Clone(catalog), rules: compiled}, nil
}

// Rank implements Ranker.
func (rr *RuleRanker) Rank(ctx context.Context, sector string, emission float64, region string) ([]RankedStrategy, error) {
	band := string(emissions.ClassifyLevel(emission))
	lowerSector := strings.ToLower(sector)

	type scored struct {
		s     Strategy
		score float64
	}
	rows := make([]scored, 0, len(rr.catalog))
	for _, s := range rr.catalog {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		impact := s.ImpactLevel
		if impact == "" {
			impact = "Medium"
		}
		vars := map[string]any{
			"category":   strings.ToLower(s.Category),
			"impact":     strings.ToLower(impact),
			"row_sector": strings.ToLower(s.Sector),
			"sector":     lowerSector,
			"band":       band,
			"emission":   emission,
		}

		total := 0.0
		for _, r := range rr.rules {
			out, _, err := r.prog.Eval(vars)
			if err != nil {
				return nil, fmt.Errorf("rule %s on %q: %w", r.name, s.Strategy, err)
			}
			v, ok := out.Value().(float64)
			if !ok {
				return nil, fmt.Errorf("rule %s returned %T", r.name, out.Value())
			}
			total += v
		}
		rows = append(rows, scored{s: s, score: total})
	}

	slices.SortStableFunc(rows, func(a, b scored) int { return cmp.Compare(b.score, a.score) })

	var regionPtr *string
	if region != "" {
		regionPtr = &region
	}
	out := make([]RankedStrategy, 0, min(MaxResults, len(rows)))
	for _, r := range rows[:min(MaxResults, len(rows))] {
		out = append(out, RankedStrategy{
			Strategy:                r.s.Strategy,
			Category:                r.s.Category,
			ImpactLevel:             cmp.Or(r.s.ImpactLevel, "Medium"),
			EstimatedReductionTCO2e: calibrate(r.s.EstimatedReductionTCO2e, emission),
			Description:             r.s.Description,
			Sector:                  sector,
			Region:                  regionPtr,
		})
	}
	return out, nil
}

// calibrate turns a catalog reduction into tCO2e for this emission value.
func calibrate(reduction, emission float64) float64 {
	v := reduction
	if reduction <= 1 {
		v = reduction * emission
	}
	return math.Max(0, v)
}
