// Package rules evaluates optional per-offer eligibility rules written in
// CEL against the facts of a booking.
package rules

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru/v2"
)

// costLimit bounds the work one rule evaluation may do.
const costLimit = 10_000

// MaxRuleLength bounds the source length of a rule.
const MaxRuleLength = 1024

// maxPrograms bounds the compiled-program cache. Rules replaced by offer
// updates age out.
const maxPrograms = 1024

// Facts describes the booking a rule is evaluated against.
type Facts struct {
	TourID          string
	OptionID        string
	CustomerID      string
	PartySize       int
	ItemCount       int
	BasePrice       int64
	TravelDaysAhead int // -1 when the travel date is unknown
}

func (f Facts) activation() map[string]any {
	return map[string]any{
		"tour_id":           f.TourID,
		"option_id":         f.OptionID,
		"customer_id":       f.CustomerID,
		"party_size":        int64(f.PartySize),
		"item_count":        int64(f.ItemCount),
		"base_price":        f.BasePrice,
		"travel_days_ahead": int64(f.TravelDaysAhead),
	}
}

// Evaluator compiles rules once and caches the most recently used programs
// by source.
type Evaluator struct {
	env      *cel.Env
	programs *lru.Cache[string, cel.Program]
}

// NewEvaluator declares the fact variables available to rules.
func NewEvaluator() (*Evaluator, error) {
	return newEvaluatorWithCapacity(maxPrograms)
}

func newEvaluatorWithCapacity(capacity int) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("tour_id", cel.StringType),
		cel.Variable("option_id", cel.StringType),
		cel.Variable("customer_id", cel.StringType),
		cel.Variable("party_size", cel.IntType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("base_price", cel.IntType),
		cel.Variable("travel_days_ahead", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	programs, err := lru.New[string, cel.Program](capacity)
	if err != nil {
		return nil, fmt.Errorf("create rule cache: %w", err)
	}
	return &Evaluator{env: env, programs: programs}, nil
}

// Compile checks that rule parses, type-checks and yields a bool.
func (e *Evaluator) Compile(rule string) error {
	_, err := e.program(rule)
	return err
}

func (e *Evaluator) program(rule string) (cel.Program, error) {
	if prg, ok := e.programs.Get(rule); ok {
		return prg, nil
	}

	if len(rule) > MaxRuleLength {
		return nil, fmt.Errorf("eligibility rule longer than %d characters", MaxRuleLength)
	}
	ast, iss := e.env.Compile(rule)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile eligibility rule: %w", iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("eligibility rule must evaluate to bool, got %s", ast.OutputType())
	}
	prg, err := e.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("build eligibility rule: %w", err)
	}

	e.programs.Add(rule, prg)
	return prg, nil
}

// ErrNotBool is returned when a rule produces a non-bool value at runtime.
var ErrNotBool = errors.New("eligibility rule did not return a bool")

// Eval runs rule against facts. An empty rule always matches.
func (e *Evaluator) Eval(rule string, facts Facts) (bool, error) {
	if rule == "" {
		return true, nil
	}
	prg, err := e.program(rule)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(facts.activation())
	if err != nil {
		return false, fmt.Errorf("evaluate eligibility rule: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, ErrNotBool
	}
	return b, nil
}

// Matches is Eval that fails closed: any error means no match.
func (e *Evaluator) Matches(rule string, facts Facts) bool {
	ok, err := e.Eval(rule, facts)
	return err == nil && ok
}
