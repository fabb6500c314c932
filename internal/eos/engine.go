// Package eos estimates a field's end-of-season date by fusing an NDVI
// trajectory projection with a growing-degree-day projection.
//
// The engine is a chain of pure stages:
//
//	normalize -> selectBaseline -> applySanityGuard -> applyWaterStress
//	          -> {scoreConfidence, classifyStage} -> explain
//
// "Today" is derived once per call and passed explicitly to every stage that
// compares against it, so an Engine is safe for concurrent use and repeated
// calls with the same input and clock return identical results.
package eos

import (
	"time"

	"harvestwatch/internal/types"
)

// Engine runs estimates with a fixed set of thresholds.
type Engine struct {
	th    Thresholds
	clock types.Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used by Estimate.
func WithClock(c types.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New builds an Engine after validating th.
func New(th Thresholds, opts ...Option) (*Engine, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{th: th, clock: types.RealClock{}}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Thresholds returns the thresholds the engine was built with.
func (e *Engine) Thresholds() Thresholds { return e.th }

// Estimate reads the clock once and runs the pipeline.
func (e *Engine) Estimate(req types.EstimateRequest) (*types.EstimateResult, error) {
	return e.EstimateAt(req, e.clock.Now())
}

// EstimateAt runs the pipeline as if the current instant were now.
func (e *Engine) EstimateAt(req types.EstimateRequest, now time.Time) (*types.EstimateResult, error) {
	return run(req, Today(now), e.th)
}

// Today truncates now to its calendar day.
func Today(now time.Time) types.Date {
	return types.DateOf(now)
}

func run(req types.EstimateRequest, today types.Date, th Thresholds) (*types.EstimateResult, error) {
	in, err := normalize(req, th)
	if err != nil {
		return nil, err
	}

	v := selectBaseline(in, today, th)
	v = applySanityGuard(in, v, today, th)
	v = applyWaterStress(in, v, today, th)

	confidence := scoreConfidence(in, v, th)
	stage := classifyStage(in, v.rule, th)
	passed := v.eos.Before(today)

	v, explanation := explain(in, v, confidence, stage, passed)

	res := &types.EstimateResult{
		EOS:               v.eos,
		Method:            v.method,
		Confidence:        confidence,
		PhenologicalStage: stage,
		Passed:            passed,
		Projections:       projections(in, v),
		Explanation:       explanation,
		Factors:           nonNil(v.factors),
		Warnings:          nonNil(v.warnings),
		EvaluatedOn:       today,
		SanityRule:        v.rule,
		ConvergenceDays:   v.convergenceDays,
	}
	if in.progressKnown {
		p := in.progress
		res.GDDProgress = &p
	}
	return res, nil
}

func projections(in normalized, v verdict) types.Projections {
	gddConf := 0
	if in.req.EOSGDD != nil {
		gddConf = in.gddScore
	}
	return types.Projections{
		NDVI: types.ProjectionSnapshot{
			Date:       copyDate(in.req.EOSNDVI),
			Confidence: in.req.NDVIConfidence,
			Status:     v.ndviStatus,
		},
		GDD: types.ProjectionSnapshot{
			Date:       copyDate(in.req.EOSGDD),
			Confidence: gddConf,
			Status:     v.gddStatus,
		},
		WaterAdjustment: v.waterAdjustment,
	}
}

func copyDate(d *types.Date) *types.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
