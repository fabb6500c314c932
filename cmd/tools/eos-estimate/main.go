// Package main implements eos-estimate, a CLI that runs one end-of-season
// estimate from a JSON request without the HTTP service.
//
// Usage:
//
//	go run ./cmd/tools/eos-estimate --input=request.json
//	cat request.json | go run ./cmd/tools/eos-estimate --input=- --now=2026-02-01 --pretty
//
// Engine thresholds come from EOS_* environment variables (or a .env file via
// godotenv), exactly as the API reads them.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"harvestwatch/internal/config"
	"harvestwatch/internal/core"
	"harvestwatch/internal/eos"
	"harvestwatch/internal/types"
)

// output is the printed document: the verdict plus its localized labels.
type output struct {
	Result   *types.EstimateResult `json:"result"`
	Labels   labels                `json:"labels"`
	Warnings []string              `json:"input_warnings,omitempty"`
}

type labels struct {
	Method     string `json:"method"`
	Stage      string `json:"phenological_stage"`
	Confidence string `json:"confidence"`
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("eos-estimate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inputFlag := fs.String("input", "", "Path to the JSON request, or - for stdin")
	nowFlag := fs.String("now", "", "Evaluate as of this date (YYYY-MM-DD) instead of today")
	prettyFlag := fs.Bool("pretty", false, "Indent the JSON output")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: eos-estimate --input=FILE [flags]\n\n")
		fmt.Fprintf(stderr, "Run one end-of-season estimate and print the verdict.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inputFlag == "" {
		fs.Usage()
		return errors.New("--input is required")
	}

	now := time.Now().UTC()
	if *nowFlag != "" {
		d, err := types.ParseDate(*nowFlag)
		if err != nil {
			return fmt.Errorf("--now: %w", err)
		}
		now = d.Time
	}

	req, err := readRequest(*inputFlag, stdin)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	v := core.NewValidator(logger)
	if err := v.ValidateStruct(req); err != nil {
		return describe(err)
	}

	th, err := config.LoadEngineConfig()
	if err != nil {
		return err
	}
	engine, err := eos.New(th)
	if err != nil {
		return err
	}
	result, err := engine.EstimateAt(req, now)
	if err != nil {
		return describe(err)
	}

	out := output{
		Result: result,
		Labels: labels{
			Method:     eos.MethodLabel(result.Method),
			Stage:      eos.PhenologicalStageLabel(result.PhenologicalStage),
			Confidence: eos.ConfidenceLabel(result.Confidence),
		},
		Warnings: req.ValidationWarnings(),
	}

	enc := json.NewEncoder(stdout)
	if *prettyFlag {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

func readRequest(path string, stdin io.Reader) (types.EstimateRequest, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return types.EstimateRequest{}, fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req types.EstimateRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return types.EstimateRequest{}, fmt.Errorf("decoding input: %w", err)
	}
	return req, nil
}

// describe flattens an AppError into a one-line CLI message.
func describe(err error) error {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return err
	}
	if verrs, ok := appErr.Details["validation_errors"].([]core.ValidationError); ok && len(verrs) > 0 {
		return fmt.Errorf("%s: %s: %s", appErr.Code, verrs[0].Field, verrs[0].Message)
	}
	return fmt.Errorf("%s: %s", appErr.Code, appErr.Message)
}
