// Package image turns an uploaded product photo into a styled product shot.
package image

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"productstudio/internal/providers/replicate"
)

// Request carries one job's input. Prompt is already expanded from the style.
type Request struct {
	JobID    string
	ImageURL string
	Prompt   string
}

// Result points at the generated image.
type Result struct {
	URL    string
	Format string
}

type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Runner is the part of the Replicate client the generator uses.
type Runner interface {
	Run(ctx context.Context, model string, input map[string]any) (*replicate.Prediction, error)
}

const (
	DefaultRemoveBGModel = "lucataco/remove-bg:95fcc2a26d3899cd6c2691c900465aaeff466285a65c14638cc5f36f34befaf1"
	DefaultFluxModel     = "black-forest-labs/flux-1.1-pro"
)

var ErrEmptyOutput = errors.New("image: model returned no output")

// ReplicateGenerator removes the photo background and renders the cut-out
// product into a new scene described by the prompt.
type ReplicateGenerator struct {
	runner        Runner
	removeBGModel string
	fluxModel     string
	logger        zerolog.Logger
}

// NewReplicateGenerator uses the default models for empty names. A bare
// remove-bg version hash is expanded to the full model reference.
func NewReplicateGenerator(runner Runner, removeBGVersion, fluxModel string, logger zerolog.Logger) *ReplicateGenerator {
	removeBG := strings.TrimSpace(removeBGVersion)
	switch {
	case removeBG == "":
		removeBG = DefaultRemoveBGModel
	case !strings.Contains(removeBG, "/"):
		removeBG = "lucataco/remove-bg:" + removeBG
	}
	if strings.TrimSpace(fluxModel) == "" {
		fluxModel = DefaultFluxModel
	}
	return &ReplicateGenerator{runner: runner, removeBGModel: removeBG, fluxModel: fluxModel, logger: logger}
}

func (g *ReplicateGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	cutout, err := g.first(ctx, g.removeBGModel, map[string]any{"image": req.ImageURL})
	if err != nil {
		return nil, fmt.Errorf("remove background: %w", err)
	}
	g.logger.Debug().Str("job_id", req.JobID).Str("cutout", cutout).Msg("image: background removed")

	out, err := g.first(ctx, g.fluxModel, map[string]any{
		"prompt":           req.Prompt,
		"image_prompt":     cutout,
		"aspect_ratio":     "1:1",
		"output_format":    "png",
		"output_quality":   90,
		"safety_tolerance": 2,
	})
	if err != nil {
		return nil, fmt.Errorf("generate background: %w", err)
	}
	return &Result{URL: out, Format: "image/png"}, nil
}

func (g *ReplicateGenerator) first(ctx context.Context, model string, input map[string]any) (string, error) {
	pred, err := g.runner.Run(ctx, model, input)
	if err != nil {
		return "", err
	}
	urls := pred.URLs()
	if len(urls) == 0 {
		return "", ErrEmptyOutput
	}
	return urls[0], nil
}

// Synthetic stands in for Replicate when no token is configured. It returns
// the source photo after a short delay.
type Synthetic struct {
	Delay time.Duration
}

func (s Synthetic) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, errors.New("image: source url is required")
	}
	select {
	case <-time.After(s.Delay):
		return &Result{URL: req.ImageURL, Format: "image/png"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var (
	_ Generator = (*ReplicateGenerator)(nil)
	_ Generator = Synthetic{}
)
