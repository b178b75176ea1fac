package image

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productstudio/internal/providers/replicate"
)

type runCall struct {
	model string
	input map[string]any
}

type fakeRunner struct {
	calls   []runCall
	outputs []string
	err     error
}

func (f *fakeRunner) Run(_ context.Context, model string, input map[string]any) (*replicate.Prediction, error) {
	f.calls = append(f.calls, runCall{model, input})
	if f.err != nil {
		return nil, f.err
	}
	out, _ := json.Marshal(f.outputs[len(f.calls)-1])
	return &replicate.Prediction{ID: "p", Status: replicate.StatusSucceeded, Output: out}, nil
}

func TestReplicateGeneratorChainsModels(t *testing.T) {
	runner := &fakeRunner{outputs: []string{"https://r/cutout.png", "https://r/final.png"}}
	g := NewReplicateGenerator(runner, "", "", zerolog.Nop())

	res, err := g.Generate(context.Background(), Request{JobID: "j1", ImageURL: "https://x/a.png", Prompt: "studio"})
	require.NoError(t, err)
	assert.Equal(t, "https://r/final.png", res.URL)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, DefaultRemoveBGModel, runner.calls[0].model)
	assert.Equal(t, "https://x/a.png", runner.calls[0].input["image"])
	assert.Equal(t, DefaultFluxModel, runner.calls[1].model)
	assert.Equal(t, "studio", runner.calls[1].input["prompt"])
	assert.Equal(t, "https://r/cutout.png", runner.calls[1].input["image_prompt"])
	assert.Equal(t, "1:1", runner.calls[1].input["aspect_ratio"])
}

func TestReplicateGeneratorExpandsVersionHash(t *testing.T) {
	g := NewReplicateGenerator(&fakeRunner{}, "deadbeef", "owner/flux", zerolog.Nop())
	assert.Equal(t, "lucataco/remove-bg:deadbeef", g.removeBGModel)
	assert.Equal(t, "owner/flux", g.fluxModel)
}

func TestReplicateGeneratorStopsOnFirstFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	g := NewReplicateGenerator(runner, "", "", zerolog.Nop())

	_, err := g.Generate(context.Background(), Request{ImageURL: "https://x/a.png", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remove background")
	assert.Len(t, runner.calls, 1)
}

func TestReplicateGeneratorEmptyOutput(t *testing.T) {
	runner := &fakeRunner{outputs: []string{""}}
	g := NewReplicateGenerator(runner, "", "", zerolog.Nop())

	_, err := g.Generate(context.Background(), Request{ImageURL: "https://x/a.png", Prompt: "p"})
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestSynthetic(t *testing.T) {
	res, err := Synthetic{}.Generate(context.Background(), Request{ImageURL: "https://x/a.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://x/a.png", res.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Synthetic{Delay: time.Hour}.Generate(ctx, Request{ImageURL: "https://x/a.png"})
	assert.ErrorIs(t, err, context.Canceled)
}
