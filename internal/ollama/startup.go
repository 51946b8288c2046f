package ollama

import (
	"context"
	"fmt"
	"io"
	"time"
)

// EnsureReady checks that Ollama is running and the required models are
// available, pulling missing ones with progress output written to w. After
// all models are present it warms up the analysis model so the first journal
// analysis doesn't pay the cold-load penalty.
// Returns a non-nil error if Ollama is unreachable.
func EnsureReady(ctx context.Context, c *Client, analysisModel, embedModel string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return fmt.Errorf("Ollama is not running. Start it with: ollama serve")
	}

	for _, model := range []string{analysisModel, embedModel} {
		if c.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: ready\n", model)
			continue
		}

		fmt.Fprintf(w, "model %s: pulling...\n", model)
		err := c.PullModel(ctx, model, func(status string, completed, total int64) {
			if total > 0 {
				pct := float64(completed) / float64(total) * 100
				fmt.Fprintf(w, "  %s %.0f%%\n", status, pct)
			} else {
				fmt.Fprintf(w, "  %s\n", status)
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}

	// Warm up the analysis model with a trivial request so it stays loaded.
	fmt.Fprintf(w, "model %s: warming up...\n", analysisModel)
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := c.Chat(warmCtx, analysisModel, []Message{
		{Role: "user", Content: "ping"},
	}, nil)
	if err != nil {
		fmt.Fprintf(w, "model %s: warm-up failed (non-fatal): %v\n", analysisModel, err)
	} else {
		fmt.Fprintf(w, "model %s: warm\n", analysisModel)
	}

	return nil
}
