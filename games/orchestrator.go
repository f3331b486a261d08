package games

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Generator renders one prompt into a batch of base64 images.
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]string, error)
}

// Orchestrator runs one generation per player and gathers the results.
type Orchestrator struct {
	gen         Generator
	placeholder string
	limit       int
	logf        func(format string, args ...any)
	reason      func(error) string
}

type OrchestratorOptions struct {
	// Placeholder is the image a player gets when their generation fails.
	Placeholder string

	// Limit caps the number of generations in flight. Zero means no cap.
	Limit int

	Logf func(format string, args ...any)

	// Reason turns a generation error into the text that is logged.
	Reason func(error) string
}

func NewOrchestrator(gen Generator, opts OrchestratorOptions) *Orchestrator {
	o := &Orchestrator{
		gen:         gen,
		placeholder: opts.Placeholder,
		limit:       opts.Limit,
		logf:        opts.Logf,
		reason:      opts.Reason,
	}

	if o.logf == nil {
		o.logf = func(string, ...any) {}
	}
	if o.reason == nil {
		o.reason = func(err error) string { return err.Error() }
	}

	return o
}

// Collect generates images for every player in users concurrently and
// waits for all of them. The result has exactly one entry per player; a
// player whose generation failed gets a single placeholder image.
func (o *Orchestrator) Collect(ctx context.Context, users map[string]string) map[string][]string {
	var (
		mu      sync.Mutex
		results = make(map[string][]string, len(users))
	)

	// Tasks never return an error, so a failure cannot cancel its siblings.
	var g errgroup.Group
	if o.limit > 0 {
		g.SetLimit(o.limit)
	}

	for user, prompt := range users {
		g.Go(func() error {
			o.logf("IMAGES: Generating images for %q (%q)", user, prompt)

			images, err := o.gen.Generate(ctx, prompt)
			if err != nil {
				o.logf("IMAGES: ERROR: %s: %s", user, o.reason(err))
				images = []string{o.placeholder}
			} else {
				o.logf("IMAGES: Done generating %d images for %q", len(images), user)
			}

			mu.Lock()
			results[user] = images
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	return results
}
