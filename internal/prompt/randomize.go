package prompt

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/samber/lo"
)

var ErrNoPresets = errors.New("no presets configured")

// Randomizer picks a preset written as "model|prompt". A preset without a
// separator is a prompt for the default model.
type Randomizer struct {
	presets []string
	mu      sync.Mutex
	rnd     *rand.Rand
}

func NewRandomizer(presets []string) *Randomizer {
	presets = lo.Filter(presets, func(p string, _ int) bool {
		return strings.TrimSpace(p) != ""
	})
	rnd := rand.New(rand.NewSource(time.Now().UTC().UnixNano()))
	return &Randomizer{presets: presets, rnd: rnd}
}

func (r *Randomizer) Len() int {
	return len(r.presets)
}

func (r *Randomizer) Randomize(ctx context.Context) (string, string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("randomizer")
	log.Info("getting random model and prompt", "presets", len(r.presets))

	if len(r.presets) == 0 {
		return "", "", ErrNoPresets
	}

	r.mu.Lock()
	idx := r.rnd.Intn(len(r.presets))
	r.mu.Unlock()

	model, prompt, found := strings.Cut(r.presets[idx], "|")
	if !found {
		return "", strings.TrimSpace(model), nil
	}
	return strings.TrimSpace(model), strings.TrimSpace(prompt), nil
}
