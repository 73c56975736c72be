// Package synthetic generates offline records from keyword templates.
//
// Generator satisfies fetch.RecordSource, so callers can swap it in for the
// live search source without changing how results are consumed.
package synthetic

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/sentiment-fetch/pkg/fetch"
	"github.com/google/uuid"
)

// templates hold one %s verb for the keyword. Roughly a third each lean
// positive, negative and neutral.
var templates = []string{
	"I really love how %s is changing the world!",
	"Wow! %s blew my mind today. Amazing stuff!",
	"%s just keeps getting better and better.",
	"The best thing I saw today? %s, no doubt.",
	"%s is the future of technology.",
	"%s is overrated. Totally disappointed.",
	"I can't believe how terrible %s has become.",
	"Why is everyone talking about %s? It's boring.",
	"%s was mentioned in the news today.",
	"Just heard about %s.",
	"%s exists, and that's fine.",
	"Some people are talking about %s.",
	"%s trends again.",
	"%s was discussed in today's seminar.",
	"No strong opinions about %s, just interesting.",
	"%s is a topic I heard recently.",
}

// Templates returns a copy of the built-in templates.
func Templates() []string {
	out := make([]string, len(templates))
	copy(out, templates)
	return out
}

// Generator produces synthetic records. Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator seeded from the clock.
func NewGenerator() *Generator {
	return NewSeededGenerator(uint64(time.Now().UnixNano()))
}

// NewSeededGenerator creates a generator with a deterministic sequence.
func NewSeededGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate returns count texts about keyword, sampling templates with replacement.
func (g *Generator) Generate(keyword string, count int) []string {
	keyword = strings.TrimSpace(keyword)

	g.mu.Lock()
	defer g.mu.Unlock()

	texts := make([]string, count)
	for i := range texts {
		texts[i] = fmt.Sprintf(templates[g.rng.IntN(len(templates))], keyword)
	}
	return texts
}

// FetchRecords generates exactly target records for query.Text.
// It never rate-limits and never returns OutcomeEmpty.
func (g *Generator) FetchRecords(ctx context.Context, query fetch.Query, target int) (fetch.Result, error) {
	if target <= 0 {
		return fetch.Result{}, fetch.ErrInvalidTarget
	}
	if err := ctx.Err(); err != nil {
		return fetch.Result{Outcome: fetch.OutcomeCanceled}, &fetch.FetchError{
			Kind:  fetch.KindCanceled,
			Query: query.Expression(),
			Err:   err,
		}
	}

	texts := g.Generate(query.Text, target)
	records := make([]fetch.Record, len(texts))
	for i, text := range texts {
		records[i] = fetch.Record{ID: uuid.NewString(), Text: text}
	}

	return fetch.Result{
		Outcome: fetch.OutcomeSuccess,
		Records: records,
		Pages:   1,
	}, nil
}
