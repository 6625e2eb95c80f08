// Command formbench loads a store with forms, submissions and question-set
// updates through the repository layer, then races concurrent updates
// against one form with and without If-Match.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parisxmas/OxiForms/internal/config"
	"github.com/parisxmas/OxiForms/internal/docstore"
	"github.com/parisxmas/OxiForms/internal/docstore/backend"
	"github.com/parisxmas/OxiForms/internal/models"
	"github.com/parisxmas/OxiForms/internal/repository"
)

var (
	firstNames = []string{"Alice", "Bob", "Charlie", "Diana", "Eve", "Frank", "Grace", "Hank", "Ivy", "Jack"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis"}
	countries  = []string{"US", "UK", "JP", "FR", "DE", "AU", "CA", "IN", "TR", "NG"}
	types      = []string{"Paragraph", "YesNo", "Dropdown", "MultipleChoice", "Date", "Number"}
)

type options struct {
	forms       int
	questions   int
	submissions int
	updates     int
	workers     int
	raceWriters int
}

func main() {
	var opts options
	backendName := flag.String("backend", "", "store backend (oxidb, mongo, memory); defaults to STORE_BACKEND")
	flag.IntVar(&opts.forms, "forms", 200, "forms to create")
	flag.IntVar(&opts.questions, "questions", 8, "questions per form")
	flag.IntVar(&opts.submissions, "submissions", 2000, "submissions spread over the forms")
	flag.IntVar(&opts.updates, "updates", 3, "question-set replacements per form")
	flag.IntVar(&opts.workers, "workers", 8, "concurrent workers")
	flag.IntVar(&opts.raceWriters, "race-updates", 0, "concurrent writers racing on one form (0 skips the race phase)")
	flag.Parse()

	cfg := config.Load()
	if *backendName != "" {
		cfg.Backend = *backendName
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := zap.NewNop().Sugar()
	if cfg.Debug {
		l, _ := zap.NewDevelopment()
		log = l.Sugar()
	}

	store, err := backend.Open(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	fmt.Println("━━━ OxiForms benchmark ━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Backend:     %s\n", cfg.Backend)
	fmt.Printf("Forms:       %d x %d questions\n", opts.forms, opts.questions)
	fmt.Printf("Submissions: %d\n", opts.submissions)
	fmt.Printf("Updates:     %d per form\n", opts.updates)
	fmt.Printf("Workers:     %d\n\n", opts.workers)

	b := &bench{
		opts:  opts,
		forms: repository.NewFormRepo(store, log),
		subs:  repository.NewSubmissionRepo(store, log),
		types: repository.NewQuestionTypeRepo(store, log),
	}
	if err := b.run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

type bench struct {
	opts  options
	forms *repository.FormRepo
	subs  *repository.SubmissionRepo
	types *repository.QuestionTypeRepo
	ids   []string
}

func (b *bench) run(ctx context.Context) error {
	if err := b.forms.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := b.subs.EnsureIndexes(ctx); err != nil {
		return err
	}
	seeded, err := b.types.Seed(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Question types seeded: %d\n\n", seeded)

	phases := []struct {
		name string
		n    int
		fn   func(context.Context) error
	}{
		{"CREATE FORMS", b.opts.forms, b.createForms},
		{"SUBMIT", b.opts.submissions, b.submit},
		{"UPDATE QUESTIONS", b.opts.forms * b.opts.updates, b.update},
		{"VERIFY", b.opts.forms, b.verify},
	}
	for _, p := range phases {
		fmt.Printf("━━━ %s ━━━\n", p.name)
		start := time.Now()
		if err := p.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		elapsed := time.Since(start)
		fmt.Printf("  %d ops in %s (%.0f ops/s)\n\n", p.n, elapsed.Round(time.Millisecond), float64(p.n)/elapsed.Seconds())
	}

	if b.opts.raceWriters > 0 {
		return b.race(ctx)
	}
	return nil
}

func (b *bench) createForms(ctx context.Context) error {
	b.ids = make([]string, b.opts.forms)
	return b.parallel(ctx, b.opts.forms, func(ctx context.Context, i int, rng *rand.Rand) error {
		header := models.FormHeader{
			Title:            fmt.Sprintf("Application %d", i),
			PhoneInput:       rng.Intn(2) == 1,
			DateOfBirthInput: true,
		}
		form, err := b.forms.Create(ctx, header, questions(rng, b.opts.questions, "v0"))
		if err != nil {
			return err
		}
		b.ids[i] = form.ID
		return nil
	})
}

func (b *bench) submit(ctx context.Context) error {
	return b.parallel(ctx, b.opts.submissions, func(ctx context.Context, i int, rng *rand.Rand) error {
		first := firstNames[rng.Intn(len(firstNames))]
		last := lastNames[rng.Intn(len(lastNames))]
		_, err := b.subs.Submit(ctx, models.Submission{
			FormID:      b.ids[rng.Intn(len(b.ids))],
			FirstName:   first,
			LastName:    last,
			Email:       fmt.Sprintf("%s.%s.%d@example.com", first, last, i),
			Nationality: countries[rng.Intn(len(countries))],
			DateOfBirth: fmt.Sprintf("%04d-%02d-%02d", 1960+rng.Intn(45), 1+rng.Intn(12), 1+rng.Intn(28)),
			Responses:   map[string][]string{"q0": {"yes"}},
		})
		return err
	})
}

// update replaces each form's questions opts.updates times. Rounds for one
// form run in order so the final active set is known.
func (b *bench) update(ctx context.Context) error {
	return b.parallel(ctx, b.opts.forms, func(ctx context.Context, i int, rng *rand.Rand) error {
		for round := 1; round <= b.opts.updates; round++ {
			_, err := b.forms.Update(ctx, b.ids[i], models.FormHeader{}, questions(rng, b.opts.questions, fmt.Sprintf("v%d", round)), repository.UpdateOptions{})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *bench) verify(ctx context.Context) error {
	want := fmt.Sprintf("v%d", b.opts.updates)
	var retired, submitted atomic.Int64
	err := b.parallel(ctx, b.opts.forms, func(ctx context.Context, i int, _ *rand.Rand) error {
		n, err := b.subs.CountByForm(ctx, b.ids[i])
		if err != nil {
			return err
		}
		submitted.Add(int64(n))

		all, err := b.forms.ListQuestions(ctx, b.ids[i], true)
		if err != nil {
			return err
		}
		active := 0
		for _, q := range all {
			if !q.IsActive {
				retired.Add(1)
				continue
			}
			active++
			if !strings.HasPrefix(q.Content, want+" ") {
				return fmt.Errorf("form %s: active question %q is from an old version", b.ids[i], q.Content)
			}
		}
		if active != b.opts.questions {
			return fmt.Errorf("form %s: %d active questions, want %d", b.ids[i], active, b.opts.questions)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if got := submitted.Load(); got != int64(b.opts.submissions) {
		return fmt.Errorf("%d submissions found across forms, want %d", got, b.opts.submissions)
	}
	fmt.Printf("  active sets OK, %d retired questions kept, %d submissions intact\n", retired.Load(), submitted.Load())
	return nil
}

// race shows what If-Match buys: without it concurrent updates can all
// commit and leave the union of their questions active.
func (b *bench) race(ctx context.Context) error {
	fmt.Printf("━━━ RACE (%d writers) ━━━\n", b.opts.raceWriters)
	for _, conditional := range []bool{false, true} {
		header := models.FormHeader{Title: "race"}
		form, err := b.forms.Create(ctx, header, questions(rand.New(rand.NewSource(1)), 1, "seed"))
		if err != nil {
			return err
		}
		current, err := b.forms.Get(ctx, form.ID)
		if err != nil {
			return err
		}
		var opts repository.UpdateOptions
		if conditional {
			opts.IfMatch = current.ETag
		}

		var wins, rejected atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < b.opts.raceWriters; w++ {
			w := w
			g.Go(func() error {
				_, err := b.forms.Update(gctx, form.ID, header, questions(rand.New(rand.NewSource(int64(w))), 1, fmt.Sprintf("w%d", w)), opts)
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, docstore.ErrPreconditionFailed), errors.Is(err, docstore.ErrConflict):
					rejected.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		after, err := b.forms.Get(ctx, form.ID)
		if err != nil {
			return err
		}
		fmt.Printf("  if-match=%-5t committed=%d rejected=%d active questions=%d\n",
			conditional, wins.Load(), rejected.Load(), len(after.Questions))
	}
	return nil
}

func (b *bench) parallel(ctx context.Context, n int, fn func(ctx context.Context, i int, rng *rand.Rand) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return fn(gctx, i, rand.New(rand.NewSource(int64(i))))
		})
	}
	return g.Wait()
}

func questions(rng *rand.Rand, n int, version string) []models.QuestionInput {
	out := make([]models.QuestionInput, n)
	for i := range out {
		typ := types[rng.Intn(len(types))]
		q := models.QuestionInput{Type: typ, Content: fmt.Sprintf("%s question %d", version, i)}
		if typ == "Dropdown" || typ == "MultipleChoice" {
			q.Choices = []string{"A", "B", "C"}
			q.AllowMultiple = typ == "MultipleChoice"
		}
		out[i] = q
	}
	return out
}
