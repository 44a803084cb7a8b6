package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/ailab/internal/agent"
	"github.com/ashureev/ailab/internal/catalog"
	"github.com/ashureev/ailab/internal/domain"
	"github.com/ashureev/ailab/internal/events"
	"github.com/ashureev/ailab/internal/formula"
	"github.com/ashureev/ailab/internal/generator"
	"github.com/ashureev/ailab/internal/report"
	"github.com/ashureev/ailab/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type captureReporter struct {
	mu   sync.Mutex
	docs []report.Document
}

func (r *captureReporter) Save(_ context.Context, doc report.Document) report.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return report.Result{Filename: doc.Filename, Path: "/tmp/" + doc.Filename, Saved: true}
}

type fixture struct {
	mgr      *Manager
	clock    *fakeClock
	events   *events.Recorder
	reporter *captureReporter
}

func newFixture(t *testing.T, gen generator.Generator) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	f := &fixture{
		clock:    &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		events:   &events.Recorder{},
		reporter: &captureReporter{},
	}
	f.mgr = NewManager(Deps{
		Catalog:   cat,
		Generator: gen,
		Reporter:  f.reporter,
		Publisher: f.events,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       f.clock.Now,
	})
	return f
}

func step(n int) *int { return &n }

func failing() generator.Generator {
	return generator.Func(func(context.Context, generator.Request) (string, error) {
		return "", fmt.Errorf("%w: upstream down", generator.ErrUnavailable)
	})
}

func TestStartUnknownScenario(t *testing.T) {
	f := newFixture(t, generator.NewStatic())

	_, err := f.mgr.Start(context.Background(), "cold_fusion", "Ana", "")
	require.ErrorIs(t, err, ErrScenarioNotFound)
	assert.Equal(t, 0, f.mgr.Len())
	assert.Empty(t, f.events.Events())
}

func TestStart(t *testing.T) {
	gen := generator.NewStatic().WithReply(domain.RolePartner, "Hi! Let's calibrate the pH meter first.")
	f := newFixture(t, gen)

	res, err := f.mgr.Start(context.Background(), "acid_base_titration", "Ana", "")
	require.NoError(t, err)

	assert.NotEmpty(t, res.Session.ID)
	assert.Equal(t, "Hi! Let's calibrate the pH meter first.", res.PartnerMessage)
	assert.Equal(t, 1, res.FirstStep.Number)
	assert.Equal(t, domain.SessionInProgress, res.Session.State)
	assert.Equal(t, 1, res.Session.CurrentStep)
	assert.Equal(t, "beginner", res.Session.Level)
	assert.True(t, f.mgr.Active(res.Session.ID))

	s, err := f.mgr.Get(res.Session.ID)
	require.NoError(t, err)
	transcript := s.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, domain.RoleStudent, transcript[0].Role)
	assert.Contains(t, transcript[0].Content, "Acid-Base Titration")
	assert.Equal(t, domain.RolePartner, transcript[1].Role)

	assert.Equal(t, []string{events.TypeStarted}, f.events.Types())
}

func TestSessionIDsAreUnique(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	seen := map[string]bool{}
	for range 20 {
		res, err := f.mgr.Start(context.Background(), "osmosis", "", "")
		require.NoError(t, err)
		assert.False(t, seen[res.Session.ID])
		seen[res.Session.ID] = true
	}
}

func TestInteractRunsFinalComputationOnce(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()

	start, err := f.mgr.Start(ctx, "hookes_law", "Ben", "")
	require.NoError(t, err)
	sid := start.Session.ID

	wantCurrent := []int{2, 3, 4}
	for i, want := range wantCurrent {
		res, err := f.mgr.Interact(ctx, InteractRequest{
			SessionID:  sid,
			ScenarioID: "hookes_law",
			Message:    fmt.Sprintf("step %d looks fine", i+1),
			Step:       step(i + 1),
		})
		require.NoError(t, err)
		assert.Nil(t, res.Computation, "step %d", i+1)
		assert.Equal(t, want, res.CurrentStep)
		assert.NotEmpty(t, res.PartnerMessage)
		assert.NotEmpty(t, res.MentorGuidance)
	}

	res, err := f.mgr.Interact(ctx, InteractRequest{SessionID: sid, ScenarioID: "hookes_law", Message: "done measuring", Step: step(4)})
	require.NoError(t, err)
	require.NotNil(t, res.Computation)
	assert.Equal(t, formula.IDHookesLaw, res.Computation.Formula)
	assert.InDelta(t, 30.0, res.Computation.Value(), 1e-9)
	assert.Equal(t, 4, res.CurrentStep)
	assert.InDelta(t, 100.0, res.Progress, 1e-9)

	again, err := f.mgr.Interact(ctx, InteractRequest{SessionID: sid, ScenarioID: "hookes_law", Message: "one more look", Step: step(4)})
	require.NoError(t, err)
	assert.Nil(t, again.Computation)

	s, err := f.mgr.Get(sid)
	require.NoError(t, err)
	assert.Len(t, s.Computations(), 1)
	assert.True(t, s.Info().Computed)
}

func TestInteractDefaultsToCurrentStep(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()

	start, err := f.mgr.Start(ctx, "osmosis", "", "")
	require.NoError(t, err)

	res, err := f.mgr.Interact(ctx, InteractRequest{SessionID: start.Session.ID, ScenarioID: "osmosis", Message: "ready"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Step.Number)
	assert.Equal(t, 2, res.CurrentStep)
}

func TestInteractOutOfRangeStepUsesFirstStep(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()

	start, err := f.mgr.Start(ctx, "acid_base_titration", "", "")
	require.NoError(t, err)

	for _, n := range []int{0, -3, 99} {
		res, err := f.mgr.Interact(ctx, InteractRequest{SessionID: start.Session.ID, ScenarioID: "acid_base_titration", Message: "hm", Step: step(n)})
		require.NoError(t, err, "step %d", n)
		assert.Equal(t, 1, res.Step.Number)
		assert.Nil(t, res.Computation)
		assert.Equal(t, 2, res.CurrentStep)
	}
}

func TestInteractNeverMovesBackwards(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()

	start, err := f.mgr.Start(ctx, "osmosis", "", "")
	require.NoError(t, err)
	sid := start.Session.ID

	_, err = f.mgr.Interact(ctx, InteractRequest{SessionID: sid, ScenarioID: "osmosis", Message: "skip", Step: step(3)})
	require.NoError(t, err)
	res, err := f.mgr.Interact(ctx, InteractRequest{SessionID: sid, ScenarioID: "osmosis", Message: "back", Step: step(1)})
	require.NoError(t, err)
	assert.Equal(t, 4, res.CurrentStep)
}

func TestInteractErrors(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()

	start, err := f.mgr.Start(ctx, "osmosis", "", "")
	require.NoError(t, err)

	_, err = f.mgr.Interact(ctx, InteractRequest{SessionID: "missing", ScenarioID: "osmosis", Message: "x"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.mgr.Interact(ctx, InteractRequest{SessionID: start.Session.ID, ScenarioID: "nope", Message: "x"})
	assert.ErrorIs(t, err, ErrScenarioNotFound)

	_, err = f.mgr.Interact(ctx, InteractRequest{SessionID: start.Session.ID, ScenarioID: "hookes_law", Message: "x"})
	assert.ErrorIs(t, err, ErrScenarioMismatch)

	s, err := f.mgr.Get(start.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Info().CurrentStep)
	assert.Len(t, s.Transcript(), 2)
}

func TestCompleteWritesReport(t *testing.T) {
	gen := generator.NewStatic().WithReply(domain.RoleEvaluator, "Solid work on the spring constant.")
	f := newFixture(t, gen)
	ctx := context.Background()

	start, err := f.mgr.Start(ctx, "hookes_law", "Cleo", "")
	require.NoError(t, err)
	sid := start.Session.ID
	_, err = f.mgr.Interact(ctx, InteractRequest{SessionID: sid, ScenarioID: "hookes_law", Message: "the spring stretched 5 cm under 1 N", Step: step(4)})
	require.NoError(t, err)

	res, err := f.mgr.Complete(ctx, sid, "hookes_law")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "Solid work on the spring constant.", res.EvaluatorFeedback)
	assert.True(t, res.Report.Saved)
	assert.Equal(t, 6, res.MessageCount)

	require.Len(t, f.reporter.docs, 1)
	doc := f.reporter.docs[0]
	assert.Equal(t, sid, doc.SessionID)
	assert.Contains(t, doc.Filename, sid)
	assert.Contains(t, doc.Markdown, "Solid work on the spring constant.")
	assert.Contains(t, doc.Markdown, "Cleo")
	assert.Equal(t, 6, doc.MessageCount)

	s, err := f.mgr.Get(sid)
	require.NoError(t, err)
	transcript := s.Transcript()
	require.Len(t, transcript, 6)
	for i := 1; i < len(transcript); i++ {
		assert.Less(t, transcript[i-1].Seq, transcript[i].Seq)
	}
	assert.Equal(t, domain.RoleEvaluator, transcript[5].Role)
	assert.False(t, f.mgr.Active(sid))

	assert.Equal(t, []string{events.TypeStarted, events.TypeInteracted, events.TypeCompleted}, f.events.Types())
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()

	start, err := f.mgr.Start(ctx, "osmosis", "", "")
	require.NoError(t, err)

	first, err := f.mgr.Complete(ctx, start.Session.ID, "osmosis")
	require.NoError(t, err)
	second, err := f.mgr.Complete(ctx, start.Session.ID, "osmosis")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, f.reporter.docs, 1)

	_, err = f.mgr.Interact(ctx, InteractRequest{SessionID: start.Session.ID, ScenarioID: "osmosis", Message: "late"})
	assert.ErrorIs(t, err, ErrSessionCompleted)
}

func TestCompleteMismatch(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()

	start, err := f.mgr.Start(ctx, "osmosis", "", "")
	require.NoError(t, err)

	_, err = f.mgr.Complete(ctx, start.Session.ID, "hookes_law")
	assert.ErrorIs(t, err, ErrScenarioMismatch)
	assert.True(t, f.mgr.Active(start.Session.ID))
}

func TestFailingGeneratorUsesFallbacks(t *testing.T) {
	f := newFixture(t, failing())
	ctx := context.Background()
	personas := agent.DefaultPersonas()

	start, err := f.mgr.Start(ctx, "acid_base_titration", "", "")
	require.NoError(t, err)
	assert.Equal(t, personas.Partner.Fallback, start.PartnerMessage)

	res, err := f.mgr.Interact(ctx, InteractRequest{SessionID: start.Session.ID, ScenarioID: "acid_base_titration", Message: "the solution turned pink", Step: step(4)})
	require.NoError(t, err)
	assert.Equal(t, personas.Partner.Fallback, res.PartnerMessage)
	assert.Equal(t, personas.Mentor.Fallback, res.MentorGuidance)
	require.NotNil(t, res.Computation)
	assert.Equal(t, formula.IDTitration, res.Computation.Formula)

	done, err := f.mgr.Complete(ctx, start.Session.ID, "acid_base_titration")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, personas.Evaluator.Fallback, done.EvaluatorFeedback)

	s, err := f.mgr.Get(start.Session.ID)
	require.NoError(t, err)
	for _, msg := range s.Transcript() {
		if msg.Role != domain.RoleStudent {
			assert.True(t, msg.IsFallback(), "seq %d", msg.Seq)
		}
	}
}

func brokenMentor(broken *atomic.Bool) generator.Generator {
	static := generator.NewStatic()
	return generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		if req.Role == domain.RoleMentor && broken.Load() {
			panic("mentor backend blew up")
		}
		return static.Generate(ctx, req)
	})
}

func TestInteractFailureCommitsNothing(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	var broken atomic.Bool
	broken.Store(true)
	hub := stream.NewHub(50)
	recorder := &events.Recorder{}
	mgr := NewManager(Deps{
		Catalog:   cat,
		Generator: brokenMentor(&broken),
		Publisher: recorder,
		Stream:    hub,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ctx := context.Background()

	start, err := mgr.Start(ctx, "hookes_law", "", "")
	require.NoError(t, err)
	sid := start.Session.ID
	s, err := mgr.Get(sid)
	require.NoError(t, err)
	before := s.Transcript()
	observations := s.partner.Observations()

	_, err = mgr.Interact(ctx, InteractRequest{SessionID: sid, ScenarioID: "hookes_law", Message: "the spring stretched a lot", Step: step(2)})
	require.ErrorIs(t, err, ErrInteractionFailed)
	assert.Contains(t, err.Error(), "mentor backend blew up")

	info := s.Info()
	assert.Equal(t, 1, info.CurrentStep)
	assert.False(t, info.Computed)
	assert.Len(t, s.Transcript(), len(before))
	assert.Equal(t, observations, s.partner.Observations())
	assert.Equal(t, 0, s.partner.WhatIfCount())
	assert.NotContains(t, recorder.Types(), events.TypeInteracted)

	replay, sub := hub.Subscribe(sid, 0)
	assert.Len(t, replay, len(before))
	hub.Unsubscribe(sub)

	broken.Store(false)
	res, err := mgr.Interact(ctx, InteractRequest{SessionID: sid, ScenarioID: "hookes_law", Message: "the spring stretched a lot", Step: step(2)})
	require.NoError(t, err)
	assert.Equal(t, 3, res.CurrentStep)
	assert.Len(t, s.Transcript(), len(before)+3)
	assert.Len(t, s.partner.Observations(), len(observations)+1)
	assert.Equal(t, 1, s.partner.WhatIfCount())
}

func TestInteractComputationErrorCommitsNothing(t *testing.T) {
	saved := finalComputations["osmosis"]
	finalComputations["osmosis"] = func() (domain.ComputationResult, error) {
		return domain.ComputationResult{Formula: formula.IDOsmosis}, fmt.Errorf("%w: negative temperature", formula.ErrInvalidInput)
	}
	t.Cleanup(func() { finalComputations["osmosis"] = saved })

	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()
	start, err := f.mgr.Start(ctx, "osmosis", "", "")
	require.NoError(t, err)
	s, err := f.mgr.Get(start.Session.ID)
	require.NoError(t, err)

	_, err = f.mgr.Interact(ctx, InteractRequest{SessionID: start.Session.ID, ScenarioID: "osmosis", Message: "final weighing", Step: step(4)})
	require.ErrorIs(t, err, ErrInteractionFailed)

	info := s.Info()
	assert.Equal(t, 1, info.CurrentStep)
	assert.False(t, info.Computed)
	assert.Empty(t, s.Computations())
	assert.Len(t, s.Transcript(), 2)
}

func TestSweep(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()
	retention := Retention{Idle: 30 * time.Minute, Completed: 10 * time.Minute}

	idle, err := f.mgr.Start(ctx, "osmosis", "", "")
	require.NoError(t, err)
	done, err := f.mgr.Start(ctx, "hookes_law", "", "")
	require.NoError(t, err)
	_, err = f.mgr.Complete(ctx, done.Session.ID, "hookes_law")
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	assert.Equal(t, 0, f.mgr.Sweep(ctx, retention, nil))

	f.clock.Advance(6 * time.Minute)
	var evicted []string
	assert.Equal(t, 1, f.mgr.Sweep(ctx, retention, func(info domain.SessionInfo) { evicted = append(evicted, info.ID) }))
	assert.Equal(t, []string{done.Session.ID}, evicted)

	f.clock.Advance(20 * time.Minute)
	assert.Equal(t, 1, f.mgr.Sweep(ctx, retention, nil))
	assert.Equal(t, 0, f.mgr.Len())

	_, err = f.mgr.Interact(ctx, InteractRequest{SessionID: idle.Session.ID, ScenarioID: "osmosis", Message: "hello?"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Contains(t, f.events.Types(), events.TypeEvicted)
}

func TestSweepDisabled(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()

	_, err := f.mgr.Start(ctx, "osmosis", "", "")
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)
	assert.Equal(t, 0, f.mgr.Sweep(ctx, Retention{}, nil))
	assert.Equal(t, 1, f.mgr.Len())
}

func TestSweepSkipsSessionActiveDuringSweep(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()

	start, err := f.mgr.Start(ctx, "osmosis", "", "")
	require.NoError(t, err)
	s, err := f.mgr.Get(start.Session.ID)
	require.NoError(t, err)
	f.clock.Advance(45 * time.Minute)

	s.mu.Lock()
	done := make(chan int)
	go func() { done <- f.mgr.Sweep(ctx, Retention{Idle: 30 * time.Minute}, nil) }()
	s.lastActive = f.clock.Now()
	s.mu.Unlock()

	assert.Equal(t, 0, <-done)
	assert.Equal(t, 1, f.mgr.Len())
	_, err = f.mgr.Interact(ctx, InteractRequest{SessionID: start.Session.ID, ScenarioID: "osmosis", Message: "still here"})
	assert.NoError(t, err)
}

func TestEvictedSessionRejectsPendingOperations(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()

	start, err := f.mgr.Start(ctx, "osmosis", "", "")
	require.NoError(t, err)
	s, err := f.mgr.Get(start.Session.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	_, ok := s.expire(f.clock.Now(), Retention{Idle: 30 * time.Minute})
	require.True(t, ok)
	_, ok = s.expire(f.clock.Now(), Retention{Idle: 30 * time.Minute})
	assert.False(t, ok)

	_, err = f.mgr.Interact(ctx, InteractRequest{SessionID: start.Session.ID, ScenarioID: "osmosis", Message: "hello?"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.mgr.Complete(ctx, start.Session.ID, "osmosis")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestConcurrentSessions(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start, err := f.mgr.Start(ctx, "hookes_law", fmt.Sprintf("student-%d", i), "")
			if err != nil {
				errs <- err
				return
			}
			for n := 1; n <= 4; n++ {
				if _, err := f.mgr.Interact(ctx, InteractRequest{SessionID: start.Session.ID, ScenarioID: "hookes_law", Message: "go", Step: step(n)}); err != nil {
					errs <- err
					return
				}
			}
			if _, err := f.mgr.Complete(ctx, start.Session.ID, "hookes_law"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 16, f.mgr.Len())
	assert.Len(t, f.reporter.docs, 16)
}

func TestConcurrentInteractsOnOneSession(t *testing.T) {
	f := newFixture(t, generator.NewStatic())
	ctx := context.Background()

	start, err := f.mgr.Start(ctx, "osmosis", "", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	computed := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.mgr.Interact(ctx, InteractRequest{SessionID: start.Session.ID, ScenarioID: "osmosis", Message: "final", Step: step(4)})
			if !assert.NoError(t, err) {
				return
			}
			if res.Computation != nil {
				mu.Lock()
				computed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, computed)

	s, err := f.mgr.Get(start.Session.ID)
	require.NoError(t, err)
	assert.Len(t, s.Transcript(), 2+8*3)
}

func TestMergeBySeq(t *testing.T) {
	a := []domain.AgentMessage{{Seq: 1}, {Seq: 4}, {Seq: 5}}
	b := []domain.AgentMessage{{Seq: 2}, {Seq: 6}}
	c := []domain.AgentMessage{{Seq: 3}}

	merged := mergeBySeq(a, b, c)
	require.Len(t, merged, 6)
	for i, m := range merged {
		assert.Equal(t, int64(i+1), m.Seq)
	}
	assert.Empty(t, mergeBySeq(nil, nil))
}

func TestErrorsAreDistinct(t *testing.T) {
	all := []error{ErrScenarioNotFound, ErrSessionNotFound, ErrScenarioMismatch, ErrSessionCompleted, ErrInteractionFailed}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b))
			}
		}
	}
}

func TestStreamReceivesSessionMessages(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	hub := stream.NewHub(50)
	mgr := NewManager(Deps{
		Catalog:   cat,
		Generator: generator.NewStatic(),
		Stream:    hub,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ctx := context.Background()

	start, err := mgr.Start(ctx, "osmosis", "", "")
	require.NoError(t, err)
	sid := start.Session.ID

	replay, sub := hub.Subscribe(sid, 0)
	require.Len(t, replay, 2)
	assert.Equal(t, int64(1), replay[0].Seq)

	_, err = mgr.Interact(ctx, InteractRequest{SessionID: sid, ScenarioID: "osmosis", Message: "bags are swelling"})
	require.NoError(t, err)

	var roles []domain.Role
	for range 3 {
		select {
		case msg := <-sub.C:
			roles = append(roles, msg.Role)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for streamed message")
		}
	}
	assert.Equal(t, []domain.Role{domain.RoleStudent, domain.RolePartner, domain.RoleMentor}, roles)

	_, err = mgr.Complete(ctx, sid, "osmosis")
	require.NoError(t, err)
	for range sub.C {
	}
	assert.Equal(t, 0, hub.Subscribers(sid))
}
