package poller

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/franckalain/foodanalysis/internal/logger"
	"github.com/franckalain/foodanalysis/internal/models"
	"github.com/franckalain/foodanalysis/internal/store"
)

type event struct {
	kind   string
	id     int64
	text   string
	detail string
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) add(e event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) Status(text, detail string) {
	r.add(event{kind: "status", text: text, detail: detail})
}
func (r *recorder) Processing(rec *models.AnalysisRecord) { r.add(event{kind: "processing", id: rec.ID}) }
func (r *recorder) Show(rec *models.AnalysisRecord)       { r.add(event{kind: "show", id: rec.ID}) }
func (r *recorder) Hide()                                 { r.add(event{kind: "hide"}) }

func (r *recorder) kinds(kind string) []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event
	for _, e := range r.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) shown() []int64 {
	var ids []int64
	for _, e := range r.kinds("show") {
		ids = append(ids, e.id)
	}
	return ids
}

func (r *recorder) hasStatus(text, detail string) bool {
	for _, e := range r.kinds("status") {
		if e.text == text && e.detail == detail {
			return true
		}
	}
	return false
}

func (r *recorder) lastStatus() event {
	st := r.kinds("status")
	if len(st) == 0 {
		return event{}
	}
	return st[len(st)-1]
}

type errFetcher struct{}

func (errFetcher) Latest(context.Context) (*models.AnalysisRecord, error) {
	return nil, errors.New("connection refused")
}

func fastConfig(policy Policy) Config {
	return Config{
		Interval:        10 * time.Millisecond,
		QueryTimeout:    100 * time.Millisecond,
		ProcessingDelay: 20 * time.Millisecond,
		DisplayDuration: 80 * time.Millisecond,
		Policy:          policy,
	}
}

func start(t *testing.T, p *Poller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Error("poller did not stop")
		}
	})
}

func set(t *testing.T, st store.Store, id int64) {
	t.Helper()
	require.NoError(t, st.Set(context.Background(), &models.AnalysisRecord{
		ID:          id,
		WeightGrams: 185,
		Analysis:    models.Analysis{FoodType: "Apple", Confidence: 0.85},
		Timestamp:   time.Now().UTC(),
	}))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEmptyStoreShowsReady(t *testing.T) {
	rec := &recorder{}
	p := New(store.NewMemory(), rec, fastConfig(PolicyIgnore), logger.Discard())
	start(t, p)

	require.Eventually(t, func() bool { return rec.hasStatus(StatusReady, DetailNoRecent) },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, StateIdle, p.State())
	assert.Empty(t, rec.shown())
}

func TestQueryErrorShowsConnectionError(t *testing.T) {
	rec := &recorder{}
	p := New(errFetcher{}, rec, fastConfig(PolicyIgnore), logger.Discard())
	start(t, p)

	require.Eventually(t, func() bool { return rec.lastStatus().text == StatusError },
		time.Second, 5*time.Millisecond)
}

func TestDisplayCycle(t *testing.T) {
	st := store.NewMemory()
	set(t, st, 100)

	rec := &recorder{}
	p := New(st, rec, fastConfig(PolicyIgnore), logger.Discard())
	start(t, p)

	require.Eventually(t, func() bool { return len(rec.kinds("hide")) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return rec.hasStatus(StatusReady, DetailNextReady) }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []int64{100}, rec.shown())
	assert.True(t, rec.hasStatus(StatusProcessing, DetailInProgress))

	// Order: processing, then show, then hide.
	rec.mu.Lock()
	var order []string
	for _, e := range rec.events {
		if e.kind != "status" {
			order = append(order, e.kind)
		}
	}
	rec.mu.Unlock()
	assert.Equal(t, []string{"processing", "show", "hide"}, order[:3])

	id, ok := p.LastID()
	assert.True(t, ok)
	assert.Equal(t, int64(100), id)
}

func TestSameIDIsNotRedisplayed(t *testing.T) {
	st := store.NewMemory()
	set(t, st, 7)

	rec := &recorder{}
	p := New(st, rec, fastConfig(PolicyIgnore), logger.Discard())
	start(t, p)

	require.Eventually(t, func() bool { return len(rec.kinds("hide")) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return p.State() == StateWaiting }, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []int64{7}, rec.shown())
}

func TestIgnorePolicyDefersNewerRecord(t *testing.T) {
	st := store.NewMemory()
	set(t, st, 1)

	cfg := fastConfig(PolicyIgnore)
	cfg.DisplayDuration = 200 * time.Millisecond
	rec := &recorder{}
	p := New(st, rec, cfg, logger.Discard())
	start(t, p)

	require.Eventually(t, func() bool { return p.State() == StateDisplaying }, time.Second, 5*time.Millisecond)
	set(t, st, 2)
	p.Trigger()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []int64{1}, rec.shown(), "newer record must wait for the display window")

	require.Eventually(t, func() bool { return len(rec.shown()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{1, 2}, rec.shown())
	assert.GreaterOrEqual(t, len(rec.kinds("hide")), 1)
}

func TestPreemptPolicyRestartsCycle(t *testing.T) {
	st := store.NewMemory()
	set(t, st, 1)

	cfg := fastConfig(PolicyPreempt)
	cfg.DisplayDuration = 5 * time.Second
	rec := &recorder{}
	p := New(st, rec, cfg, logger.Discard())
	start(t, p)

	require.Eventually(t, func() bool { return p.State() == StateDisplaying }, time.Second, 5*time.Millisecond)
	set(t, st, 2)

	require.Eventually(t, func() bool { return len(rec.shown()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{1, 2}, rec.shown())
	assert.Empty(t, rec.kinds("hide"))
}

func TestTriggerDoesNotBlock(t *testing.T) {
	p := New(store.NewMemory(), &recorder{}, fastConfig(PolicyIgnore), logger.Discard())
	for i := 0; i < 10; i++ {
		p.Trigger()
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyIgnore, "ignore": PolicyIgnore, "preempt": PolicyPreempt} {
		got, err := ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePolicy("sometimes")
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 2*time.Second, cfg.ProcessingDelay)
	assert.Equal(t, 30*time.Second, cfg.DisplayDuration)
	assert.Equal(t, PolicyIgnore, cfg.Policy)
	assert.Equal(t, DefaultConfig(), cfg)

	custom := Config{Interval: time.Second, Policy: PolicyPreempt}.withDefaults()
	assert.Equal(t, time.Second, custom.Interval)
	assert.Equal(t, PolicyPreempt, custom.Policy)
	assert.Equal(t, 30*time.Second, custom.DisplayDuration)
	assert.Equal(t, "displaying", StateDisplaying.String())
}

func TestTextRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf, "http://localhost:3000/")

	r.Status(StatusReady, DetailNoRecent)
	r.Status(StatusReady, DetailNoRecent)
	r.Show(&models.AnalysisRecord{
		ID:          5,
		WeightGrams: 185,
		Image:       models.ImageInfo{OriginalName: "apple.jpg", ServedPath: "/uploads/foodImage-1.jpg"},
		Analysis: models.Analysis{
			FoodType:          "Apple",
			Confidence:        0.85,
			Nutrition:         models.Nutrition{Calories: 96, Protein: 1, Carbs: 26, Fat: 0, Fiber: 4},
			HealthSuggestions: []string{"Eat the skin"},
		},
	})
	r.Hide()

	out := buf.String()
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(DetailNoRecent)))
	assert.Contains(t, out, "Food Type:  Apple")
	assert.Contains(t, out, "Confidence: 85.0%")
	assert.Contains(t, out, "http://localhost:3000/uploads/foodImage-1.jpg")
	assert.Contains(t, out, "Calories 96")
	assert.Contains(t, out, "- Eat the skin")
	assert.Contains(t, out, "(results cleared)")
}
