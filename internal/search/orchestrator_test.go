package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"resident-matcher/internal/diagnostic"
	"resident-matcher/internal/match"
	"resident-matcher/internal/resident"
)

const residentsJSON = `{
	"success": true,
	"data": [
		{"id": 1, "name": "João Silva", "apartment": "101", "block": "B"},
		{"id": 2, "name": "Joana Silva", "apartment": "102"},
		{"id": 3, "name": "Maria Oliveira", "block": "C"},
		{"id": 4, "name": "Joao Silva Santos"},
		{"id": 5, "name": "JOAO SILVA", "apartment": "305", "block": "D"}
	]
}`

// countingDirectory wraps a Directory and counts fetches.
type countingDirectory struct {
	resident.Directory
	calls atomic.Int32
}

func (d *countingDirectory) Residents(ctx context.Context) ([]resident.Record, error) {
	d.calls.Add(1)
	return d.Directory.Residents(ctx)
}

// switchDirectory fails while err is set.
type switchDirectory struct {
	mu      sync.Mutex
	err     error
	records []resident.Record
}

func (d *switchDirectory) set(records []resident.Record, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records, d.err = records, err
}

func (d *switchDirectory) Residents(context.Context) ([]resident.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.records, d.err
}

// gatedDirectory blocks every fetch until the test sends its records.
type gatedDirectory struct {
	calls chan chan []resident.Record
}

func (d *gatedDirectory) Residents(ctx context.Context) ([]resident.Record, error) {
	gate := make(chan []resident.Record)
	d.calls <- gate

	select {
	case records := <-gate:
		return records, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// stateRecorder collects State transitions from the hook.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) loading() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]bool, len(r.states))
	for i, s := range r.states {
		out[i] = s.Loading
	}

	return out
}

func serve(t *testing.T, handler http.HandlerFunc) (*httptest.Server, resident.Endpoint) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return srv, resident.Endpoint{Host: u.Hostname(), Port: port}
}

func ids(candidates match.CandidateList) []resident.ID {
	out := make([]resident.ID, len(candidates))
	for i, c := range candidates {
		out[i] = c.ID
	}

	return out
}

func TestSearch_HTTP(t *testing.T) {
	var hits atomic.Int32

	_, endpoint := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(residentsJSON))
	})

	o := New(resident.NewHTTPDirectory(endpoint, time.Second, nil))

	res := o.Search(context.Background(), []string{"JOAO SILVA", "maria 0liveira"})

	require.NoError(t, res.Err)
	assert.Equal(t, int32(1), hits.Load(), "directory is fetched once per search")
	require.Equal(t, []resident.ID{"1", "5", "3", "4"}, ids(res.Candidates), spew.Sdump(res.Candidates))

	similarities := make([]int, len(res.Candidates))
	for i, c := range res.Candidates {
		similarities[i] = c.Similarity
	}

	assert.Equal(t, []int{100, 100, 75, 67}, similarities)
	assert.Equal(t, "101", res.Candidates[0].Apartment)
	assert.Equal(t, resident.DefaultApartment, res.Candidates[3].Apartment)
	assert.NotZero(t, res.Seq)
	assert.Empty(t, res.Message())

	state := o.State()
	assert.False(t, state.Loading)
	assert.Empty(t, state.Error)
	assert.Equal(t, res.Candidates, state.Candidates)
}

func TestSearch_EmptyQueries(t *testing.T) {
	dir := &countingDirectory{Directory: resident.NewStaticDirectory(nil)}
	rec := &stateRecorder{}

	o := New(dir, WithStateHook(rec.record))

	for _, queries := range [][]string{nil, {}} {
		res := o.Search(context.Background(), queries)

		require.NoError(t, res.Err)
		require.NotNil(t, res.Candidates)
		assert.Empty(t, res.Candidates)
		assert.Zero(t, res.Seq)
	}

	assert.Equal(t, int32(0), dir.calls.Load())
	assert.Empty(t, rec.loading(), "loading never becomes true")
	assert.False(t, o.State().Loading)
}

func TestSearch_HTTP500(t *testing.T) {
	_, endpoint := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	rec := &stateRecorder{}
	o := New(resident.NewHTTPDirectory(endpoint, time.Second, nil), WithStateHook(rec.record))

	res := o.Search(context.Background(), []string{"Joao Silva"})

	assert.Empty(t, res.Candidates)
	assert.ErrorIs(t, res.Err, diagnostic.ErrTransport)
	assert.Equal(t, "Resident directory returned HTTP 500", res.Message())

	assert.Equal(t, []bool{true, false}, rec.loading())

	state := o.State()
	assert.False(t, state.Loading)
	assert.Equal(t, "Resident directory returned HTTP 500", state.Error)
	assert.Empty(t, state.Candidates)
}

func TestSearch_InvalidPayload(t *testing.T) {
	bodies := []string{
		`{"success": false, "data": []}`,
		`{"success": true, "data": {"id": 1}}`,
		`not json`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			_, endpoint := serve(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			res := New(resident.NewHTTPDirectory(endpoint, time.Second, nil)).
				Search(context.Background(), []string{"Joao Silva"})

			assert.Empty(t, res.Candidates)
			assert.ErrorIs(t, res.Err, diagnostic.ErrTransport)
		})
	}
}

func TestSearch_NotConfigured(t *testing.T) {
	tests := []struct {
		name      string
		directory resident.Directory
	}{
		{"no host", resident.NewHTTPDirectory(resident.Endpoint{Port: 3000}, time.Second, nil)},
		{"no directory", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(tt.directory)

			res := o.Search(context.Background(), []string{"Joao Silva"})

			assert.Empty(t, res.Candidates)
			assert.ErrorIs(t, res.Err, diagnostic.ErrConfiguration)
			assert.Equal(t, "Resident directory is not configured", o.State().Error)
			assert.False(t, o.State().Loading)
		})
	}
}

func TestSearch_UnclassifiedDirectoryError(t *testing.T) {
	dir := &switchDirectory{}
	dir.set(nil, errors.New("disk on fire"))

	res := New(dir).Search(context.Background(), []string{"Joao Silva"})

	assert.ErrorIs(t, res.Err, diagnostic.ErrTransport)
	assert.Equal(t, "Could not load the resident directory", res.Message())
}

func TestSearch_ErrorClearedOnSuccess(t *testing.T) {
	dir := &switchDirectory{}
	dir.set(nil, diagnostic.Transport("fetch residents", "Resident directory returned HTTP 503", nil))

	o := New(dir)

	res := o.Search(context.Background(), []string{"Ana Souza"})
	require.Error(t, res.Err)
	assert.Equal(t, "Resident directory returned HTTP 503", o.State().Error)

	dir.set([]resident.Record{{ID: "9", Name: "Ana Souza"}}, nil)

	res = o.Search(context.Background(), []string{"Ana Souza"})
	require.NoError(t, res.Err)

	state := o.State()
	assert.Empty(t, state.Error)
	assert.Equal(t, []resident.ID{"9"}, ids(state.Candidates))
}

func TestSearch_NoMatchIsNotAnError(t *testing.T) {
	dir := resident.NewStaticDirectory([]resident.Record{{ID: "1", Name: "Maria Oliveira"}})

	o := New(dir)
	res := o.Search(context.Background(), []string{"Joao", "xx"})

	require.NoError(t, res.Err)
	assert.NotNil(t, res.Candidates)
	assert.Empty(t, res.Candidates)
	assert.Empty(t, o.State().Error)
}

func TestSearch_LogsBestCandidate(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	dir := resident.NewStaticDirectory([]resident.Record{
		{ID: "1", Name: "Joao Silva"},
		{ID: "2", Name: "JOAO SILVA"},
	})

	res := New(dir, WithLogger(zap.New(core))).Search(context.Background(), []string{"joao silva"})
	require.NoError(t, res.Err)

	finished := logs.FilterMessage("search finished").All()
	require.Len(t, finished, 1)

	fields := finished[0].ContextMap()
	assert.Equal(t, "1", fields["best"])
	assert.Equal(t, int64(100), fields["similarity"])
	assert.Equal(t, true, fields["ambiguous"])
	assert.Equal(t, int64(2), fields["candidates"])
}

func TestSearch_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	res := New(nil, WithLogger(zap.New(core))).Search(context.Background(), []string{"joao"})
	require.Error(t, res.Err)

	failures := logs.FilterMessage("search failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "Resident directory is not configured", failures[0].ContextMap()["message"])
	assert.Equal(t, "Configuration", failures[0].ContextMap()["kind"])
}

func TestSearch_DedupAcrossQueries(t *testing.T) {
	dir := resident.NewStaticDirectory([]resident.Record{
		{ID: "1", Name: "Joao Silva"},
		{ID: "2", Name: "Joao Silva Santos"},
	})

	res := New(dir).Search(context.Background(), []string{"Joao Silva Santos", "JOAO SILVA", "joao silva"})

	require.NoError(t, res.Err)

	// Query 1 sees resident 1 at 67 first; that occurrence is kept
	assert.Equal(t, []resident.ID{"2", "1"}, ids(res.Candidates))
	assert.Equal(t, []int{100, 67}, []int{res.Candidates[0].Similarity, res.Candidates[1].Similarity})
}

func TestSearch_Cap(t *testing.T) {
	records := make([]resident.Record, 8)
	for i := range records {
		records[i] = resident.Record{ID: resident.ID(fmt.Sprint(i)), Name: "Ana Souza"}
	}

	res := New(resident.NewStaticDirectory(records)).Search(context.Background(), []string{"Ana Souza", "ANA SOUZA"})

	require.NoError(t, res.Err)
	assert.Equal(t, []resident.ID{"0", "1", "2", "3", "4"}, ids(res.Candidates))
}

func TestSearch_Options(t *testing.T) {
	dir := resident.NewStaticDirectory([]resident.Record{
		{ID: "1", Name: "Anabela Ana"},
		{ID: "2", Name: "Ana"},
		{ID: "3", Name: "Ana Maria"},
	})

	o := New(dir, WithOptions(match.Options{Threshold: 50, MaxResults: 2, Policy: match.PolicyBestMatch}))

	res := o.Search(context.Background(), []string{"Ana"})

	require.NoError(t, res.Err)
	assert.Equal(t, []resident.ID{"2", "1"}, ids(res.Candidates), spew.Sdump(res.Candidates))
}

func TestSearch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := resident.NewStaticDirectory([]resident.Record{{ID: "1", Name: "Ana Souza"}})

	res := New(dir).Search(ctx, []string{"Ana Souza"})

	assert.Empty(t, res.Candidates)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.ErrorIs(t, res.Err, diagnostic.ErrTransport)
}

func TestSearch_LastStartedCallWins(t *testing.T) {
	dir := &gatedDirectory{calls: make(chan chan []resident.Record)}
	o := New(dir)

	ctx := context.Background()

	first := make(chan Result, 1)
	go func() { first <- o.Search(ctx, []string{"Joao Silva"}) }()
	gateFirst := <-dir.calls

	assert.True(t, o.State().Loading)

	second := make(chan Result, 1)
	go func() { second <- o.Search(ctx, []string{"Maria Oliveira"}) }()
	gateSecond := <-dir.calls

	// The later call finishes first and owns the state
	gateSecond <- []resident.Record{{ID: "3", Name: "Maria Oliveira"}}
	resSecond := <-second
	require.NoError(t, resSecond.Err)

	state := o.State()
	assert.False(t, state.Loading)
	assert.Equal(t, []resident.ID{"3"}, ids(state.Candidates))

	// The earlier call still returns its own result but does not overwrite the state
	gateFirst <- []resident.Record{{ID: "1", Name: "Joao Silva"}}
	resFirst := <-first
	require.NoError(t, resFirst.Err)
	assert.Equal(t, []resident.ID{"1"}, ids(resFirst.Candidates))
	assert.Less(t, resFirst.Seq, resSecond.Seq)

	state = o.State()
	assert.False(t, state.Loading)
	assert.Equal(t, []resident.ID{"3"}, ids(state.Candidates))
}

func TestSearch_EarlierCallKeepsLoadingUntilLatestFinishes(t *testing.T) {
	dir := &gatedDirectory{calls: make(chan chan []resident.Record)}
	o := New(dir)

	ctx := context.Background()

	first := make(chan Result, 1)
	go func() { first <- o.Search(ctx, []string{"Joao Silva"}) }()
	gateFirst := <-dir.calls

	second := make(chan Result, 1)
	go func() { second <- o.Search(ctx, []string{"Maria Oliveira"}) }()
	gateSecond := <-dir.calls

	gateFirst <- nil
	<-first

	assert.True(t, o.State().Loading, "the latest call is still in flight")

	gateSecond <- nil
	<-second

	assert.False(t, o.State().Loading)
}

func TestSearch_HookReadsStateWhileAnotherSearchStarts(t *testing.T) {
	dir := &gatedDirectory{calls: make(chan chan []resident.Record)}

	var (
		o        *Orchestrator
		recorder stateRecorder
		once     sync.Once
	)

	hookEntered := make(chan struct{})
	secondFetching := make(chan struct{})

	o = New(dir, WithStateHook(func(s State) {
		recorder.record(s)

		once.Do(func() {
			close(hookEntered)
			<-secondFetching
			assert.True(t, o.State().Loading)
		})
	}))

	ctx := context.Background()

	first := make(chan Result, 1)
	go func() { first <- o.Search(ctx, []string{"Joao Silva"}) }()
	<-hookEntered

	second := make(chan Result, 1)
	go func() { second <- o.Search(ctx, []string{"Maria Oliveira"}) }()

	// The second call reaches the directory while the first is still inside the hook
	gateSecond := <-dir.calls
	close(secondFetching)

	gateFirst := <-dir.calls

	gateSecond <- []resident.Record{{ID: "3", Name: "Maria Oliveira"}}
	gateFirst <- []resident.Record{{ID: "1", Name: "Joao Silva"}}

	for _, ch := range []chan Result{first, second} {
		select {
		case res := <-ch:
			require.NoError(t, res.Err)
		case <-time.After(2 * time.Second):
			t.Fatal("search did not return")
		}
	}

	assert.Equal(t, []bool{true, true, false}, recorder.loading())
	assert.Equal(t, []resident.ID{"3"}, ids(o.State().Candidates))
}

func TestSearch_ResultProperties(t *testing.T) {
	names := []string{
		"Joao Silva", "João Silva", "Joao Silva Santos", "Maria Oliveira", "Maria Olivera",
		"Ana Souza", "Ana Sousa", "Ana Paula Souza", "Pedro Santos", "Paulo Pereira",
	}

	var records []resident.Record
	for i := 0; i < 40; i++ {
		records = append(records, resident.Record{ID: resident.ID(fmt.Sprint(i % 30)), Name: names[i%len(names)]})
	}

	o := New(resident.NewStaticDirectory(records))

	queries := [][]string{
		{"Joao Silva"},
		{"ANA SOUZA", "ana sousa", "Ana Paula"},
		{"Maria Oliveira", "Pedro Santos", "Joao Silva", "Paulo Pereira"},
	}

	for _, q := range queries {
		res := o.Search(context.Background(), q)
		require.NoError(t, res.Err)

		assert.LessOrEqual(t, len(res.Candidates), match.DefaultMaxResults)

		seen := make(map[resident.ID]bool)
		for i, c := range res.Candidates {
			assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
			seen[c.ID] = true

			assert.GreaterOrEqual(t, c.Similarity, match.DefaultThreshold)

			if i > 0 {
				assert.LessOrEqual(t, c.Similarity, res.Candidates[i-1].Similarity)
			}
		}
	}
}
