package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	"github.com/shopspring/decimal"

	"github.com/ts4z/placerank/app/handlers"
	"github.com/ts4z/placerank/dep"
	"github.com/ts4z/placerank/he"
	"github.com/ts4z/placerank/league"
	"github.com/ts4z/placerank/metrics"
	"github.com/ts4z/placerank/middleware"
	"github.com/ts4z/placerank/model"
	"github.com/ts4z/placerank/rating"
	"github.com/ts4z/placerank/state"
	"github.com/ts4z/placerank/textutil"
	"github.com/ts4z/placerank/urlpath"
	"github.com/ts4z/placerank/varz"
)

var (
	badRequestBodies = varz.NewInt("badRequestBodies")
	shortWrites      = varz.NewInt("shortWrites")
)

const (
	// Big enough for a few thousand participants.
	maxBodyBytes = 1 << 20

	defaultListLimit = 100
	maxListLimit     = 1000
	defaultSince     = "30d"
)

type nower interface {
	Now() time.Time
}

// Config holds the configuration for creating a new App.
type Config struct {
	Manager        *league.Manager
	Storage        state.Storage
	Clock          nower
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
}

// App is the JSON API.
type App struct {
	// dependencies
	manager *league.Manager
	storage state.Storage
	clock   nower
	metrics *metrics.Metrics

	// internals
	mux     *http.ServeMux
	handler http.Handler
}

// New creates a new App with the given configuration.
func New(ctx context.Context, config *Config) *App {
	app := &App{
		manager: dep.Required(config.Manager),
		storage: dep.Required(config.Storage),
		clock:   dep.Required(config.Clock),
		metrics: dep.Required(config.Metrics),
		mux:     http.NewServeMux(),
	}

	for _, origin := range config.AllowedOrigins {
		log.Printf("CORS allowing origin %s", origin)
	}

	// Stack the handlers together.
	// The logger sits outside the limiter so throttled requests are logged
	// and counted.
	limiter := middleware.NewRateLimiter(app.mux, app.clock, config.RateLimit, config.RateBurst)
	logger := middleware.NewRequestLogger(limiter, app.clock, app.metrics)
	corsMW := cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	app.handler = corsMW.Handler(logger)

	app.InstallHandlers()

	return app
}

// Handler returns the configured HTTP handler.
func (app *App) Handler() http.Handler {
	return app.handler
}

func (app *App) handleFunc(pattern string, handler func(context.Context, http.ResponseWriter, *http.Request)) {
	app.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		handler(ctx, w, r)
	})
}

func takingID(handler func(context.Context, int64, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlpath.IDPathValue(r)
		if err != nil {
			he.SendErrorToHTTPClient(w, "parse url", err)
			return
		}
		handler(r.Context(), id, w, r)
	}
}

func (app *App) handleFuncTakingID(pattern string, handler func(context.Context, int64, http.ResponseWriter, *http.Request)) {
	app.mux.Handle(pattern, takingID(handler))
}

// decodeBody reads one JSON document, refusing unknown fields and trailing
// junk.  Any failure is the client's.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequestBodies.Add(1)
		return he.HTTPCodedErrorf(http.StatusBadRequest, "bad request body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		badRequestBodies.Add(1)
		return he.HTTPCodedErrorf(http.StatusBadRequest, "bad request body: trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	bytes, err := json.Marshal(v)
	if err != nil {
		he.SendErrorToHTTPClient(w, "marshal response", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writ, err := w.Write(bytes)
	if err != nil {
		log.Printf("error writing response to client: %v", err)
	} else if writ != len(bytes) {
		shortWrites.Add(1)
		log.Println("short write to client")
	}
}

type rateParticipant struct {
	ID     int64   `json:"id"`
	Rating float64 `json:"rating"`
	Rank   int     `json:"rank"`
}

type rateRequest struct {
	Participants []rateParticipant `json:"participants"`
	Explain      bool              `json:"explain"`
}

type rateResult struct {
	ID     int64   `json:"id"`
	Rating float64 `json:"rating"`
	Rank   int     `json:"rank"`
	Change float64 `json:"change"`
}

type rateBreakdown struct {
	ID                int64           `json:"id"`
	ExpectedRank      decimal.Decimal `json:"expectedRank"`
	ReconciledRank    decimal.Decimal `json:"reconciledRank"`
	PerformanceRating int64           `json:"performanceRating"`
	Iterations        int             `json:"iterations"`
}

type rateResponse struct {
	Results   []rateResult    `json:"results"`
	Breakdown []rateBreakdown `json:"breakdown,omitempty"`
}

func (app *App) handleRate(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	req := &rateRequest{}
	if err := decodeBody(w, r, req); err != nil {
		he.SendErrorToHTTPClient(w, "rate", err)
		return
	}
	ps := make([]rating.Participant, len(req.Participants))
	for i, p := range req.Participants {
		ps[i] = rating.Participant{ID: p.ID, CurrentRating: p.Rating, MatchRank: p.Rank}
	}

	rated, err := app.manager.Rate(ctx, ps)
	if err != nil {
		he.SendErrorToHTTPClient(w, "rate", err)
		return
	}

	resp := &rateResponse{Results: make([]rateResult, len(rated.Participants))}
	for i, p := range rated.Participants {
		resp.Results[i] = rateResult{ID: p.ID, Rating: p.CurrentRating, Rank: p.MatchRank, Change: p.ChangeScore}
	}
	if req.Explain {
		for _, b := range rated.Breakdown {
			resp.Breakdown = append(resp.Breakdown, rateBreakdown{
				ID:                b.ID,
				ExpectedRank:      b.ExpectedRank,
				ReconciledRank:    b.ReconciledRank,
				PerformanceRating: b.PerformanceRating,
				Iterations:        b.Iterations,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type matchRequest struct {
	Entries []model.Entry `json:"entries"`
}

func (app *App) handleMatch(record bool) func(context.Context, http.ResponseWriter, *http.Request) {
	while, rate, code := "preview match", app.manager.Preview, http.StatusOK
	if record {
		while, rate, code = "record match", app.manager.Record, http.StatusCreated
	}
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		req := &matchRequest{}
		if err := decodeBody(w, r, req); err != nil {
			he.SendErrorToHTTPClient(w, while, err)
			return
		}
		m, err := rate(ctx, req.Entries)
		if err != nil {
			he.SendErrorToHTTPClient(w, while, err)
			return
		}
		if record {
			w.Header().Set("Location", fmt.Sprintf("/api/match/%d", m.MatchID))
		}
		writeJSON(w, code, m)
	}
}

func (app *App) handleAPIMatch(ctx context.Context, id int64, w http.ResponseWriter, r *http.Request) {
	m, err := app.storage.FetchMatch(ctx, id)
	if err != nil {
		he.SendErrorToHTTPClient(w, "get match from db", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func listLimit(r *http.Request) (int, error) {
	limit, err := urlpath.IntQueryValue(r, "limit", defaultListLimit)
	if err != nil {
		return 0, err
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

func (app *App) handleAPIMatches(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	limit, err := listLimit(r)
	if err != nil {
		he.SendErrorToHTTPClient(w, "list matches", err)
		return
	}
	s := r.URL.Query().Get("since")
	if s == "" {
		s = defaultSince
	}
	since, err := textutil.ParseSince(app.clock.Now(), s)
	if err != nil {
		he.SendErrorToHTTPClient(w, "list matches", he.New(http.StatusBadRequest, err))
		return
	}
	slugs, err := app.storage.FetchMatchesSince(ctx, since, limit)
	if err != nil {
		he.SendErrorToHTTPClient(w, "list matches", err)
		return
	}
	writeJSON(w, http.StatusOK, slugs)
}

func (app *App) handleAPIPlayer(ctx context.Context, id int64, w http.ResponseWriter, r *http.Request) {
	p, err := app.storage.FetchPlayer(ctx, id)
	if err != nil {
		he.SendErrorToHTTPClient(w, "get player from db", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (app *App) handleAPILeaderboard(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	offset, err := urlpath.IntQueryValue(r, "offset", 0)
	if err != nil {
		he.SendErrorToHTTPClient(w, "get leaderboard", err)
		return
	}
	limit, err := listLimit(r)
	if err != nil {
		he.SendErrorToHTTPClient(w, "get leaderboard", err)
		return
	}
	players, err := app.storage.FetchLeaderboard(ctx, offset, limit)
	if err != nil {
		he.SendErrorToHTTPClient(w, "get leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (app *App) InstallHandlers() {
	app.mux.HandleFunc("GET /robots.txt", handlers.HandleRobotsTXT)

	app.handleFunc("POST /api/rate", app.handleRate)

	app.handleFunc("POST /api/match/preview", app.handleMatch(false))

	app.handleFunc("POST /api/match", app.handleMatch(true))

	// A recorded match never changes.
	app.mux.Handle("GET /api/match/{id}", middleware.NewCacheHeaderAdder(&middleware.CacheHeaderAdderConfig{
		Next:      takingID(app.handleAPIMatch),
		MaxAge:    24 * time.Hour,
		Immutable: true,
	}))

	app.handleFunc("GET /api/matches", app.handleAPIMatches)

	app.handleFuncTakingID("GET /api/player/{id}", app.handleAPIPlayer)

	app.handleFunc("GET /api/leaderboard", app.handleAPILeaderboard)

	app.mux.Handle("GET /metrics", app.metrics.Handler())

	app.mux.Handle("GET /debug/vars", expvar.Handler())
}

// Wrapper to just return the input context.
func contextualizer(ctx context.Context) func(net.Listener) context.Context {
	return func(_ net.Listener) context.Context {
		return ctx
	}
}

// Serve starts the HTTP server on the given listen address.  It returns when
// the server stops, which is never a success.
func (app *App) Serve(ctx context.Context, listenAddress string) error {
	wg := sync.WaitGroup{}

	type result struct {
		name string
		err  error
	}

	ch := make(chan *result)

	server := &http.Server{
		Addr:         listenAddress,
		Handler:      app.handler,
		BaseContext:  contextualizer(ctx),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	wg.Add(1)
	go func() {
		ch <- &result{"http", server.ListenAndServe()}
		wg.Done()
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("can't shut down cleanly: %v", err)
		}
	}()

	go func() {
		wg.Wait()
		close(ch)
	}()

	errs := []error{}
	for res := range ch {
		if res.err != nil {
			log.Printf("server %s exited: %v", res.name, res.err)
			errs = append(errs, res.err)
		}
	}

	return fmt.Errorf("servers exited: %v", errs)
}
