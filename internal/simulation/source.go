package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kitco/pricer/internal/domain"
)

// ErrNoAnchor is returned when a price is requested for an unusable anchor.
var ErrNoAnchor = errors.New("simulation: anchor price unavailable")

// Source computes the next simulated price for an anchor.
type Source interface {
	Next(ctx context.Context, anchor float64) (float64, domain.PriceOrigin, error)
}

// LocalSource perturbs the anchor in-process.
type LocalSource struct {
	radius float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLocalSource creates a local source. A zero seed seeds from the clock.
func NewLocalSource(radius float64, seed int64) *LocalSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LocalSource{radius: radius, rng: rand.New(rand.NewSource(seed))}
}

func (s *LocalSource) Radius() float64 { return s.radius }

func (s *LocalSource) Next(_ context.Context, anchor float64) (float64, domain.PriceOrigin, error) {
	s.mu.Lock()
	p, ok := Perturb(s.rng, anchor, s.radius)
	s.mu.Unlock()
	if !ok {
		return 0, domain.OriginLocal, ErrNoAnchor
	}
	return p, domain.OriginLocal, nil
}

// RemoteSource asks a price host for the next price and falls back to a
// local perturbation when the host cannot answer.
type RemoteSource struct {
	baseURL  string
	client   *http.Client
	fallback *LocalSource
}

type remotePrice struct {
	CurrentPrice float64 `json:"currentPrice"`
}

func NewRemoteSource(baseURL string, timeout time.Duration, fallback *LocalSource) *RemoteSource {
	return &RemoteSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		fallback: fallback,
	}
}

func (s *RemoteSource) Next(ctx context.Context, anchor float64) (float64, domain.PriceOrigin, error) {
	if anchor <= 0 {
		return 0, domain.OriginRemote, ErrNoAnchor
	}

	p, err := s.fetch(ctx, anchor)
	if err == nil {
		return p, domain.OriginRemote, nil
	}

	log.Warn().Str("component", "simulation").Err(err).
		Float64("anchor", anchor).Msg("remote price failed, falling back to local calculation")

	p, _, err = s.fallback.Next(ctx, anchor)
	if err != nil {
		return 0, domain.OriginFallback, err
	}
	return p, domain.OriginFallback, nil
}

func (s *RemoteSource) fetch(ctx context.Context, anchor float64) (float64, error) {
	q := url.Values{}
	q.Set("basePrice", strconv.FormatFloat(anchor, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/price?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("get price: status %d", resp.StatusCode)
	}

	var body remotePrice
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	if body.CurrentPrice <= 0 {
		return 0, fmt.Errorf("remote returned non-positive price %v", body.CurrentPrice)
	}
	return body.CurrentPrice, nil
}
