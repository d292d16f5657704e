package simulation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kitco/pricer/internal/domain"
)

// DefaultInterval is the time between two price ticks.
const DefaultInterval = 10 * time.Second

// maxInFlight bounds concurrent Source calls during one tick.
const maxInFlight = 8

type entry struct {
	anchor float64
	state  domain.PriceState
}

// Service owns the simulated price of every registered product. It runs a
// single clock for all products and fans ticks out to subscribers.
type Service struct {
	source   Source
	interval time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	products map[string]*entry
	seq      uint64

	subMu sync.Mutex
	subs  map[*Subscription]struct{}
	done  bool
}

func NewService(source Source, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		source:   source,
		interval: interval,
		now:      time.Now,
		products: make(map[string]*entry),
		subs:     make(map[*Subscription]struct{}),
	}
}

func (s *Service) Interval() time.Duration { return s.interval }

// Register anchors productID at anchor and emits the anchor as the first
// price. Re-registering with the same anchor keeps the current state.
func (s *Service) Register(productID string, anchor float64) bool {
	if anchor <= 0 {
		log.Warn().Str("component", "simulation").Str("product_id", productID).
			Float64("anchor", anchor).Msg("no valid anchor price, product stays loading")
		return false
	}

	s.mu.Lock()
	if e, ok := s.products[productID]; ok && e.anchor == anchor {
		s.mu.Unlock()
		return true
	}
	s.seq++
	tick := domain.PriceTick{
		ProductID:     productID,
		OriginalPrice: anchor,
		Price:         anchor,
		Origin:        domain.OriginLocal,
		Seq:           s.seq,
		EmittedAt:     s.now(),
	}
	s.products[productID] = &entry{anchor: anchor, state: stateOf(tick)}
	s.mu.Unlock()

	log.Info().Str("component", "simulation").Str("product_id", productID).
		Float64("anchor", anchor).Msg("product registered")
	s.publish(tick)
	return true
}

func (s *Service) Unregister(productID string) {
	s.mu.Lock()
	delete(s.products, productID)
	s.mu.Unlock()
}

// State returns the price state of productID.
func (s *Service) State(productID string) (domain.PriceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.products[productID]
	if !ok {
		return domain.PriceState{ProductID: productID}, false
	}
	return e.state, true
}

// Products returns the registered product ids in sorted order.
func (s *Service) Products() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Run ticks every interval until ctx is done, then closes all subscriptions.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.closeAll()

	log.Info().Str("component", "simulation").Dur("interval", s.interval).Msg("price clock started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("component", "simulation").Msg("price clock stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

type job struct {
	productID string
	anchor    float64
	seq       uint64
}

// Tick recomputes every product from its anchor once.
func (s *Service) Tick(ctx context.Context) {
	s.mu.Lock()
	jobs := make([]job, 0, len(s.products))
	for id, e := range s.products {
		s.seq++
		jobs = append(jobs, job{productID: id, anchor: e.anchor, seq: s.seq})
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	for _, j := range jobs {
		g.Go(func() error {
			price, origin, err := s.source.Next(gctx, j.anchor)
			if err != nil {
				log.Warn().Str("component", "simulation").Str("product_id", j.productID).
					Err(err).Msg("price update skipped")
				return nil
			}
			s.apply(j, price, origin)
			return nil
		})
	}
	_ = g.Wait()
}

// apply stores a computed price unless a newer one already landed or the
// product was re-anchored meanwhile.
func (s *Service) apply(j job, price float64, origin domain.PriceOrigin) {
	s.mu.Lock()
	e, ok := s.products[j.productID]
	if !ok || e.anchor != j.anchor || j.seq <= e.state.Seq {
		s.mu.Unlock()
		log.Debug().Str("component", "simulation").Str("product_id", j.productID).
			Uint64("seq", j.seq).Msg("stale price discarded")
		return
	}
	tick := domain.PriceTick{
		ProductID:     j.productID,
		OriginalPrice: j.anchor,
		Price:         price,
		Origin:        origin,
		Seq:           j.seq,
		EmittedAt:     s.now(),
	}
	e.state = stateOf(tick)
	s.mu.Unlock()

	log.Debug().Str("component", "simulation").Str("product_id", j.productID).
		Float64("price", price).Str("origin", string(origin)).Msg("price updated")
	s.publish(tick)
}

func stateOf(t domain.PriceTick) domain.PriceState {
	return domain.PriceState{
		ProductID:     t.ProductID,
		OriginalPrice: t.OriginalPrice,
		CurrentPrice:  t.Price,
		Origin:        t.Origin,
		Seq:           t.Seq,
		UpdatedAt:     t.EmittedAt,
	}
}
