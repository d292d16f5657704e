package simulation

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kitco/pricer/internal/domain"
)

// Subscription receives every tick emitted after it was created.
// C is closed by Close or when the service stops.
type Subscription struct {
	C <-chan domain.PriceTick

	ch   chan domain.PriceTick
	svc  *Service
	once sync.Once
}

// Subscribe registers a subscriber with the given buffer size. Ticks that
// do not fit in the buffer are dropped for that subscriber.
func (s *Service) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.PriceTick, buffer)
	sub := &Subscription{C: ch, ch: ch, svc: s}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.done {
		sub.once.Do(func() { close(ch) })
		return sub
	}
	s.subs[sub] = struct{}{}
	return sub
}

// Close unsubscribes. It is safe to call more than once.
func (sub *Subscription) Close() {
	sub.svc.subMu.Lock()
	defer sub.svc.subMu.Unlock()
	delete(sub.svc.subs, sub)
	sub.once.Do(func() { close(sub.ch) })
}

func (s *Service) publish(t domain.PriceTick) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for sub := range s.subs {
		select {
		case sub.ch <- t:
		default:
			log.Warn().Str("component", "simulation").Str("product_id", t.ProductID).
				Uint64("seq", t.Seq).Msg("subscriber buffer full, tick dropped")
		}
	}
}

func (s *Service) closeAll() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for sub := range s.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(s.subs, sub)
	}
	s.done = true
}
