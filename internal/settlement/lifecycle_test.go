package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/f1-wager-engine/internal/ledger"
	"github.com/radieske/f1-wager-engine/internal/race"
	"github.com/radieske/f1-wager-engine/internal/results"
	"github.com/radieske/f1-wager-engine/internal/wager"
	"github.com/radieske/f1-wager-engine/pkg/contracts/events"
)

// lifecycleStore é um wager.Store em memória que registra cada mutação de
// saldo como entry de ledger, igual ao repo real: débito na criação,
// reembolso no cancelamento, crédito/reembolso na liquidação.
type lifecycleStore struct {
	mu       sync.Mutex
	wagers   map[string]wager.Wager
	balances map[string]int64
	entries  map[string][]int64
	lifetime map[string]int64
	seq      int
}

func newLifecycleStore() *lifecycleStore {
	return &lifecycleStore{
		wagers:   make(map[string]wager.Wager),
		balances: make(map[string]int64),
		entries:  make(map[string][]int64),
		lifetime: make(map[string]int64),
	}
}

func (s *lifecycleStore) grant(userID string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] += amount
	s.entries[userID] = append(s.entries[userID], amount)
}

func (s *lifecycleStore) entrySum(userID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, v := range s.entries[userID] {
		sum += v
	}
	return sum
}

func (s *lifecycleStore) create(w *wager.Wager, dedup bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dedup {
		for _, cur := range s.wagers {
			if cur.UserID == w.UserID && cur.RaceID == w.RaceID &&
				cur.Kind == wager.KindParlay && cur.Status == wager.StatusPending {
				return wager.ErrDuplicateWager
			}
		}
	}
	if s.balances[w.UserID] < w.StakeTotal {
		return ledger.ErrInsufficientBalance
	}
	s.balances[w.UserID] -= w.StakeTotal
	s.entries[w.UserID] = append(s.entries[w.UserID], -w.StakeTotal)

	s.seq++
	w.ID = fmt.Sprintf("w%d", s.seq)
	w.Status = wager.StatusPending
	w.CreatedAt = time.Now().UTC()
	s.wagers[w.ID] = *w
	return nil
}

func (s *lifecycleStore) CreateParlay(_ context.Context, w *wager.Wager) error {
	return s.create(w, true)
}

func (s *lifecycleStore) CreateHeadToHead(_ context.Context, w *wager.Wager) error {
	return s.create(w, false)
}

func (s *lifecycleStore) Cancel(_ context.Context, wagerID, userID string, now time.Time) (wager.Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wagers[wagerID]
	if !ok {
		return wager.Wager{}, wager.ErrNotFound
	}
	if w.UserID != userID {
		return wager.Wager{}, wager.ErrUnauthorized
	}
	if w.Status != wager.StatusPending {
		return wager.Wager{}, wager.ErrAlreadySettled
	}
	if now.Sub(w.CreatedAt) >= wager.CancelWindow {
		return wager.Wager{}, wager.ErrCancelWindowExpired
	}
	delete(s.wagers, wagerID)
	s.balances[userID] += w.StakeTotal
	s.entries[userID] = append(s.entries[userID], w.StakeTotal)
	return w, nil
}

func (s *lifecycleStore) Get(_ context.Context, wagerID string) (wager.Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wagers[wagerID]
	if !ok {
		return wager.Wager{}, wager.ErrNotFound
	}
	return w, nil
}

func (s *lifecycleStore) ListByUser(_ context.Context, userID, raceID string) ([]wager.Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wager.Wager
	for _, w := range s.wagers {
		if w.UserID == userID && (raceID == "" || w.RaceID == raceID) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *lifecycleStore) pending() []wager.Wager {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wager.Wager
	for _, w := range s.wagers {
		if w.Status == wager.StatusPending {
			out = append(out, w)
		}
	}
	return out
}

// apply espelha o ApplyBatch real para um desfecho: status, crédito com
// lifetime_earned em vitória, reembolso sem lifetime_earned em void.
func (s *lifecycleStore) apply(r Resolution) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.wagers[r.WagerID]
	w.Status = r.Status
	s.wagers[r.WagerID] = w

	switch r.Status {
	case wager.StatusWon:
		s.balances[r.UserID] += r.Payout
		s.entries[r.UserID] = append(s.entries[r.UserID], r.Payout)
		s.lifetime[r.UserID] += r.Payout
	case wager.StatusVoid:
		s.balances[r.UserID] += r.Refund
		s.entries[r.UserID] = append(s.entries[r.UserID], r.Refund)
	}
}

type openCalendar struct{ r race.Race }

func (c openCalendar) Get(context.Context, string) (race.Race, error) { return c.r, nil }

type nopPools struct{}

func (nopPools) Add(context.Context, string, int, int64) error    { return nil }
func (nopPools) Remove(context.Context, string, int, int64) error { return nil }
func (nopPools) Pools(context.Context, string, int) (int64, int64, error) {
	return 0, 0, nil
}

type nopEvents struct{}

func (nopEvents) WagerPlaced(context.Context, events.WagerPlaced) error       { return nil }
func (nopEvents) WagerCancelled(context.Context, events.WagerCancelled) error { return nil }

// Tokens só entram por grant, crédito de vitória ou reembolso, e só saem por
// stake em escrow: depois de qualquer sequência de aposta, cancelamento e
// liquidação o saldo de cada usuário tem que bater com a soma das entries, e
// lifetime_earned só acumula os créditos de vitória.
func TestLifecycleConservesTokens(t *testing.T) {
	const raceID = "race_1_20260308"

	store := newLifecycleStore()
	cal := openCalendar{race.Race{
		ID:        raceID,
		Name:      "Australian Grand Prix",
		Round:     1,
		Season:    2026,
		StartTime: time.Now().Add(24 * time.Hour),
	}}
	svc := wager.NewService(zap.NewNop(), store, cal, nopPools{}, nopEvents{})

	rng := rand.New(rand.NewSource(7))
	users := []string{"u1", "u2", "u3", "u4"}
	for _, u := range users {
		store.grant(u, 3000)
	}

	// Pares fixos: (1,4) decide por posição, (10,11) retira os dois e vira void.
	h2hIn := func(void bool, stake int64) wager.PlaceHeadToHeadInput {
		in := wager.PlaceHeadToHeadInput{
			RaceID:          raceID,
			DriverA:         wager.DriverInput{Number: 1, Name: "Max Verstappen", SeasonRank: 1},
			DriverB:         wager.DriverInput{Number: 4, Name: "Lando Norris", SeasonRank: 2},
			PredictedWinner: 1,
			Stake:           stake,
		}
		if void {
			in.DriverA = wager.DriverInput{Number: 10, Name: "Pierre Gasly", SeasonRank: 9}
			in.DriverB = wager.DriverInput{Number: 11, Name: "Franco Colapinto", SeasonRank: 10}
			in.PredictedWinner = 10
		}
		if rng.Intn(2) == 0 {
			in.PredictedWinner = in.DriverB.Number
		}
		return in
	}
	parlayIn := func() wager.PlaceParlayInput {
		return wager.PlaceParlayInput{
			RaceID: raceID,
			Legs: []wager.ParlayLegInput{
				{Position: 1, DriverNumber: 1, DriverName: "Max Verstappen", SeasonRank: 1, Stake: int64(rng.Intn(200) + 1)},
				{Position: 2, DriverNumber: 4, DriverName: "Lando Norris", SeasonRank: 2, Stake: int64(rng.Intn(200) + 1)},
				{Position: 3, DriverNumber: 16, DriverName: "Charles Leclerc", SeasonRank: 4, Stake: int64(rng.Intn(200) + 1)},
			},
		}
	}

	var open []wager.Wager
	for i := 0; i < 120; i++ {
		u := users[rng.Intn(len(users))]

		if rng.Intn(4) == 0 && len(open) > 0 {
			pick := rng.Intn(len(open))
			_, err := svc.Cancel(context.Background(), open[pick].UserID, open[pick].ID)
			require.NoError(t, err)
			open = append(open[:pick], open[pick+1:]...)
			continue
		}

		var w wager.Wager
		var err error
		if rng.Intn(3) == 0 {
			w, err = svc.PlaceParlay(context.Background(), u, parlayIn())
		} else {
			w, err = svc.PlaceHeadToHead(context.Background(), u, h2hIn(rng.Intn(3) == 0, int64(rng.Intn(200)+1)))
		}
		if err != nil {
			if !errors.Is(err, wager.ErrDuplicateWager) {
				require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
			}
			continue
		}
		open = append(open, w)
	}

	// Resultado oficial: 1 vence o pódio, 4 chega em P5, 10 e 11 abandonam.
	cl := results.Classify([]results.DriverResult{
		{Position: 1, DriverNumber: 1, Status: "Finished"},
		{Position: 2, DriverNumber: 81, Status: "Finished"},
		{Position: 3, DriverNumber: 16, Status: "Finished"},
		{Position: 5, DriverNumber: 4, Status: "Finished"},
		{Position: 0, DriverNumber: 10, Status: "Collision"},
		{Position: 0, DriverNumber: 11, Status: "Collision"},
	})

	wonTotal := make(map[string]int64)
	sawVoid := false
	for _, w := range store.pending() {
		var r Resolution
		if w.Kind == wager.KindH2H {
			r = resolveHeadToHead(w, cl)
		} else {
			r = resolveParlay(w, cl)
		}
		store.apply(r)
		if r.Status == wager.StatusWon {
			wonTotal[r.UserID] += r.Payout
		}
		if r.Status == wager.StatusVoid {
			sawVoid = true
		}
	}
	assert.True(t, sawVoid, "a sequência tem que exercitar o caminho de void")
	assert.Empty(t, store.pending())

	for _, u := range users {
		assert.Equal(t, store.entrySum(u), store.balances[u], "user %s", u)
		assert.GreaterOrEqual(t, store.balances[u], int64(0), "user %s", u)
		assert.Equal(t, wonTotal[u], store.lifetime[u],
			"lifetime_earned só acumula crédito de vitória (user %s)", u)
	}
}
