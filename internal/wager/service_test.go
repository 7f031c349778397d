package wager

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
	"github.com/radieske/f1-wager-engine/internal/odds"
	"github.com/radieske/f1-wager-engine/internal/race"
	"github.com/radieske/f1-wager-engine/pkg/contracts/events"
)

// fakeStore emula o repo transacional em memória: criação debita e checa
// duplicidade sob o mesmo lock, igual ao comportamento da transação no banco.
// Cada mutação de saldo registra a entry correspondente, como o ledger real.
type fakeStore struct {
	mu       sync.Mutex
	wagers   map[string]Wager
	balances map[string]int64
	entries  map[string][]int64
	seq      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		wagers:   make(map[string]Wager),
		balances: make(map[string]int64),
		entries:  make(map[string][]int64),
	}
}

// grant credita saldo inicial com a entry, como o endpoint de admin faria.
func (f *fakeStore) grant(userID string, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += amount
	f.entries[userID] = append(f.entries[userID], amount)
}

func (f *fakeStore) entrySum(userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, v := range f.entries[userID] {
		sum += v
	}
	return sum
}

func (f *fakeStore) create(w *Wager, dedup bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dedup {
		for _, cur := range f.wagers {
			if cur.UserID == w.UserID && cur.RaceID == w.RaceID &&
				cur.Kind == KindParlay && cur.Status == StatusPending {
				return ErrDuplicateWager
			}
		}
	}
	if f.balances[w.UserID] < w.StakeTotal {
		return ledger.ErrInsufficientBalance
	}
	f.balances[w.UserID] -= w.StakeTotal
	f.entries[w.UserID] = append(f.entries[w.UserID], -w.StakeTotal)

	f.seq++
	w.ID = fmt.Sprintf("w%d", f.seq)
	w.Status = StatusPending
	w.CreatedAt = time.Now().UTC()
	f.wagers[w.ID] = *w
	return nil
}

func (f *fakeStore) CreateParlay(_ context.Context, w *Wager) error {
	return f.create(w, true)
}

func (f *fakeStore) CreateHeadToHead(_ context.Context, w *Wager) error {
	return f.create(w, false)
}

func (f *fakeStore) Cancel(_ context.Context, wagerID, userID string, now time.Time) (Wager, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.wagers[wagerID]
	if !ok {
		return Wager{}, ErrNotFound
	}
	if w.UserID != userID {
		return Wager{}, ErrUnauthorized
	}
	if w.Status != StatusPending {
		return Wager{}, ErrAlreadySettled
	}
	if now.Sub(w.CreatedAt) >= CancelWindow {
		return Wager{}, ErrCancelWindowExpired
	}
	delete(f.wagers, wagerID)
	f.balances[userID] += w.StakeTotal
	f.entries[userID] = append(f.entries[userID], w.StakeTotal)
	return w, nil
}

func (f *fakeStore) Get(_ context.Context, wagerID string) (Wager, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wagers[wagerID]
	if !ok {
		return Wager{}, ErrNotFound
	}
	return w, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID, raceID string) ([]Wager, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Wager
	for _, w := range f.wagers {
		if w.UserID == userID && (raceID == "" || w.RaceID == raceID) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeStore) setCreatedAt(wagerID string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := f.wagers[wagerID]
	w.CreatedAt = at
	f.wagers[wagerID] = w
}

type fakeCalendar struct {
	races map[string]race.Race
	err   error
}

func (f *fakeCalendar) Get(_ context.Context, raceID string) (race.Race, error) {
	if f.err != nil {
		return race.Race{}, f.err
	}
	r, ok := f.races[raceID]
	if !ok {
		return race.Race{}, race.ErrNotFound
	}
	return r, nil
}

type fakePools struct {
	mu      sync.Mutex
	added   map[string]int64 // "raceID/driver" -> stake líquido
	failing bool
}

func newFakePools() *fakePools { return &fakePools{added: make(map[string]int64)} }

func (f *fakePools) key(raceID string, driver int) string {
	return fmt.Sprintf("%s/%d", raceID, driver)
}

func (f *fakePools) Add(_ context.Context, raceID string, driver int, stake int64) error {
	if f.failing {
		return fmt.Errorf("redis down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added[f.key(raceID, driver)] += stake
	return nil
}

func (f *fakePools) Remove(_ context.Context, raceID string, driver int, stake int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added[f.key(raceID, driver)] -= stake
	return nil
}

func (f *fakePools) Pools(_ context.Context, raceID string, driver int) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, v := range f.added {
		total += v
	}
	return f.added[f.key(raceID, driver)], total, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	placed    []events.WagerPlaced
	cancelled []events.WagerCancelled
}

func (f *fakePublisher) WagerPlaced(_ context.Context, ev events.WagerPlaced) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, ev)
	return nil
}

func (f *fakePublisher) WagerCancelled(_ context.Context, ev events.WagerCancelled) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, ev)
	return nil
}

const testRaceID = "race_1_20260308"

func testFixture() (*Service, *fakeStore, *fakePools, *fakePublisher) {
	store := newFakeStore()
	pools := newFakePools()
	publ := &fakePublisher{}
	cal := &fakeCalendar{races: map[string]race.Race{
		testRaceID: {
			ID:        testRaceID,
			Name:      "Australian Grand Prix",
			Round:     1,
			Season:    2026,
			StartTime: time.Now().Add(24 * time.Hour),
		},
	}}
	svc := NewService(zap.NewNop(), store, cal, pools, publ)
	return svc, store, pools, publ
}

func parlayInput(stakes ...int64) PlaceParlayInput {
	in := PlaceParlayInput{RaceID: testRaceID}
	for i, s := range stakes {
		in.Legs = append(in.Legs, ParlayLegInput{
			Position:     i + 1,
			DriverNumber: i + 10,
			DriverName:   fmt.Sprintf("Driver %d", i+10),
			SeasonRank:   i + 1,
			Stake:        s,
		})
	}
	return in
}

func h2hInput(stake int64) PlaceHeadToHeadInput {
	return PlaceHeadToHeadInput{
		RaceID:          testRaceID,
		DriverA:         DriverInput{Number: 1, Name: "Max Verstappen", SeasonRank: 1},
		DriverB:         DriverInput{Number: 4, Name: "Lando Norris", SeasonRank: 2},
		PredictedWinner: 1,
		Stake:           stake,
	}
}

func TestPlaceParlay(t *testing.T) {
	svc, store, pools, publ := testFixture()
	store.balances["u1"] = 500

	w, err := svc.PlaceParlay(context.Background(), "u1", parlayInput(100, 200))
	require.NoError(t, err)

	assert.Equal(t, KindParlay, w.Kind)
	assert.Equal(t, StatusPending, w.Status)
	assert.Equal(t, int64(300), w.StakeTotal)
	assert.Equal(t, int64(200), store.balances["u1"])

	// Odds vêm do ranking, não do cliente.
	require.Len(t, w.Legs, 2)
	assert.Equal(t, odds.FromRank(1), w.Legs[0].Odds)
	assert.Equal(t, odds.FromRank(2), w.Legs[1].Odds)

	want := odds.Payout(100, odds.FromRank(1)) + odds.Payout(200, odds.FromRank(2))
	assert.Equal(t, want, w.PotentialPayout)

	assert.Equal(t, int64(100), pools.added[testRaceID+"/10"])
	assert.Equal(t, int64(200), pools.added[testRaceID+"/11"])

	require.Len(t, publ.placed, 1)
	assert.Equal(t, w.ID, publ.placed[0].WagerID)
}

func TestPlaceParlayValidation(t *testing.T) {
	svc, store, _, _ := testFixture()
	store.balances["u1"] = 5000

	cases := []struct {
		name string
		in   PlaceParlayInput
	}{
		{"sem pernas", PlaceParlayInput{RaceID: testRaceID}},
		{"stake zero", parlayInput(0)},
		{"stake acima do teto", parlayInput(1001)},
		{"posicao duplicada", func() PlaceParlayInput {
			in := parlayInput(100, 100)
			in.Legs[1].Position = 1
			return in
		}()},
		{"posicao fora do podio", func() PlaceParlayInput {
			in := parlayInput(100)
			in.Legs[0].Position = 4
			return in
		}()},
		{"piloto invalido", func() PlaceParlayInput {
			in := parlayInput(100)
			in.Legs[0].DriverNumber = 0
			return in
		}()},
		{"quatro pernas", func() PlaceParlayInput {
			in := parlayInput(100, 100, 100)
			in.Legs = append(in.Legs, ParlayLegInput{Position: 3, DriverNumber: 99, SeasonRank: 4, Stake: 100})
			return in
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PlaceParlay(context.Background(), "u1", tc.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	// Três pernas no teto individual somam exatamente o limite total: aceita.
	_, err := svc.PlaceParlay(context.Background(), "u1", parlayInput(1000, 1000, 1000))
	assert.NoError(t, err)
}

func TestPlaceParlayUnknownRace(t *testing.T) {
	svc, store, _, _ := testFixture()
	store.balances["u1"] = 500

	in := parlayInput(100)
	in.RaceID = "race_9_20261231"
	_, err := svc.PlaceParlay(context.Background(), "u1", in)
	assert.ErrorIs(t, err, race.ErrNotFound)
}

func TestPlaceParlayDuplicate(t *testing.T) {
	svc, store, _, _ := testFixture()
	store.balances["u1"] = 1000

	_, err := svc.PlaceParlay(context.Background(), "u1", parlayInput(100))
	require.NoError(t, err)

	_, err = svc.PlaceParlay(context.Background(), "u1", parlayInput(100))
	assert.ErrorIs(t, err, ErrDuplicateWager)
	assert.Equal(t, int64(900), store.balances["u1"], "segunda tentativa não debita")
}

func TestPlaceParlayInsufficientBalance(t *testing.T) {
	svc, store, _, publ := testFixture()
	store.balances["u1"] = 50

	_, err := svc.PlaceParlay(context.Background(), "u1", parlayInput(100))
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.Empty(t, store.wagers)
	assert.Empty(t, publ.placed)
}

func TestPlaceParlayPoolFailureDoesNotBlock(t *testing.T) {
	svc, store, pools, _ := testFixture()
	store.balances["u1"] = 500
	pools.failing = true

	_, err := svc.PlaceParlay(context.Background(), "u1", parlayInput(100))
	assert.NoError(t, err, "cache de pool é melhor esforço")
}

func TestPlaceBettingClosed(t *testing.T) {
	svc, store, _, _ := testFixture()
	store.balances["u1"] = 500

	// Dentro da margem de cutoff antes da largada.
	svc.now = func() time.Time { return time.Now().Add(24*time.Hour - time.Minute) }

	_, err := svc.PlaceParlay(context.Background(), "u1", parlayInput(100))
	assert.ErrorIs(t, err, ErrBettingClosed)

	_, err = svc.PlaceHeadToHead(context.Background(), "u1", h2hInput(100))
	assert.ErrorIs(t, err, ErrBettingClosed)
}

func TestPlaceHeadToHead(t *testing.T) {
	svc, store, _, publ := testFixture()
	store.balances["u1"] = 500

	w, err := svc.PlaceHeadToHead(context.Background(), "u1", h2hInput(200))
	require.NoError(t, err)

	oddsA, _ := odds.HeadToHead(1, 2)
	assert.Equal(t, KindH2H, w.Kind)
	assert.Equal(t, oddsA, w.Odds)
	assert.Equal(t, "1_4", w.MatchupID)
	assert.Equal(t, odds.Payout(200, oddsA), w.PotentialPayout)
	assert.Equal(t, int64(300), store.balances["u1"])

	require.Len(t, publ.placed, 1)
	assert.Equal(t, oddsA, publ.placed[0].ServerOdds)
}

func TestPlaceHeadToHeadValidation(t *testing.T) {
	svc, store, _, _ := testFixture()
	store.balances["u1"] = 5000

	same := h2hInput(100)
	same.DriverB = same.DriverA
	_, err := svc.PlaceHeadToHead(context.Background(), "u1", same)
	assert.ErrorIs(t, err, ErrValidation)

	outsider := h2hInput(100)
	outsider.PredictedWinner = 99
	_, err = svc.PlaceHeadToHead(context.Background(), "u1", outsider)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.PlaceHeadToHead(context.Background(), "u1", h2hInput(0))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.PlaceHeadToHead(context.Background(), "u1", h2hInput(1001))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPlaceHeadToHeadLowOddsCap(t *testing.T) {
	svc, store, _, _ := testFixture()
	store.balances["u1"] = 5000

	// Favorito extremo: odd bate no piso do mercado, abaixo do limiar.
	in := h2hInput(100)
	in.DriverB.SeasonRank = 22

	_, err := svc.PlaceHeadToHead(context.Background(), "u1", in)
	assert.ErrorIs(t, err, ErrValidation)

	in.Stake = odds.LowOddsMaxStake
	_, err = svc.PlaceHeadToHead(context.Background(), "u1", in)
	assert.NoError(t, err)
}

func TestCancelRefunds(t *testing.T) {
	svc, store, pools, publ := testFixture()
	store.balances["u1"] = 500

	w, err := svc.PlaceParlay(context.Background(), "u1", parlayInput(100, 200))
	require.NoError(t, err)
	require.Equal(t, int64(200), store.balances["u1"])

	got, err := svc.Cancel(context.Background(), "u1", w.ID)
	require.NoError(t, err)

	assert.Equal(t, w.ID, got.ID)
	assert.Equal(t, int64(500), store.balances["u1"], "reembolso integral")
	assert.Empty(t, store.wagers)
	assert.Equal(t, int64(0), pools.added[testRaceID+"/10"], "pool desfeito")

	require.Len(t, publ.cancelled, 1)
	assert.Equal(t, int64(300), publ.cancelled[0].RefundAmount)
}

func TestCancelWindowExpired(t *testing.T) {
	svc, store, _, _ := testFixture()
	store.balances["u1"] = 500

	w, err := svc.PlaceParlay(context.Background(), "u1", parlayInput(100))
	require.NoError(t, err)

	store.setCreatedAt(w.ID, time.Now().Add(-61*time.Minute))

	_, err = svc.Cancel(context.Background(), "u1", w.ID)
	assert.ErrorIs(t, err, ErrCancelWindowExpired)
	assert.Equal(t, int64(400), store.balances["u1"], "sem reembolso")
}

func TestCancelAfterRaceStart(t *testing.T) {
	svc, store, _, _ := testFixture()
	store.balances["u1"] = 500

	w, err := svc.PlaceParlay(context.Background(), "u1", parlayInput(100))
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	_, err = svc.Cancel(context.Background(), "u1", w.ID)
	assert.ErrorIs(t, err, ErrBettingClosed)
}

func TestCancelWrongUser(t *testing.T) {
	svc, store, _, _ := testFixture()
	store.balances["u1"] = 500

	w, err := svc.PlaceParlay(context.Background(), "u1", parlayInput(100))
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), "u2", w.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCancelUnknownWager(t *testing.T) {
	svc, _, _, _ := testFixture()
	_, err := svc.Cancel(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelCalendarUnavailableFailsClosed(t *testing.T) {
	store := newFakeStore()
	pools := newFakePools()
	publ := &fakePublisher{}
	cal := &fakeCalendar{races: map[string]race.Race{
		testRaceID: {
			ID:        testRaceID,
			Name:      "Australian Grand Prix",
			Round:     1,
			Season:    2026,
			StartTime: time.Now().Add(24 * time.Hour),
		},
	}}
	svc := NewService(zap.NewNop(), store, cal, pools, publ)
	store.grant("u1", 500)

	w, err := svc.PlaceParlay(context.Background(), "u1", parlayInput(100))
	require.NoError(t, err)

	// Sem calendário não dá para provar que a corrida ainda não largou.
	cal.err = errors.New("calendar down")

	_, err = svc.Cancel(context.Background(), "u1", w.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBettingClosed)

	assert.Equal(t, int64(400), store.balances["u1"], "sem reembolso")
	_, err = store.Get(context.Background(), w.ID)
	assert.NoError(t, err, "aposta continua pendente")
	assert.Empty(t, publ.cancelled)
}

// Saldo tem que bater com a soma das entries do ledger depois de qualquer
// sequência de apostas e cancelamentos, incluindo as tentativas rejeitadas.
func TestBalanceMatchesLedgerEntries(t *testing.T) {
	svc, store, _, _ := testFixture()

	rng := rand.New(rand.NewSource(42))
	users := []string{"u1", "u2", "u3"}
	for _, u := range users {
		store.grant(u, 2000)
	}

	type placed struct{ user, id string }
	var open []placed

	for i := 0; i < 200; i++ {
		if rng.Intn(3) == 0 && len(open) > 0 {
			pick := rng.Intn(len(open))
			_, err := svc.Cancel(context.Background(), open[pick].user, open[pick].id)
			require.NoError(t, err)
			open = append(open[:pick], open[pick+1:]...)
			continue
		}

		u := users[rng.Intn(len(users))]
		w, err := svc.PlaceHeadToHead(context.Background(), u, h2hInput(int64(rng.Intn(200)+1)))
		if err != nil {
			require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
			continue
		}
		open = append(open, placed{u, w.ID})
	}

	for _, u := range users {
		assert.Equal(t, store.entrySum(u), store.balances[u], "user %s", u)
		assert.GreaterOrEqual(t, store.balances[u], int64(0), "user %s", u)
	}
}

func TestConcurrentPlacementNeverOverspends(t *testing.T) {
	svc, store, _, _ := testFixture()
	store.balances["u1"] = 1000

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PlaceHeadToHead(context.Background(), "u1", h2hInput(200))
		}(i)
	}
	wg.Wait()

	placed := 0
	for _, err := range errs {
		if err == nil {
			placed++
		} else {
			assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 5, placed, "1000 tokens cobrem exatamente 5 apostas de 200")
	assert.Equal(t, int64(0), store.balances["u1"])
}

func TestLiveOddsUsesPool(t *testing.T) {
	svc, store, _, _ := testFixture()
	store.balances["u1"] = 1000

	_, err := svc.PlaceParlay(context.Background(), "u1", parlayInput(100, 900))
	require.NoError(t, err)

	// driver 10 tem 100 de um pool de 1000: odd pari-mutuel 900/100
	assert.Equal(t, 9.0, svc.LiveOdds(context.Background(), testRaceID, 10, 1))
}
