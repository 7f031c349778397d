package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/f1-wager-engine/internal/race"
	"github.com/radieske/f1-wager-engine/internal/shared/config"
	"github.com/radieske/f1-wager-engine/internal/shared/logger"
	"github.com/radieske/f1-wager-engine/internal/shared/metrics"
)

// Simulador do feed de resultados no formato Ergast, para rodar a stack
// inteira localmente sem depender da API pública. O resultado de cada rodada
// é pseudo-aleatório mas determinístico: o settlement pode buscar a mesma
// corrida quantas vezes precisar e receber sempre a mesma classificação.

type gridDriver struct {
	number      int
	code        string
	givenName   string
	familyName  string
	constructor string
}

// Grid 2026 na ordem do campeonato (índice 0 = líder).
var grid = []gridDriver{
	{1, "VER", "Max", "Verstappen", "Red Bull"},
	{4, "NOR", "Lando", "Norris", "McLaren"},
	{81, "PIA", "Oscar", "Piastri", "McLaren"},
	{16, "LEC", "Charles", "Leclerc", "Ferrari"},
	{44, "HAM", "Lewis", "Hamilton", "Ferrari"},
	{63, "RUS", "George", "Russell", "Mercedes"},
	{12, "ANT", "Andrea Kimi", "Antonelli", "Mercedes"},
	{14, "ALO", "Fernando", "Alonso", "Aston Martin"},
	{18, "STR", "Lance", "Stroll", "Aston Martin"},
	{10, "GAS", "Pierre", "Gasly", "Alpine"},
	{7, "DOO", "Jack", "Doohan", "Alpine"},
	{55, "SAI", "Carlos", "Sainz", "Williams"},
	{23, "ALB", "Alexander", "Albon", "Williams"},
	{22, "TSU", "Yuki", "Tsunoda", "RB"},
	{6, "HAD", "Isack", "Hadjar", "RB"},
	{27, "HUL", "Nico", "Hulkenberg", "Sauber"},
	{5, "BOR", "Gabriel", "Bortoleto", "Sauber"},
	{31, "OCO", "Esteban", "Ocon", "Haas"},
	{87, "BEA", "Oliver", "Bearman", "Haas"},
	{43, "COL", "Franco", "Colapinto", "Cadillac"},
}

var dnfStatuses = []string{"Engine", "Collision", "Gearbox", "Accident", "Hydraulics", "Retired"}

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	schedule := race.DefaultSchedule()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		season, round, ok := parsePath(r.URL.Path, schedule)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		payload := emptyResponse()
		if round > 0 && round <= len(schedule) {
			payload = buildResponse(season, schedule[round-1])
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	})

	// Simulador não tem dependências: healthcheck sempre saudável.
	metrics.StartMetricsServer(cfg.MetricsPort, func(context.Context) error { return nil })
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	addr := ":" + cfg.HTTPPort
	log.Info("results-simulator listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("http", zap.Error(err))
	}
}

// parsePath aceita /{season}/last/results.json e /{season}/{round}/results.json.
// "last" resolve para a rodada mais recente que já largou; zero quando a
// temporada ainda não começou.
func parsePath(path string, schedule []race.Race) (season, round int, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[2] != "results.json" {
		return 0, 0, false
	}

	season, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}

	if parts[1] == "last" {
		now := time.Now()
		for _, rc := range schedule {
			if rc.StartTime.Before(now) {
				round = rc.Round
			}
		}
		return season, round, true
	}

	round, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return season, round, true
}

func buildResponse(season int, rc race.Race) map[string]any {
	rng := rand.New(rand.NewSource(int64(season)*1000 + int64(rc.Round)))

	// Ordem de chegada: embaralha com viés leve pro topo do campeonato.
	order := make([]int, len(grid))
	for i := range order {
		order[i] = i
	}
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	for i := 0; i < len(order)-1; i++ {
		if order[i] > order[i+1] && rng.Float64() < 0.6 {
			order[i], order[i+1] = order[i+1], order[i]
		}
	}

	var results []map[string]any
	pos := 0
	for _, idx := range order {
		d := grid[idx]

		status := "Finished"
		if rng.Float64() < 0.12 {
			status = dnfStatuses[rng.Intn(len(dnfStatuses))]
		} else {
			pos++
			if pos > 14 {
				status = "+1 Lap"
			}
		}

		row := map[string]any{
			"status": status,
			"Driver": map[string]any{
				"permanentNumber": strconv.Itoa(d.number),
				"code":            d.code,
				"givenName":       d.givenName,
				"familyName":      d.familyName,
			},
			"Constructor": map[string]any{"name": d.constructor},
		}
		if status == "Finished" || status == "+1 Lap" {
			row["position"] = strconv.Itoa(pos)
		}
		results = append(results, row)
	}

	return map[string]any{
		"MRData": map[string]any{
			"RaceTable": map[string]any{
				"Races": []map[string]any{{
					"season":   strconv.Itoa(season),
					"round":    strconv.Itoa(rc.Round),
					"raceName": rc.Name,
					"date":     fmt.Sprintf("%04d-%02d-%02d", rc.StartTime.Year(), int(rc.StartTime.Month()), rc.StartTime.Day()),
					"Results":  results,
				}},
			},
		},
	}
}

func emptyResponse() map[string]any {
	return map[string]any{
		"MRData": map[string]any{
			"RaceTable": map[string]any{"Races": []any{}},
		},
	}
}
