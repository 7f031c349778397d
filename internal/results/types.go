package results

import (
	"fmt"
	"strconv"
	"time"
)

// RaceResult é o resultado oficial de uma corrida, já normalizado do feed.
type RaceResult struct {
	Season   int
	Round    int
	RaceName string
	Date     time.Time
	Results  []DriverResult
}

// DriverResult é a linha de classificação de um piloto.
// Status é o texto cru do feed ("Finished", "+1 Lap", "Collision", ...).
type DriverResult struct {
	Position     int
	DriverNumber int
	Code         string
	Name         string
	Constructor  string
	Status       string
}

// RaceID deriva o identificador usado nas coleções de apostas:
// race_{round}_{YYYYMMDD}, com a data da corrida em UTC.
func (r *RaceResult) RaceID() string {
	d := r.Date.UTC()
	return fmt.Sprintf("race_%d_%04d%02d%02d", r.Round, d.Year(), int(d.Month()), d.Day())
}

// Payload estilo Ergast. Campos numéricos chegam como string.
type ergastResponse struct {
	MRData struct {
		RaceTable struct {
			Races []ergastRace `json:"Races"`
		} `json:"RaceTable"`
	} `json:"MRData"`
}

type ergastRace struct {
	Season   string         `json:"season"`
	Round    string         `json:"round"`
	RaceName string         `json:"raceName"`
	Date     string         `json:"date"`
	Results  []ergastResult `json:"Results"`
}

type ergastResult struct {
	Position string `json:"position"`
	Status   string `json:"status"`
	Driver   struct {
		PermanentNumber string `json:"permanentNumber"`
		Code            string `json:"code"`
		GivenName       string `json:"givenName"`
		FamilyName      string `json:"familyName"`
	} `json:"Driver"`
	Constructor struct {
		Name string `json:"name"`
	} `json:"Constructor"`
}

func (e *ergastRace) toDomain() *RaceResult {
	date, _ := time.Parse("2006-01-02", e.Date)
	out := &RaceResult{
		Season:   atoi(e.Season),
		Round:    atoi(e.Round),
		RaceName: e.RaceName,
		Date:     date,
	}
	for _, r := range e.Results {
		out.Results = append(out.Results, DriverResult{
			Position:     atoi(r.Position),
			DriverNumber: atoi(r.Driver.PermanentNumber),
			Code:         r.Driver.Code,
			Name:         r.Driver.GivenName + " " + r.Driver.FamilyName,
			Constructor:  r.Constructor.Name,
			Status:       r.Status,
		})
	}
	return out
}

// atoi tolerante: campo ausente/malformado vira zero e a classificação
// trata como did-not-finish.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
