package results

import "strings"

// Taxonomia de status do feed. Um piloto só conta como "terminou" com um dos
// status de chegada explícitos, ou com posição válida e nenhum marcador de
// abandono no texto. Tudo que sobra (inclusive linha malformada) é DNF.
var finishedStatuses = []string{"Finished", "+1 Lap", "+2 Laps", "+3 Laps", "+4 Laps", "+5 Laps"}

var dnfMarkers = []string{
	"DNF", "DNS", "DSQ", "Retired", "Accident", "Collision", "Engine",
	"Gearbox", "Hydraulics", "Brakes", "Suspension", "Wheel", "Puncture",
	"Spin", "Damage",
}

// Classification mapeia cada piloto para posição final ou DNF.
type Classification struct {
	Positions map[int]int  // driverNumber -> posição de chegada
	DNF       map[int]bool // driverNumber -> não terminou
}

// Finished informa se o piloto terminou dado o DNF-set da corrida.
func (c Classification) Finished(driverNumber int) bool {
	return !c.DNF[driverNumber]
}

// Position retorna a posição final e se ela existe.
func (c Classification) Position(driverNumber int) (int, bool) {
	p, ok := c.Positions[driverNumber]
	return p, ok
}

// Classify particiona o resultado da corrida em terminou-com-posição e DNF.
func Classify(rows []DriverResult) Classification {
	cl := Classification{
		Positions: make(map[int]int, len(rows)),
		DNF:       make(map[int]bool),
	}

	for _, row := range rows {
		if isFinished(row) && row.Position > 0 {
			cl.Positions[row.DriverNumber] = row.Position
		} else {
			cl.DNF[row.DriverNumber] = true
		}
	}
	return cl
}

func isFinished(row DriverResult) bool {
	for _, s := range finishedStatuses {
		if strings.Contains(row.Status, s) {
			return true
		}
	}
	if row.Position > 0 && row.Position <= 20 {
		for _, m := range dnfMarkers {
			if strings.Contains(row.Status, m) {
				return false
			}
		}
		return true
	}
	return false
}
