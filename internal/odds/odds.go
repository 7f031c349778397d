package odds

import "math"

// Parâmetros de mercado. Os valores vêm do modelo de precificação do produto:
// baseline exponencial por ranking de temporada e sigmoide para confrontos diretos.
const (
	RankBase   = 1.3  // odd do líder do campeonato
	RankGrowth = 0.12 // crescimento por posição de ranking
	MaxRank    = 22   // grid completo; ranking desconhecido cai aqui

	ParlayHouseEdge = 0.10
	ParlayMinOdds   = 1.1
	ParlayMaxOdds   = 50.0

	H2HHouseEdge   = 0.08
	H2HMinOdds     = 1.05
	H2HMaxOdds     = 15.0
	H2HSensitivity = 0.15 // k da sigmoide: variação de prob. por posição de ranking

	// Mitigação de abuso: favoritos quase certos têm stake limitado
	LowOddsThreshold = 1.10
	LowOddsMaxStake  = 50
)

// FromRank calcula a odd baseline de um piloto a partir do ranking de temporada
// (1 = líder). Monotônica no ranking, limitada ao range do mercado parlay.
func FromRank(rank int) float64 {
	safeRank := clampRank(rank)
	o := RankBase * math.Pow(1+RankGrowth, float64(safeRank-1))
	return round1(clamp(o, ParlayMinOdds, ParlayMaxOdds))
}

// HeadToHead calcula as odds dos dois lados de um confronto direto a partir
// dos rankings. Probabilidade via sigmoide da diferença de ranking, preço com
// margem da casa. Simétrica: HeadToHead(a,b) espelha HeadToHead(b,a).
func HeadToHead(rankA, rankB int) (oddsA, oddsB float64) {
	ra := clampRank(rankA)
	rb := clampRank(rankB)

	probA := 1 / (1 + math.Exp(H2HSensitivity*float64(ra-rb)))
	probB := 1 - probA

	margin := 1 + H2HHouseEdge

	oddsA = round2(clamp(1/(probA*margin), H2HMinOdds, H2HMaxOdds))
	oddsB = round2(clamp(1/(probB*margin), H2HMinOdds, H2HMaxOdds))
	return oddsA, oddsB
}

// Live calcula a odd pari-mutuel de um piloto no mercado parlay: pool de
// pagamento (total menos edge) dividido pelo stake pendente naquele piloto.
// Sem stake no piloto (ou pool vazio) cai no baseline por ranking.
func Live(outcomePool, totalPool int64, rank int) float64 {
	if outcomePool <= 0 || totalPool <= 0 {
		return FromRank(rank)
	}
	payoutPool := float64(totalPool) * (1 - ParlayHouseEdge)
	return round1(clamp(payoutPool/float64(outcomePool), ParlayMinOdds, ParlayMaxOdds))
}

// Payout é o ganho de um stake a uma odd: floor(stake * odd), em tokens inteiros.
func Payout(stake int64, odd float64) int64 {
	return int64(math.Floor(float64(stake) * odd))
}

func clampRank(rank int) int {
	if rank < 1 {
		return MaxRank // ranking ausente/ inválido conta como lanterna
	}
	if rank > MaxRank {
		return MaxRank
	}
	return rank
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
