package ledger

// Stats é a visão agregada da janela retida pelo ledger
type Stats struct {
	Total                 int     `json:"total"`
	Processed             int     `json:"processed"`
	Failed                int     `json:"failed"`
	AverageResponseTimeMs float64 `json:"averageResponseTime"`
}

// Compute recalcula as estatísticas sobre as entradas
// Entradas sem tempo de resposta ficam fora da média; sem nenhuma, a média é 0
func Compute(entries []Entry) Stats {
	var (
		s     Stats
		sum   float64
		timed int
	)
	s.Total = len(entries)
	for _, e := range entries {
		if e.Processed {
			s.Processed++
		}
		if e.ResponseTimeMs != nil {
			sum += *e.ResponseTimeMs
			timed++
		}
	}
	s.Failed = s.Total - s.Processed
	if timed > 0 {
		s.AverageResponseTimeMs = sum / float64(timed)
	}
	return s
}
