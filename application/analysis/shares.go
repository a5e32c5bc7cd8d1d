package analysis

// ComputeShares turns per-response option mappings into per-option shares of
// the total run count. Identical responses each count once per run. A
// response naming several options contributes to each of them, so shares may
// sum above 1.0.
func ComputeShares(responses []string, mappings map[string][]string) map[string]float64 {
	shares := make(map[string]float64)
	total := len(responses)
	if total == 0 {
		return shares
	}

	counts := make(map[string]int)
	for _, r := range responses {
		options := mappings[r]
		seen := make(map[string]bool, len(options))
		for _, opt := range options {
			if opt == "" || seen[opt] {
				continue
			}
			seen[opt] = true
			counts[opt]++
		}
	}

	for opt, n := range counts {
		shares[opt] = float64(n) / float64(total)
	}
	return shares
}
