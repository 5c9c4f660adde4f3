package prediction

// Coverage describes how many predicted article IDs a catalog knows.
type Coverage struct {
	Lists    int `json:"lists"`
	Items    int `json:"items"`
	Distinct int `json:"distinct"`
	Known    int `json:"known"`
}

// Ratio is Known/Distinct, or 0 with no items.
func (c Coverage) Ratio() float64 {
	if c.Distinct == 0 {
		return 0
	}
	return float64(c.Known) / float64(c.Distinct)
}

// MeasureCoverage counts the distinct article IDs of preds for which
// known returns true.
func MeasureCoverage(preds []Record, known func(id string) bool) Coverage {
	c := Coverage{Lists: len(preds)}
	seen := make(map[string]struct{})
	for _, p := range preds {
		c.Items += len(p.RecList)
		for _, id := range p.RecList {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			if known(id) {
				c.Known++
			}
		}
	}
	c.Distinct = len(seen)
	return c
}
