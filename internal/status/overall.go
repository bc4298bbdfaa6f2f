package status

// Overall is the rolled-up status of a set of assets.
type Overall struct {
	State     State         `json:"state"`
	Progress  int           `json:"progress"`
	Total     int           `json:"total"`
	Breakdown map[State]int `json:"breakdown"`
}

// CalculateOverall rolls statuses up into one state and an integer-floor
// average progress. The cascade below is ordered; the first match wins:
//
//	any broken            -> broken
//	blocked > 30%         -> blocked
//	any building          -> building
//	all built             -> built
//	backlogged > 50%      -> backlogged
//	otherwise             -> building
//
// An empty input yields backlogged/0.
func CalculateOverall(statuses []StatusInfo) Overall {
	out := Overall{State: Backlogged, Breakdown: make(map[State]int, len(States))}
	for _, s := range States {
		out.Breakdown[s] = 0
	}
	n := len(statuses)
	if n == 0 {
		return out
	}

	total := 0
	for _, raw := range statuses {
		s := Normalize(raw)
		out.Breakdown[s.State]++
		total += s.Progress
	}
	out.Total = n
	out.Progress = floorDiv(total, n)

	c := out.Breakdown
	switch {
	case c[Broken] > 0:
		out.State = Broken
	case c[Blocked]*10 > n*3:
		out.State = Blocked
	case c[Building] > 0:
		out.State = Building
	case c[Built] == n:
		out.State = Built
	case c[Backlogged]*2 > n:
		out.State = Backlogged
	default:
		out.State = Building
	}
	return out
}

// floorDiv rounds toward negative infinity so out-of-range negative progress
// values average the same way integer floor division does.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
