package model

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"archstatus/internal/status"
)

// Saturation points and weights for the reliability components.
const (
	activityCap     = 50.0
	connectivityCap = 20.0
	authorsCap      = 5.0

	activityWeight     = 0.40
	centralityWeight   = 0.25
	connectivityWeight = 0.20
	authorsWeight      = 0.15
)

// ComputeReliability scores how much an asset's status can be trusted,
// from its recent activity, graph centrality, connectivity and author count.
// The result is in [0,1], rounded to three decimals.
func ComputeReliability(a Asset) float64 {
	sum := activityScore(a.Analytics.ActivityLast30Days)*activityWeight +
		centralityScore(a.Analytics.CentralityScore)*centralityWeight +
		connectivityScore(a.Analytics.Connectivity)*connectivityWeight +
		authorsScore(a.Metadata.Authors)*authorsWeight
	return round3(clamp(sum, 0, 1))
}

// BuildEvidence returns one entry per collected signal, each scored on its
// own normalized scale rather than its composite weight.
func BuildEvidence(a Asset) []status.Evidence {
	var out []status.Evidence
	if a.Analytics.ActivityLast30Days != nil {
		out = append(out, status.Evidence{
			Type:  "activityLast30Days",
			Ref:   a.Location,
			Score: activityScore(a.Analytics.ActivityLast30Days),
			Note:  "Commit activity over last 30 days",
		})
	}
	if a.Analytics.CentralityScore != nil {
		out = append(out, status.Evidence{
			Type:  "centralityScore",
			Ref:   a.Location,
			Score: centralityScore(a.Analytics.CentralityScore),
			Note:  "Graph centrality within repository network",
		})
	}
	if a.Analytics.Connectivity != nil {
		out = append(out, status.Evidence{
			Type:  "connectivity",
			Ref:   a.Location,
			Score: connectivityScore(a.Analytics.Connectivity),
			Note:  "Number of directly connected edges",
		})
	}
	if len(a.Metadata.Authors) > 0 {
		out = append(out, status.Evidence{
			Type:  "authors",
			Ref:   strings.Join(a.Metadata.Authors, ","),
			Score: authorsScore(a.Metadata.Authors),
			Note:  "Active contributors",
		})
	}
	return out
}

func activityScore(v *float64) float64 {
	if v == nil {
		return 0
	}
	return clamp(*v/activityCap, 0, 1)
}

func centralityScore(v *float64) float64 {
	if v == nil {
		return 0
	}
	return clamp(*v, 0, 1)
}

func connectivityScore(v *float64) float64 {
	if v == nil {
		return 0
	}
	return clamp(*v/connectivityCap, 0, 1)
}

func authorsScore(authors []string) float64 {
	return math.Min(float64(len(authors))/authorsCap, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func round3(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(3).Float64()
	return f
}
