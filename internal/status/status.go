// Package status canonicalizes the historical status shapes an asset may
// carry into a single StatusInfo.
//
// Four shapes are accepted:
//
//	{"state": "building", "progress": 50}        new object
//	{"phase": "orange", "completeness": 0.5}     legacy object
//	"building"                                   new string
//	"orange"                                     legacy string
//
// Anything else normalizes to backlogged/0/gray.
package status

import (
	"encoding/json"
	"math"
	"strings"
)

// State is one of the six canonical lifecycle labels.
type State string

const (
	Building   State = "building"
	Backlogged State = "backlogged"
	Blocked    State = "blocked"
	Burned     State = "burned"
	Built      State = "built"
	Broken     State = "broken"
)

// States lists every canonical state in display order.
var States = []State{Built, Building, Broken, Blocked, Backlogged, Burned}

// Phase is the older four-color status label.
type Phase string

const (
	Green  Phase = "green"
	Orange Phase = "orange"
	Red    Phase = "red"
	Gray   Phase = "gray"
)

var defaultProgress = map[State]int{
	Built:      100,
	Building:   50,
	Broken:     75,
	Backlogged: 0,
	Blocked:    40,
	Burned:     0,
}

var stateToPhase = map[State]Phase{
	Built:      Green,
	Building:   Orange,
	Broken:     Red,
	Backlogged: Gray,
	Blocked:    Orange,
	Burned:     Gray,
}

var phaseToState = map[Phase]State{
	Green:  Built,
	Orange: Building,
	Red:    Broken,
	Gray:   Backlogged,
}

// Legacy strings carry their own progress, distinct from the state table.
var phaseProgress = map[Phase]int{
	Green:  100,
	Orange: 50,
	Red:    0,
	Gray:   0,
}

const (
	defaultCompleteness = 0.5
	defaultLegacyScore  = 0.7
)

// Valid reports whether s is a canonical state.
func (s State) Valid() bool {
	_, ok := defaultProgress[s]
	return ok
}

// DefaultProgress returns the table progress for s, or 0 when s is unknown.
func (s State) DefaultProgress() int {
	return defaultProgress[s]
}

// Phase maps s onto its legacy color. blocked and burned collapse onto
// orange and gray, so the mapping is not invertible for them.
func (s State) Phase() Phase {
	if p, ok := stateToPhase[s]; ok {
		return p
	}
	return Gray
}

// Valid reports whether p is one of the four legacy colors.
func (p Phase) Valid() bool {
	_, ok := phaseToState[p]
	return ok
}

// State maps p onto its canonical state.
func (p Phase) State() State {
	if s, ok := phaseToState[p]; ok {
		return s
	}
	return Backlogged
}

// Quality carries optional quality annotations.
type Quality struct {
	QualityScore *float64 `json:"qualityScore,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	AIConfidence *float64 `json:"ai_confidence,omitempty"`
}

// Legacy keeps the four-color label alongside the canonical state.
type Legacy struct {
	Phase        Phase    `json:"phase"`
	Completeness *float64 `json:"completeness,omitempty"`
}

// Evidence is one independently scored observation backing a reliability
// figure.
type Evidence struct {
	Type  string  `json:"type"`
	Ref   string  `json:"ref"`
	Score float64 `json:"score"`
	Note  string  `json:"note"`
}

// StatusInfo is the canonical status record. Progress is not clamped here
// so that out-of-range inputs remain visible to validation.
type StatusInfo struct {
	State       State      `json:"state"`
	Progress    int        `json:"progress"`
	Quality     *Quality   `json:"quality,omitempty"`
	Legacy      Legacy     `json:"legacy"`
	Reliability *float64   `json:"reliability,omitempty"`
	Evidence    []Evidence `json:"evidence,omitempty"`
}

// UnmarshalJSON accepts any of the four status shapes and normalizes it.
func (s *StatusInfo) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Normalize(v)
	return nil
}

// Default is the status assigned to missing or unrecognized input.
func Default() StatusInfo {
	return StatusInfo{State: Backlogged, Progress: 0, Legacy: Legacy{Phase: Gray}}
}

// Normalize converts v into a StatusInfo. v may be a string, a decoded JSON
// object, a StatusInfo, or raw JSON bytes of any of those. Normalize is
// idempotent.
func Normalize(v any) StatusInfo {
	switch x := v.(type) {
	case StatusInfo:
		return normalizeInfo(x)
	case *StatusInfo:
		if x == nil {
			return Default()
		}
		return normalizeInfo(*x)
	case string:
		return normalizeString(x)
	case State:
		return normalizeString(string(x))
	case Phase:
		return normalizeString(string(x))
	case map[string]any:
		return normalizeMap(x)
	case json.RawMessage:
		return normalizeBytes(x)
	case []byte:
		return normalizeBytes(x)
	}
	return Default()
}

// StateOf returns the normalized state of v.
func StateOf(v any) State {
	return Normalize(v).State
}

// ProgressOf returns the normalized progress of v.
func ProgressOf(v any) int {
	return Normalize(v).Progress
}

// New builds a well-formed StatusInfo for state with its table progress.
// An unknown state yields Default().
func New(state State) StatusInfo {
	if !state.Valid() {
		return Default()
	}
	return StatusInfo{
		State:    state,
		Progress: defaultProgress[state],
		Legacy:   Legacy{Phase: stateToPhase[state]},
	}
}

// WithProgress returns a copy of s with progress clamped to [0,100].
func (s StatusInfo) WithProgress(p int) StatusInfo {
	s.Progress = min(max(p, 0), 100)
	return s
}

// WithQuality returns a copy of s with a quality score clamped to [0,1].
func (s StatusInfo) WithQuality(score float64, notes string) StatusInfo {
	q := Quality{}
	if s.Quality != nil {
		q = *s.Quality
	}
	score = clamp01(score)
	q.QualityScore = &score
	q.Notes = notes
	s.Quality = &q
	return s
}

// WithReliability returns a copy of s carrying r (clamped to [0,1]) and the
// supporting evidence.
func (s StatusInfo) WithReliability(r float64, evidence []Evidence) StatusInfo {
	r = clamp01(r)
	s.Reliability = &r
	s.Evidence = evidence
	return s
}

func normalizeInfo(s StatusInfo) StatusInfo {
	if !s.State.Valid() {
		if s.Legacy.Phase.Valid() {
			return fromPhaseString(s.Legacy.Phase)
		}
		return Default()
	}
	if !s.Legacy.Phase.Valid() {
		s.Legacy.Phase = stateToPhase[s.State]
	}
	return s
}

func normalizeString(raw string) StatusInfo {
	key := strings.ToLower(strings.TrimSpace(raw))
	if st := State(key); st.Valid() {
		return New(st)
	}
	if p := Phase(key); p.Valid() {
		return fromPhaseString(p)
	}
	return Default()
}

func fromPhaseString(p Phase) StatusInfo {
	return StatusInfo{
		State:    phaseToState[p],
		Progress: phaseProgress[p],
		Legacy:   Legacy{Phase: p},
	}
}

func normalizeBytes(data []byte) StatusInfo {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Default()
	}
	return Normalize(v)
}

func normalizeMap(m map[string]any) StatusInfo {
	if st := State(lowerString(m["state"])); st.Valid() {
		return fromNewMap(st, m)
	}
	if p := Phase(lowerString(m["phase"])); p.Valid() {
		return fromLegacyMap(p, m)
	}
	return Default()
}

func fromNewMap(st State, m map[string]any) StatusInfo {
	out := StatusInfo{State: st, Progress: defaultProgress[st]}
	if p, ok := number(m["progress"]); ok && !math.IsNaN(p) {
		out.Progress = roundProgress(p)
	}
	if q, ok := m["quality"].(map[string]any); ok {
		out.Quality = qualityFromMap(q)
	}
	out.Legacy.Phase = stateToPhase[st]
	if l, ok := m["legacy"].(map[string]any); ok {
		if p := Phase(lowerString(l["phase"])); p.Valid() {
			out.Legacy.Phase = p
		}
		if c, ok := number(l["completeness"]); ok {
			out.Legacy.Completeness = &c
		}
	}
	if r, ok := number(m["reliability"]); ok {
		out.Reliability = &r
	}
	if ev, ok := m["evidence"].([]any); ok {
		out.Evidence = evidenceFromList(ev)
	}
	return out
}

// progressLimit bounds recorded progress. Values past it saturate so that
// they stay invalid without overflowing an int.
const progressLimit = 1_000_000

func roundProgress(p float64) int {
	p = math.Round(p)
	switch {
	case p > progressLimit:
		return progressLimit
	case p < -progressLimit:
		return -progressLimit
	}
	return int(p)
}

func fromLegacyMap(p Phase, m map[string]any) StatusInfo {
	completeness := defaultCompleteness
	if c, ok := number(m["completeness"]); ok {
		completeness = c
	}
	score := defaultLegacyScore
	if q, ok := number(m["qualityScore"]); ok {
		score = q
	}
	notes, _ := m["notes"].(string)
	return StatusInfo{
		State:    phaseToState[p],
		Progress: int(math.Round(completeness * 100)),
		Quality:  &Quality{QualityScore: &score, Notes: notes},
		Legacy:   Legacy{Phase: p, Completeness: &completeness},
	}
}

func qualityFromMap(m map[string]any) *Quality {
	q := &Quality{}
	if s, ok := number(m["qualityScore"]); ok {
		q.QualityScore = &s
	}
	if c, ok := number(m["ai_confidence"]); ok {
		q.AIConfidence = &c
	}
	q.Notes, _ = m["notes"].(string)
	return q
}

func evidenceFromList(list []any) []Evidence {
	out := make([]Evidence, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e := Evidence{}
		e.Type, _ = m["type"].(string)
		e.Ref, _ = m["ref"].(string)
		e.Note, _ = m["note"].(string)
		e.Score, _ = number(m["score"])
		out = append(out, e)
	}
	return out
}

func lowerString(v any) string {
	s, _ := v.(string)
	return strings.ToLower(strings.TrimSpace(s))
}

// number accepts the numeric kinds produced by encoding/json and by callers
// building maps by hand.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
