package validate

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	apperrors "archstatus/internal/errors"
	"archstatus/internal/model"
	"archstatus/internal/status"
)

// Input is what every check reads: the status document as a generic JSON
// object plus the raw agent results. An Input is shared read-only by all
// checks of a run and must not be modified once a run starts.
type Input struct {
	Report map[string]any
	Agents map[string]any
	// Now is the reference time for age checks. Zero means time.Now.
	Now time.Time

	once    sync.Once
	payload []byte
	err     error
}

// NewInput builds an Input from an already-parsed document.
func NewInput(doc *model.Document, agents map[string]any) (*Input, error) {
	m, err := doc.Map()
	if err != nil {
		return nil, apperrors.Internal("convert document", err)
	}
	if agents == nil {
		agents = map[string]any{}
	}
	return &Input{Report: m, Agents: agents}, nil
}

// DecodeInput parses a status document and optional agent results. A
// malformed document, or one missing a required top-level field, is
// rejected as an input error before any rule runs. Statuses are
// normalized and, where no reliability is recorded, rated the way
// model.Document.Enrich rates them.
func DecodeInput(report, agents []byte) (*Input, error) {
	doc, err := model.Parse(report)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(report, &m); err != nil {
		return nil, apperrors.Wrap(apperrors.TypeInput, "malformed status document", err)
	}
	if err := normalizeStatuses(m, doc); err != nil {
		return nil, err
	}
	in := &Input{Report: m, Agents: map[string]any{}}
	if len(agents) > 0 {
		if err := json.Unmarshal(agents, &in.Agents); err != nil {
			return nil, apperrors.Wrap(apperrors.TypeInput, "malformed agent results", err)
		}
		if in.Agents == nil {
			in.Agents = map[string]any{}
		}
	}
	return in, nil
}

// normalizeStatuses rewrites every asset status present in m into its
// canonical shape. A recorded reliability is kept as is so that range
// checks still see it. Assets without a status are left alone.
func normalizeStatuses(m map[string]any, doc *model.Document) error {
	for i, a := range asSlice(m["assets"]) {
		asset := asMap(a)
		raw, ok := asset["status"]
		if !ok {
			continue
		}
		st := status.Normalize(raw)
		if st.Reliability == nil && i < len(doc.Assets) {
			st = st.WithReliability(model.ComputeReliability(doc.Assets[i]), model.BuildEvidence(doc.Assets[i]))
		}
		data, err := json.Marshal(st)
		if err != nil {
			return apperrors.Internal("normalize status", err)
		}
		var canonical map[string]any
		if err := json.Unmarshal(data, &canonical); err != nil {
			return apperrors.Internal("normalize status", err)
		}
		asset["status"] = canonical
	}
	return nil
}

func (in *Input) now() time.Time {
	if in.Now.IsZero() {
		return time.Now()
	}
	return in.Now
}

// payloadJSON returns the serialized report, computed once per Input.
func (in *Input) payloadJSON() ([]byte, error) {
	in.once.Do(func() {
		in.payload, in.err = json.Marshal(in.Report)
		if in.err != nil {
			in.err = fmt.Errorf("serialize report: %w", in.err)
		}
	})
	return in.payload, in.err
}

func (in *Input) assets() []any {
	return asSlice(in.Report["assets"])
}

func (in *Input) edges() []any {
	return asSlice(in.Report["edges"])
}

// agentNames returns the agent keys in sorted order.
func (in *Input) agentNames() []string {
	names := make([]string, 0, len(in.Agents))
	for k := range in.Agents {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// agentConfidences returns the numeric confidences of every agent, in
// agent name order.
func (in *Input) agentConfidences() []float64 {
	var out []float64
	for _, name := range in.agentNames() {
		if c, ok := asNumber(asMap(in.Agents[name])["confidence"]); ok {
			out = append(out, c)
		}
	}
	return out
}

// agentResultCount returns the length of Agents[agent].results[key], and
// whether the agent was present at all.
func (in *Input) agentResultCount(agent, key string) (int, bool) {
	a, ok := in.Agents[agent]
	if !ok {
		return 0, false
	}
	results := asMap(asMap(a)["results"])
	return len(asSlice(results[key])), true
}

// ---------------------------------------------------------------------------
// Generic JSON accessors
// ---------------------------------------------------------------------------

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asNumber(v any) (float64, bool) {
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

// numberOr returns m[key] as a number, def when absent, and ok=false when
// present but not numeric.
func numberOr(m map[string]any, key string, def float64) (float64, bool) {
	v, present := m[key]
	if !present || v == nil {
		return def, true
	}
	return asNumber(v)
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

// empty reports JSON falsiness: null, "", 0, false, [] and {}.
func empty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	if n, ok := asNumber(v); ok {
		return n == 0
	}
	return false
}

// hasCycle reports whether v contains itself. Identity is tracked along
// the current path only, so a value shared by two siblings is not a cycle.
func hasCycle(v any) bool {
	type key struct {
		ptr   uintptr
		len   int
		isMap bool
	}
	onPath := make(map[key]bool)
	var visit func(any) bool
	visit = func(v any) bool {
		switch x := v.(type) {
		case map[string]any:
			if len(x) == 0 {
				return false
			}
			k := key{ptr: reflect.ValueOf(x).Pointer(), isMap: true}
			if onPath[k] {
				return true
			}
			onPath[k] = true
			defer delete(onPath, k)
			for _, child := range x {
				if visit(child) {
					return true
				}
			}
		case []any:
			if len(x) == 0 {
				return false
			}
			k := key{ptr: reflect.ValueOf(x).Pointer(), len: len(x)}
			if onPath[k] {
				return true
			}
			onPath[k] = true
			defer delete(onPath, k)
			for _, child := range x {
				if visit(child) {
					return true
				}
			}
		}
		return false
	}
	return visit(v)
}
