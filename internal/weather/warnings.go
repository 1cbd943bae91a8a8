package weather

import (
	"fmt"
	"sort"
	"time"

	"github.com/i474232898/bom-weather/internal/bom"
	"github.com/i474232898/bom-weather/internal/common"
)

// WarningKind is one of the warning categories this service tracks.
type WarningKind int

const (
	FloodWatch WarningKind = iota + 1
	FloodWarning
	SheepGraziers
	SevereThunderstorm
	SevereWeather
	MarineWind
	HazardousSurf
	Heatwave
	Frost
	BushwalkersAlert
	FireWeather
	TropicalCyclone
)

var warningKindSlugs = map[WarningKind]string{
	FloodWatch:         "flood_watch",
	FloodWarning:       "flood_warning",
	SheepGraziers:      "sheep_graziers",
	SevereThunderstorm: "severe_thunderstorm",
	SevereWeather:      "severe_weather",
	MarineWind:         "marine_wind",
	HazardousSurf:      "hazardous_surf",
	Heatwave:           "heatwave",
	Frost:              "frost",
	BushwalkersAlert:   "bushwalkers_alert",
	FireWeather:        "fire_weather",
	TropicalCyclone:    "tropical_cyclone",
}

// warningKindLookup maps every accepted raw type spelling to its kind.
var warningKindLookup = func() map[string]WarningKind {
	m := make(map[string]WarningKind, len(warningKindSlugs)*3)
	for kind, slug := range warningKindSlugs {
		m[slug] = kind
		m[slug+"_warning"] = kind
		m[slug+"_alert"] = kind
	}
	return m
}()

// WarningKinds lists every supported kind in declaration order.
func WarningKinds() []WarningKind {
	kinds := make([]WarningKind, 0, len(warningKindSlugs))
	for k := FloodWatch; k <= TropicalCyclone; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

func (k WarningKind) String() string {
	if s, ok := warningKindSlugs[k]; ok {
		return s
	}
	return fmt.Sprintf("warning_kind(%d)", int(k))
}

// MarshalText lets kinds be used as JSON object keys.
func (k WarningKind) MarshalText() ([]byte, error) {
	if _, ok := warningKindSlugs[k]; !ok {
		return nil, fmt.Errorf("unknown warning kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *WarningKind) UnmarshalText(text []byte) error {
	kind, ok := ParseWarningKind(string(text))
	if !ok {
		return fmt.Errorf("unknown warning kind %q", string(text))
	}
	*k = kind
	return nil
}

// ParseWarningKind matches a raw upstream type against the supported kinds,
// ignoring case and accepting "_warning" and "_alert" suffixed forms.
func ParseWarningKind(raw string) (WarningKind, bool) {
	kind, ok := warningKindLookup[common.Slug(raw)]
	return kind, ok
}

// Warning phases as reported upstream.
const (
	PhaseNew       = "new"
	PhaseUpdate    = "update"
	PhaseRenewal   = "renewal"
	PhaseDowngrade = "downgrade"
	PhaseUpgrade   = "upgrade"
	PhaseFinal     = "final"
	PhaseCancelled = "cancelled"
)

// WarningRecord is one upstream warning, with times parsed.
type WarningRecord struct {
	ID         string    `json:"id"`
	AreaID     string    `json:"areaId"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	ShortTitle string    `json:"shortTitle"`
	State      string    `json:"state"`
	GroupType  string    `json:"groupType"`
	IssueTime  time.Time `json:"issueTime"`
	ExpiryTime time.Time `json:"expiryTime"`
	Phase      string    `json:"phase"`
}

// Active reports whether the record is in force. A "final" phase still counts
// as active; only "cancelled" does not.
func (r WarningRecord) Active() bool {
	return r.Phase != PhaseCancelled
}

// NewWarningRecord converts an upstream warning. Unparseable times are left zero.
func NewWarningRecord(w bom.Warning) WarningRecord {
	return WarningRecord{
		ID:         w.ID,
		AreaID:     w.AreaID,
		Type:       w.Type,
		Title:      w.Title,
		ShortTitle: w.ShortTitle,
		State:      w.State,
		GroupType:  w.WarningGroupType,
		IssueTime:  parseTimeValue(w.IssueTime),
		ExpiryTime: parseTimeValue(w.ExpiryTime),
		Phase:      w.Phase,
	}
}

func parseTimeValue(s string) time.Time {
	if t := parseTime(&s); t != nil {
		return *t
	}
	return time.Time{}
}

// WarningState is the classified state of one kind. Record is the displayed
// record: the most recently issued active one, or the most recently issued
// cancelled one when nothing is active.
type WarningState struct {
	Kind         WarningKind    `json:"kind"`
	Active       bool           `json:"active"`
	GroupType    string         `json:"groupType,omitempty"`
	Phase        string         `json:"phase,omitempty"`
	IssueTime    time.Time      `json:"issueTime,omitempty"`
	ExpiryTime   time.Time      `json:"expiryTime,omitempty"`
	Record       *WarningRecord `json:"record,omitempty"`
	OtherIDs     []string       `json:"otherIds,omitempty"`
	CancelledIDs []string       `json:"cancelledIds,omitempty"`
	Count        int            `json:"count"`
}

// UnrecognizedWarning is a record whose type matched no supported kind.
type UnrecognizedWarning struct {
	RawType string        `json:"rawType"`
	Record  WarningRecord `json:"record"`
}

// WarningSummary is the classifier output. States holds an entry for every
// supported kind.
type WarningSummary struct {
	States       map[WarningKind]WarningState `json:"states"`
	Unrecognized []UnrecognizedWarning        `json:"unrecognized,omitempty"`
}

// State returns the state for kind.
func (s *WarningSummary) State(kind WarningKind) WarningState {
	if st, ok := s.States[kind]; ok {
		return st
	}
	return WarningState{Kind: kind}
}

// ActiveStates returns the active kinds in declaration order.
func (s *WarningSummary) ActiveStates() []WarningState {
	var out []WarningState
	for _, kind := range WarningKinds() {
		if st := s.State(kind); st.Active {
			out = append(out, st)
		}
	}
	return out
}

// Classify groups warning records by kind and picks the record to display
// for each. It is a pure function of its input.
func Classify(records []WarningRecord) *WarningSummary {
	summary := &WarningSummary{States: make(map[WarningKind]WarningState, len(warningKindSlugs))}
	groups := make(map[WarningKind][]WarningRecord)

	for _, r := range records {
		kind, ok := ParseWarningKind(r.Type)
		if !ok {
			summary.Unrecognized = append(summary.Unrecognized, UnrecognizedWarning{RawType: r.Type, Record: r})
			continue
		}
		groups[kind] = append(groups[kind], r)
	}

	for _, kind := range WarningKinds() {
		summary.States[kind] = classifyGroup(kind, groups[kind])
	}
	return summary
}

func classifyGroup(kind WarningKind, records []WarningRecord) WarningState {
	state := WarningState{Kind: kind}
	if len(records) == 0 {
		return state
	}

	var active, cancelled []WarningRecord
	for _, r := range records {
		if r.Active() {
			active = append(active, r)
		} else {
			cancelled = append(cancelled, r)
			state.CancelledIDs = append(state.CancelledIDs, r.ID)
		}
	}
	sort.Strings(state.CancelledIDs)

	shown := cancelled
	if len(active) > 0 {
		shown = active
		state.Active = true
		state.Count = len(active)
	}
	sortByIssueTime(shown)

	top := shown[0]
	state.Record = &top
	state.GroupType = top.GroupType
	state.Phase = top.Phase
	state.IssueTime = top.IssueTime
	state.ExpiryTime = top.ExpiryTime
	if state.Active {
		for _, r := range active[1:] {
			state.OtherIDs = append(state.OtherIDs, r.ID)
		}
	}
	return state
}

// sortByIssueTime orders records newest first, breaking ties by ID.
func sortByIssueTime(records []WarningRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].IssueTime.Equal(records[j].IssueTime) {
			return records[i].IssueTime.After(records[j].IssueTime)
		}
		return records[i].ID < records[j].ID
	})
}
