package commands

import (
	"strconv"

	"github.com/marmos91/mdsessiond/pkg/sessionmap"
)

// SessionRow is one rendered row of a Session Map dump, with exported,
// tagged fields so json/yaml output carries field names rather than bare
// arrays.
type SessionRow struct {
	Name               string `json:"name" yaml:"name"`
	Addr               string `json:"addr" yaml:"addr"`
	State              string `json:"state" yaml:"state"`
	StateSeq           uint64 `json:"state_seq" yaml:"state_seq"`
	HumanName          string `json:"human_name" yaml:"human_name"`
	PreallocInos       int    `json:"prealloc_inos" yaml:"prealloc_inos"`
	UsedInos           int    `json:"used_inos" yaml:"used_inos"`
	CompletedRequests  int    `json:"completed_requests" yaml:"completed_requests"`
}

// DumpView collects a SessionMapStore's rows for rendering through
// internal/cli/output, implementing both sessionmap.Formatter (so it can
// be the sink of a Dump call) and output.TableRenderer. It lives here
// rather than in pkg/sessionmap so the core package stays free of a
// dependency on the CLI's output formatting.
type DumpView struct {
	Sessions []SessionRow `json:"sessions" yaml:"sessions"`
}

// WriteSession implements sessionmap.Formatter.
func (v *DumpView) WriteSession(name string, s *sessionmap.Session) {
	v.Sessions = append(v.Sessions, SessionRow{
		Name:              name,
		Addr:              s.Info.Inst.Addr,
		State:             s.State.String(),
		StateSeq:          s.StateSeq,
		HumanName:         s.HumanName,
		PreallocInos:      len(s.Info.PreallocInos),
		UsedInos:          len(s.Info.UsedInos),
		CompletedRequests: len(s.Info.CompletedRequests),
	})
}

// Headers implements output.TableRenderer.
func (v *DumpView) Headers() []string {
	return []string{"name", "addr", "state", "state_seq", "human_name", "prealloc_inos", "used_inos", "completed_requests"}
}

// Rows implements output.TableRenderer.
func (v *DumpView) Rows() [][]string {
	rows := make([][]string, 0, len(v.Sessions))
	for _, r := range v.Sessions {
		rows = append(rows, []string{
			r.Name,
			r.Addr,
			r.State,
			strconv.FormatUint(r.StateSeq, 10),
			r.HumanName,
			strconv.Itoa(r.PreallocInos),
			strconv.Itoa(r.UsedInos),
			strconv.Itoa(r.CompletedRequests),
		})
	}
	return rows
}
