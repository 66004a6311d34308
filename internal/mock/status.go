package mock

import (
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Status summarises the mock for the control API.
type Status struct {
	Clients   int       `json:"clients"`
	Responses int       `json:"responses"`
	StartedAt time.Time `json:"started_at"`
	PID       int       `json:"pid"`
	RSSBytes  uint64    `json:"rss_bytes,omitempty"`
	CPU       float64   `json:"cpu_percent,omitempty"`
	Threads   int32     `json:"threads,omitempty"`
}

// Status reports connection counts and the mock's own resource usage.
// Process figures are left zero when the platform cannot supply them.
func (s *Server) Status() Status {
	s.mu.RLock()
	st := Status{
		Responses: len(s.responses),
		StartedAt: s.started,
		PID:       os.Getpid(),
	}
	s.mu.RUnlock()
	st.Clients = s.ClientCount()

	proc, err := process.NewProcess(int32(st.PID))
	if err != nil {
		return st
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		st.RSSBytes = mem.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		st.CPU = cpu
	}
	if n, err := proc.NumThreads(); err == nil {
		st.Threads = n
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}
