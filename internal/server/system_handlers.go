package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatusResponse describes host and dataset health.
type SystemStatusResponse struct {
	Status           string  `json:"status"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	Goroutines       int     `json:"goroutines"`
	CPUPercent       float64 `json:"cpu_percent"`
	MemUsedPercent   float64 `json:"mem_used_percent"`
	MemAllocMB       uint64  `json:"mem_alloc_mb"`
	ObservationCount int     `json:"observation_count"`
	FundCount        int     `json:"fund_count"`
}

// handleSystemStatus reports process, host, and dataset statistics.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := SystemStatusResponse{
		Status:        "running",
		UptimeSeconds: time.Since(s.started).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		MemAllocMB:    m.Alloc / 1024 / 1024,
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		response.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		response.MemUsedPercent = vm.UsedPercent
	}

	if count, err := s.store.Count(); err == nil {
		response.ObservationCount = count
	}
	if funds, err := s.store.ListFunds(); err == nil {
		response.FundCount = len(funds)
	}

	s.writeJSON(w, http.StatusOK, response)
}
