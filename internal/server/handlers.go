package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "dca-lab",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleSystemStatus handles system status requests
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	cpuPercent, ramPercent := s.hostStats()

	response := map[string]interface{}{
		"status":         "running",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc_mb":       m.Alloc / 1024 / 1024,
			"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
			"sys_mb":         m.Sys / 1024 / 1024,
			"num_gc":         m.NumGC,
		},
		"cpu_percent": cpuPercent,
		"ram_percent": ramPercent,
	}

	if s.db != nil {
		dbStatus := map[string]interface{}{"healthy": true}
		if err := s.db.HealthCheck(r.Context()); err != nil {
			dbStatus["healthy"] = false
			dbStatus["error"] = err.Error()
		}
		if stats, err := s.db.GetStats(); err == nil {
			dbStatus["size_bytes"] = stats.SizeBytes
			dbStatus["wal_size_bytes"] = stats.WALSizeBytes
			dbStatus["page_count"] = stats.PageCount
		}
		response["database"] = dbStatus
	}

	if s.scheduler != nil {
		response["scheduler"] = map[string]interface{}{
			"running": s.scheduler.Running(),
			"jobs":    s.scheduler.JobNames(),
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// hostStats returns CPU and RAM usage percentages. The CPU sample interval
// is kept short so the status endpoint stays fast.
func (s *Server) hostStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
