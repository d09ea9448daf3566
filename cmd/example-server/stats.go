package main

import (
	"encoding/json"
	"net/http"

	"admission-gateway/middleware/ratelimit/infra"
)

type statsResponse struct {
	Allowed     int64  `json:"allowed"`
	Quota       int64  `json:"deniedQuota"`
	Suspicious  int64  `json:"deniedSuspicious"`
	Entries     int    `json:"cacheEntries"`
	Evictions   uint64 `json:"cacheEvictions"`
	Expirations uint64 `json:"cacheExpirations"`
}

func writeStats(w http.ResponseWriter, c infra.Counters, st infra.CacheStats) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statsResponse{
		Allowed:     c.Allowed,
		Quota:       c.Quota,
		Suspicious:  c.Suspicious,
		Entries:     st.Entries,
		Evictions:   st.Evictions,
		Expirations: st.Expirations,
	})
}
