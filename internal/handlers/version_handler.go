package handlers

import (
	"net/http"
)

// Version information injected at build time
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

type VersionResponse struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
}

// VersionHandler reports the build of the running conflict engine
// @Summary Server version
// @Tags health
// @Produce json
// @Success 200 {object} VersionResponse
// @Router /api/version [get]
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, VersionResponse{
		Service:   "hotelpms-conflicts",
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
	})
}
