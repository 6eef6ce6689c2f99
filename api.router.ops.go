package main

import (
	"net/http"
	"net/http/pprof"

	"github.com/julienschmidt/httprouter"
)

// pprofProfiles are the runtime profiles served under /ops/debug/pprof/.
var pprofProfiles = []string{"heap", "allocs", "goroutine", "block", "mutex", "threadcreate"}

// SetupOpsRoutes injects the internal endpoints: configuration, statistics,
// maintenance switch, notification results and runtime variables. Profiling
// endpoints are only added when enabled.
func (api *APIHandler) SetupOpsRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.GET("/ops/configs", m.ops(api.GetConfigs))
	router.GET("/ops/stats", m.ops(api.GetStatistics))
	router.GET("/ops/maintenance", m.ops(api.Maintenance))
	router.GET("/ops/notifications/:id", m.ops(api.GetNotificationResult))
	router.GET("/ops/debug/vars", m.ops(GetMemStats))

	if !api.config.ProfilerEndpointsEnable {
		return router
	}

	router.GET("/ops/debug/pprof/", m.ops(wrapHandler(http.HandlerFunc(pprof.Index))))
	router.GET("/ops/debug/pprof/profile", m.ops(wrapHandler(http.HandlerFunc(pprof.Profile))))
	router.GET("/ops/debug/pprof/trace", m.ops(wrapHandler(http.HandlerFunc(pprof.Trace))))
	router.GET("/ops/debug/pprof/symbol", m.ops(wrapHandler(http.HandlerFunc(pprof.Symbol))))
	router.GET("/ops/debug/pprof/cmdline", m.ops(wrapHandler(http.HandlerFunc(pprof.Cmdline))))
	for _, name := range pprofProfiles {
		router.GET("/ops/debug/pprof/"+name, m.ops(wrapHandler(pprof.Handler(name))))
	}
	return router
}
