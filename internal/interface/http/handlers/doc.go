// Package handlers contains reusable HTTP building blocks: health checks
// and gin middleware.
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks
// that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v0.1.0")
//	checker.AddCheck("postgres", handlers.NewPingCheck(conn))
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//
//	router.GET("/health", handlers.Health(checker))
//
// # Middleware
//
//	router.Use(
//	    handlers.RequestID(),
//	    handlers.RequestLogger(log),
//	    handlers.Recovery(log),
//	)
package handlers
