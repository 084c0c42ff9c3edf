// Package health serves the liveness and readiness endpoints of the proxy.
//
// Readiness aggregates registered checks; a single unhealthy check makes
// the proxy report 503 so load balancers stop routing to it.
//
//	checker := health.NewChecker(version)
//	checker.RegisterCheck("upstream", func(ctx context.Context) health.Check {
//	    return health.Check{Status: health.StatusHealthy}
//	})
//	engine.GET("/healthz", checker.HealthHandler())
//	engine.GET("/readyz", checker.ReadinessHandler())
package health
