/*
Package observability exports Prometheus metrics for the Turnstile orchestrator.

Metrics are bound through domain.LifecycleHooks, so the runtime stays unaware of
the collectors:

	m := observability.NewMetrics(prometheus.DefaultRegisterer)
	engine := turnstile.New(store, gen, turnstile.WithLifecycleHooks(m.Hooks()))
*/
package observability
