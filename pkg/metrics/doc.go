// Package metrics exposes ledger, webhook and sweep counters to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	ledger := entitlement.New(store, catalog,
//		entitlement.WithObserver(metrics.NewLedgerCollector(reg)))
//	mux.Handle("/metrics", metrics.Handler(reg))
package metrics
