// Package metrics collects time series from an evolving cloud.
//
// Collectors are driven through the evolution callback contract:
//
//	pn := metrics.NewParticleNumber(constants)
//	vis := metrics.NewVisibility(constants)
//	evo.Run(ctx, cloud, 0.1, metrics.Callbacks(pn, vis), 0.002, false)
//	series := vis.Series()
package metrics
