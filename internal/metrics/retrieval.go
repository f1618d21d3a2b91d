package metrics

// Retrieval pipeline.
var (
	RepresentationBuildsTotal = counter("representation_builds_total",
		"Representation index builds by encoder, index kind and status", "encoder", "kind", "status")
	RepresentationBuildDuration = histogram("representation_build_duration_seconds",
		"Representation index build latency", []float64{.001, .01, .1, .5, 1, 5, 15, 60, 300}, "encoder")
	// IndexCacheLookupsTotal result is hit, miss or stored.
	IndexCacheLookupsTotal = counter("index_cache_lookups_total",
		"Index cache lookups", "result")

	BridgeEvalDuration = histogram("bridge_evaluation_duration_seconds",
		"Bridge evaluation latency", []float64{.001, .005, .01, .05, .1, .5, 1, 5}, "bridge")
	BridgeResults = histogram("bridge_results",
		"Scored references per bridge evaluation", []float64{0, 1, 5, 10, 25, 50, 100}, "bridge")
	MergesTotal = counter("merges_total",
		"Merge evaluations by method and status", "merge", "method", "status")

	// EvalResultsTotal is fed by the eval.metrics hook.
	EvalResultsTotal = counter("eval_results_total",
		"Scored references observed by the eval.metrics hook", "bridge")
)
