// Package ragpipe embeds a declarative retrieval pipeline in a Go program.
//
// A pipeline builds representations of document fields and of the query
// (BM25, dense embeddings, LLM transforms, raw items), pairs them in bridges,
// and fuses bridge rankings with reciprocal rank fusion or picks one bridge
// by expression. Indices live in memory, or in Redis / Valkey when a database
// is configured and the representation sets store: true.
//
//	client, _ := ragpipe.New(ctx,
//	    ragpipe.WithPipelineFile("config/pipeline.yaml"),
//	    ragpipe.WithDocumentsFile("data/startups.jsonl"),
//	    ragpipe.WithVectorizer("small", myEmbedder, nil),
//	)
//	defer client.Close()
//
//	results, _ := client.Answer(ctx, "healthcare", ragpipe.WithMerge("hybrid"))
//	for _, r := range results {
//	    fmt.Println(r.ID, r.Score, r.Content)
//	}
//
// Bridges may name a matchfn and an evalfn. Besides the builtins (match.exact,
// match.contains, eval.log, eval.metrics) a program registers its own with
// WithMatchFunc and WithEvalFunc.
package ragpipe
