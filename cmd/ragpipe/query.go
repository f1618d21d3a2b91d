package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	"github.com/kailas-cloud/ragpipe/internal/usecase/retriever"
)

type queryFlags struct {
	merge   string
	queryID string
	asJSON  bool
	warm    bool
}

var qFlags queryFlags

// queryCmd answers one query and prints the fused results.
var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Answer a query with a configured merge and print the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			return fmt.Errorf("query is required")
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runQuery(ctx, cmd.OutOrStdout(), text)
	},
}

func init() {
	queryCmd.Flags().StringVarP(&qFlags.merge, "merge", "m", "", "merge to answer with (default: first enabled merge)")
	queryCmd.Flags().StringVar(&qFlags.queryID, "query-id", "", "correlation id (default: random UUID)")
	queryCmd.Flags().BoolVar(&qFlags.asJSON, "json", false, "print results as JSON")
	queryCmd.Flags().BoolVar(&qFlags.warm, "warm", false, "prebuild document representations of every merge first")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(ctx context.Context, out io.Writer, text string) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger, err := newLogger(flags, cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if qFlags.warm {
		if err := a.retriever.Warm(ctx, a.state); err != nil {
			return fmt.Errorf("warm document representations: %w", err)
		}
	}

	queryID := qFlags.queryID
	if queryID == "" {
		queryID = uuid.NewString()
	}
	merge := qFlags.merge
	if merge == "" {
		merge = a.retriever.DefaultMerge()
	}

	start := time.Now()
	results, err := a.retriever.Answer(ctx, text, a.state, retriever.AnswerOptions{
		Merge:   merge,
		QueryID: queryID,
	})
	if err != nil {
		return err
	}

	if qFlags.asJSON {
		return printJSON(out, queryID, merge, results)
	}
	printResults(out, queryID, merge, results, time.Since(start))
	return nil
}

type jsonResult struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Content any     `json:"content"`
}

func printJSON(out io.Writer, queryID, merge string, results []result.Result) error {
	items := make([]jsonResult, len(results))
	for i := range results {
		items[i] = jsonResult{ID: results[i].ID(), Score: results[i].Score(), Content: results[i].Content()}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"query_id": queryID,
		"merge":    merge,
		"results":  items,
	})
}

func printResults(out io.Writer, queryID, merge string, results []result.Result, took time.Duration) {
	header := color.New(color.FgCyan, color.Bold)
	idColor := color.New(color.FgYellow)
	scoreColor := color.New(color.FgGreen)
	dim := color.New(color.Faint)

	header.Fprintf(out, "merge %s", merge)
	dim.Fprintf(out, "  query_id=%s  took=%s\n", queryID, took.Round(time.Millisecond))
	if len(results) == 0 {
		dim.Fprintln(out, "no results")
		return
	}
	for i := range results {
		r := &results[i]
		fmt.Fprintf(out, "%3d. ", i+1)
		idColor.Fprintf(out, "%-28s", r.ID())
		scoreColor.Fprintf(out, " %.6f  ", r.Score())
		fmt.Fprintln(out, contentLine(r.Content()))
	}
}

// contentLine renders content on a single line, truncated for the terminal.
func contentLine(v any) string {
	const maxLen = 120
	var s string
	switch c := v.(type) {
	case string:
		s = c
	case nil:
		s = ""
	default:
		data, err := json.Marshal(c)
		if err != nil {
			s = fmt.Sprint(c)
		} else {
			s = string(data)
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxLen {
		s = string(r[:maxLen-3]) + "..."
	}
	return s
}
