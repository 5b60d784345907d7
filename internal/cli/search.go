package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <collection> <query>",
	Short: "Run a similarity query against a collection",
	Long: `Search embeds the query and returns the closest chunks by cosine distance
(lower is more similar).

Examples:
  otto search main "photosynthesis"
  otto search essay_criteria "argumentation" -n 3`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "max results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	name, query := args[0], args[1]
	ctx := context.Background()

	mgr, err := getManager(ctx)
	if err != nil {
		return err
	}

	hits, err := mgr.Search(ctx, name, query, searchLimit, nil)
	if err != nil {
		return fmt.Errorf("search %q: %w", name, err)
	}
	if len(hits) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, hit := range hits {
		source := hit.Metadata["source"]
		if source == "" {
			source = "unknown"
		}
		fmt.Printf("%d. distance=%.4f  source=%s\n", i+1, hit.Distance, source)
		fmt.Printf("   %s\n\n", truncate(hit.Content, 280))
	}
	return nil
}

// truncate shortens s to at most n runes so multi-byte characters are never
// split mid-sequence.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
