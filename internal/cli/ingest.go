package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const timeRound = 10 * time.Millisecond

var ingestCmd = &cobra.Command{
	Use:   "ingest <collection> <source-dir>",
	Short: "Build a knowledge collection from a document directory",
	Long: `Ingest loads every supported document (.pdf, .docx, .txt, .md, .csv, .json)
under the source directory, chunks and embeds the content, and publishes it
as a named collection.

Ingest replaces: an existing collection of the same name is rebuilt from
scratch and swapped atomically. Unreadable files are skipped with a warning.

Examples:
  otto ingest main ./docs
  otto ingest essay_criteria ./criteria/enem`,
	Args: cobra.ExactArgs(2),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	name, sourceDir := args[0], args[1]
	ctx := context.Background()

	mgr, err := getManager(ctx)
	if err != nil {
		return err
	}

	result, err := mgr.Build(ctx, name, sourceDir)
	if err != nil {
		return fmt.Errorf("build collection %q: %w", name, err)
	}

	fmt.Printf("Collection %q built: %d documents, %d chunks (%d files skipped) in %s\n",
		result.Collection, result.Documents, result.Chunks, result.SkippedFiles,
		result.Duration.Round(timeRound))
	return nil
}
