package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List persisted knowledge collections",
	Args:  cobra.NoArgs,
	RunE:  runCollections,
}

func runCollections(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	mgr, err := getManager(ctx)
	if err != nil {
		return err
	}

	names, err := mgr.Collections()
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	if len(names) == 0 {
		fmt.Println("No collections. Build one with 'otto ingest <name> <dir>'.")
		return nil
	}

	for _, name := range names {
		stats, err := mgr.CollectionStats(name)
		if err != nil {
			fmt.Printf("%s\t(unreadable: %v)\n", name, err)
			continue
		}
		fmt.Printf("%s\t%d chunks\tmodel=%s\tbuilt=%s\n",
			stats.Name, stats.Chunks, stats.EmbeddingModel,
			stats.BuiltAt.Format("2006-01-02 15:04"))
	}
	return nil
}
