package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/WKowalczykDev/EntranceControl/internal/constants"
	"github.com/WKowalczykDev/EntranceControl/internal/embeddings"
)

var embeddingsCmd = &cobra.Command{
	Use:   "embeddings",
	Short: "Inspect and rebuild reference embeddings",
}

var embeddingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reference embeddings",
	Args:  cobra.NoArgs,
	RunE:  runEmbeddingsList,
}

var embeddingsRebuildCmd = &cobra.Command{
	Use:   "rebuild [person-id...]",
	Short: "Rebuild reference embeddings from enrollment images",
	Long: `Recompute the reference embedding of the given persons from their
enrollment images. With --all every active person is rebuilt.
The embedding snapshot is written after every successful rebuild.`,
	RunE: runEmbeddingsRebuild,
}

func init() {
	rootCmd.AddCommand(embeddingsCmd)
	embeddingsCmd.AddCommand(embeddingsListCmd)
	embeddingsCmd.AddCommand(embeddingsRebuildCmd)

	embeddingsRebuildCmd.Flags().Bool("all", false, "Rebuild every active person")
	embeddingsRebuildCmd.Flags().Int("concurrency", constants.RebuildWorkers, "Number of parallel rebuilds")
}

func runEmbeddingsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	entries := a.store.Entries()
	if len(entries) == 0 {
		fmt.Println("No reference embeddings stored")
		return nil
	}

	fmt.Printf("\n%-36s  %-20s  %s\n", "PERSON", "UPDATED", "DIM")
	for _, e := range entries {
		fmt.Printf("%-36s  %-20s  %d\n", e.PersonID, e.UpdatedAt.Format("2006-01-02 15:04:05"), len(e.Vector))
	}
	fmt.Printf("\nTotal: %d\n", len(entries))
	return nil
}

func runEmbeddingsRebuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	all := mustGetBool(cmd, "all")
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	if all == (len(args) > 0) {
		return errors.New("pass person IDs or --all, not both")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	personIDs := args
	if all {
		persons, err := a.directory.ListPersons(ctx, true)
		if err != nil {
			return fmt.Errorf("listing persons: %w", err)
		}
		for _, p := range persons {
			personIDs = append(personIDs, p.ID)
		}
	}
	if len(personIDs) == 0 {
		fmt.Println("No persons to rebuild")
		return nil
	}

	fmt.Printf("Persons to rebuild: %d\n\n", len(personIDs))

	bar := progressbar.NewOptions(len(personIDs),
		progressbar.OptionSetDescription("Rebuilding embeddings"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("persons"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var successCount, noEnrollmentCount int
	var failures []string
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, id := range personIDs {
		wg.Add(1)
		go func(personID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			_, err := a.store.RebuildFromProvider(ctx, personID, a.images)

			mu.Lock()
			switch {
			case err == nil:
				successCount++
			case errors.Is(err, embeddings.ErrNoEnrollment):
				noEnrollmentCount++
			default:
				failures = append(failures, fmt.Sprintf("%s: %v", personID, err))
			}
			mu.Unlock()
			_ = bar.Add(1)
		}(id)
	}

	wg.Wait()
	fmt.Println()

	fmt.Printf("\nRebuild complete!\n")
	fmt.Printf("  Rebuilt:        %d\n", successCount)
	fmt.Printf("  No enrollment:  %d\n", noEnrollmentCount)
	fmt.Printf("  Failed:         %d\n", len(failures))
	for _, f := range failures {
		fmt.Printf("    %s\n", f)
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d rebuilds failed", len(failures))
	}
	return nil
}
