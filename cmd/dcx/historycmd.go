package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/dotcontext/dcx/internal/core"
	"github.com/dotcontext/dcx/internal/history"
	"github.com/dotcontext/dcx/internal/styles"
	"github.com/dotcontext/dcx/internal/tokens"
)

func runHistory(args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	maxCount := fs.Int("n", 5, "maximum number of entries to list")
	savePath := fs.String("save", "", "write the entry to a file; the extension selects the format")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Flag parsing stops at the first positional argument, but flags may
	// follow the id: `dcx history <id> -save result.txt`. Re-parse the
	// remainder after taking the id.
	recordID := ""
	if fs.NArg() > 0 {
		rest := fs.Args()
		recordID, rest = rest[0], rest[1:]
		if err := fs.Parse(rest); err != nil {
			return err
		}
	}

	manager, err := history.NewHistoryManager(core.HistoryFile())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	if recordID == "" {
		if *savePath != "" {
			return fmt.Errorf("-save requires a history entry id")
		}
		return listHistory(manager, *maxCount)
	}
	if *savePath != "" {
		return saveHistoryEntry(manager, recordID, *savePath, logger)
	}
	return showHistoryEntry(manager, recordID)
}

func listHistory(manager *history.HistoryManager, maxCount int) error {
	records, err := manager.List(maxCount)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println(styles.DIM("No history entries found."))
		return nil
	}

	fmt.Println(styles.HEADING("Recent Queries:"))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tSETS\tMODEL\tQUERY")
	for _, record := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			record.RecordID,
			record.CreatedAt.Format("2006-01-02 15:04"),
			record.SetNames,
			record.ModelName,
			truncate(record.Query, 40),
		)
	}
	w.Flush()

	fmt.Println(styles.DIM("\nUse 'dcx history <id>' to view full details"))
	fmt.Println(styles.DIM("Use 'dcx history <id> -save <path>' to save to a file"))
	return nil
}

func showHistoryEntry(manager *history.HistoryManager, recordID string) error {
	record, err := manager.Get(recordID)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", styles.HEADING("Query ID:"), styles.NAME(record.RecordID))
	fmt.Printf("%s %s\n", styles.HEADING("Date:"), record.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("%s %s\n", styles.HEADING("Context Sets:"), record.SetNames)
	fmt.Printf("%s %s\n", styles.HEADING("Model:"), record.ModelName)
	fmt.Printf("%s %d\n", styles.HEADING("Files:"), record.FilesCount)
	fmt.Printf("%s %s\n", styles.HEADING("Approx. Tokens:"), tokens.FormatCount(record.TokenCount))
	fmt.Printf("%s %.2fs\n", styles.HEADING("Execution Time:"), float64(record.DurationMs)/1000)
	if record.Incomplete {
		fmt.Println(styles.ERROR("This response was cut short before completion."))
	}

	fmt.Printf("\n%s\n%s\n", styles.HEADING("Query:"), record.Query)
	fmt.Printf("\n%s\n%s\n", styles.HEADING("Response:"), styles.RESPONSE(record.Response))
	return nil
}

func saveHistoryEntry(manager *history.HistoryManager, recordID string, savePath string, logger *zap.Logger) error {
	format := history.FormatFromPath(savePath)
	data, err := manager.Export(recordID, format)
	if err != nil {
		return err
	}

	if err := os.WriteFile(savePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", savePath, err)
	}

	logger.Info("exported history entry",
		zap.String("recordId", recordID),
		zap.String("path", savePath),
	)
	fmt.Printf("Saved history entry %s to %s\n", recordID, savePath)
	return nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
