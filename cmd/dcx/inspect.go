package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/dotcontext/dcx/internal/config"
	"github.com/dotcontext/dcx/internal/contextset"
	"github.com/dotcontext/dcx/internal/styles"
	"github.com/dotcontext/dcx/internal/tokens"
)

// contextWindowWarnTokens is a rough threshold above which the assembled
// context likely exceeds common model context windows.
const contextWindowWarnTokens = 128000

const sampleConfig = `# Dot Context Configuration

Sets:
  example:
    match:
      - "*.md"
    description: "Example context set matching all markdown files"

Models:
  claude:
    provider: anthropic
    api-key: ${ANTHROPIC_API_KEY}
    model: claude-3-opus
    description: "Large context model"
`

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "", "directory in which to create the .context file (default: working directory)")
	force := fs.Bool("force", false, "overwrite an existing .context file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir := *path
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = cwd
	}

	configPath := filepath.Join(dir, config.DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil && !*force {
		return fmt.Errorf(".context file already exists at %s (use -force to overwrite)", configPath)
	}

	if err := os.WriteFile(configPath, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	fmt.Printf("Successfully created .context file at %s\n", configPath)
	return nil
}

// loadConfigForCommand loads the .context file named by path, or the
// nearest one above the working directory when path is empty.
func loadConfigForCommand(path string, logger *zap.Logger) (*config.Config, error) {
	return config.NewLoader(logger).LoadFromFile(path)
}

func runConfig(args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	file := fs.String("file", "", "path to .context file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfigForCommand(*file, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Using config file: %s\n", filepath.Join(cfg.BaseDir, config.DefaultConfigFile))

	if len(cfg.Sets) == 0 {
		fmt.Println(styles.DIM("No context sets defined."))
	} else {
		fmt.Println(styles.HEADING("\nContext Sets:"))
		printSetsTable(cfg)
	}

	if len(cfg.Models) == 0 {
		fmt.Println(styles.DIM("No models defined."))
	} else {
		fmt.Println(styles.HEADING("\nModels:"))
		printModelsTable(cfg)
	}
	return nil
}

func runSets(args []string, logger *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: dcx sets <list|show> [options]")
	}

	switch args[0] {
	case "list":
		return runSetsList(args[1:], logger)
	case "show":
		return runSetsShow(args[1:], logger)
	default:
		return fmt.Errorf("unknown sets subcommand '%s'", args[0])
	}
}

func runSetsList(args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("sets list", flag.ExitOnError)
	file := fs.String("file", "", "path to .context file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfigForCommand(*file, logger)
	if err != nil {
		return err
	}

	if len(cfg.Sets) == 0 {
		fmt.Println(styles.DIM("No context sets defined. Edit your .context file to add some."))
		return nil
	}

	fmt.Println(styles.HEADING("Available Context Sets:"))
	printSetsTable(cfg)
	return nil
}

func runSetsShow(args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("sets show", flag.ExitOnError)
	file := fs.String("file", "", "path to .context file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: dcx sets show <name>")
	}
	name := fs.Arg(0)

	cfg, err := loadConfigForCommand(*file, logger)
	if err != nil {
		return err
	}

	resolver := contextset.NewResolver(cfg, nil, logger)
	resolved, err := resolver.Resolve([]string{name}, "")
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", styles.HEADING(fmt.Sprintf("Files in context set '%s':", name)))
	if len(resolved.Files) == 0 {
		fmt.Println(styles.DIM("No files found matching the patterns in this set."))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSIZE\tEST. TOKENS")

	totalSize := int64(0)
	totalTokens := 0
	for _, file := range resolved.Files {
		stats := tokens.EstimateFile(file)
		totalSize += stats.SizeBytes
		totalTokens += stats.Tokens
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			displayPath(file, cfg.BaseDir),
			humanize.Bytes(uint64(stats.SizeBytes)),
			tokens.FormatCount(stats.Tokens),
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d files, %s, %s estimated tokens\n",
		len(resolved.Files), humanize.Bytes(uint64(totalSize)), tokens.FormatCount(totalTokens))

	if totalTokens > contextWindowWarnTokens {
		fmt.Println(styles.ERROR("Warning: estimated token count exceeds 128K tokens"))
	}
	fmt.Println(styles.DIM("\nNote: Token counts are estimates and may vary by model."))
	return nil
}

func runModels(args []string, logger *zap.Logger) error {
	if len(args) == 0 || args[0] != "list" {
		return fmt.Errorf("usage: dcx models list [options]")
	}

	fs := flag.NewFlagSet("models list", flag.ExitOnError)
	file := fs.String("file", "", "path to .context file")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := loadConfigForCommand(*file, logger)
	if err != nil {
		return err
	}

	if len(cfg.Models) == 0 {
		fmt.Println(styles.DIM("No models defined. Edit your .context file to add some."))
		return nil
	}

	fmt.Println(styles.HEADING("Available Models:"))
	printModelsTable(cfg)
	return nil
}

func printSetsTable(cfg *config.Config) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION\tPATTERNS\tINCLUDES")
	for _, name := range sortedKeys(cfg.Sets) {
		set := cfg.Sets[name]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			name, set.Description,
			strings.Join(set.Match, ", "),
			strings.Join(set.Include, ", "),
		)
	}
	w.Flush()
}

func printModelsTable(cfg *config.Config) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPROVIDER\tMODEL\tDESCRIPTION")
	for _, name := range sortedKeys(cfg.Models) {
		model := cfg.Models[name]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, model.Provider, model.Model, model.Description)
	}
	w.Flush()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func displayPath(file string, baseDir string) string {
	if rel, err := filepath.Rel(baseDir, file); err == nil {
		return rel
	}
	return file
}
