package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dotcontext/dcx/internal/core"
	"github.com/dotcontext/dcx/internal/styles"
)

var BUILD_VERSION = "dev"

var helpFlag = flag.Bool("h", false, "display help information")
var versionFlag = flag.Bool("ver", false, "display build version")

const helpText = `dcx - configurable LLM context from named sets of project files

USAGE:
  dcx <command> [options]

COMMANDS:
  init                    Create a sample .context file
  config                  Display the current configuration
  sets list               List all context sets
  sets show <name>        Show the files a context set resolves to
  models list             List all configured models
  query <question>        Send a question with context to a model
  history [id]            List recent queries or show one by id
  version                 Display build version

Run 'dcx <command> -h' for command-specific options.

OPTIONS:
`

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(BUILD_VERSION)
		return
	}

	args := flag.Args()
	if *helpFlag || len(args) == 0 {
		fmt.Print(helpText)
		flag.PrintDefaults()
		return
	}

	logger, err := initializeLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("-------- new dcx invocation --------", zap.Any("args", os.Args))

	if err := run(args, logger); err != nil {
		logger.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		fmt.Fprintln(os.Stderr, styles.ERROR(fmt.Sprintf("Error: %v", err)))
		os.Exit(1)
	}
}

func run(args []string, logger *zap.Logger) error {
	command, rest := args[0], args[1:]

	switch command {
	case "version":
		fmt.Println(BUILD_VERSION)
		return nil
	case "init":
		return runInit(rest)
	case "config":
		return runConfig(rest, logger)
	case "sets":
		return runSets(rest, logger)
	case "models":
		return runModels(rest, logger)
	case "query":
		return runQuery(rest, logger)
	case "history":
		return runHistory(rest, logger)
	default:
		return fmt.Errorf("unknown command '%s', run 'dcx -h' for usage", command)
	}
}

func initializeLogger() (*zap.Logger, error) {
	logLevel := zap.NewAtomicLevelAt(zap.InfoLevel)
	if BUILD_VERSION == "dev" {
		logLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = logLevel
	loggerConfig.OutputPaths = []string{
		core.LogFile(),
	}

	// Logs only go to file so they never interleave with streamed output.
	// Use `tail -f ~/.dcx/dcx.log` to monitor logs in real-time.

	return loggerConfig.Build()
}
