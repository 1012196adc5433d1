// importctl 從命令列執行一次智慧匯入，輸出食譜與 provenance。
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"recipe-importer/internal/app"
	"recipe-importer/internal/core/importer"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "importctl: %v\n", err)
		if _, ok := importer.IsAbstain(err); ok {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "importctl",
		Usage:   "Import a recipe from a URL, pasted text, an image or a video",
		Version: version,
		Description: `Runs the smart import pipeline once and prints the recipe together with
its provenance (source, extraction method, policy, confidence, notes).

Exactly one of --url, --text or --file is required. Use --text - to read
the text from stdin.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Recipe page or video link"},
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Recipe text (\"-\" reads stdin)"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Image or video file path, URL or data URL"},
			&cli.StringFlag{Name: "mime", Usage: "MIME type of --file when the extension is missing or wrong"},
			&cli.StringFlag{Name: "policy", Usage: "Reconciliation policy (verbatim, conservative, enrich)"},
			&cli.StringFlag{Name: "language", Usage: "Transcription language hint (e.g., en)"},
			&cli.StringFlag{Name: "format", Value: string(formatJSON), Usage: "Output format (json, yaml)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the result to a file instead of stdout"},
			&cli.BoolFlag{Name: "verbose", Usage: "Log pipeline progress to stderr"},
		},
		Action: runImport,
	}
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	format, err := parseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	policy, err := importer.ParsePolicy(cmd.String("policy"))
	if err != nil {
		return err
	}
	input, err := inputFromFlags(cmd.String("url"), cmd.String("text"), cmd.String("file"), cmd.String("mime"), os.Stdin)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Bool("verbose") {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		common.SetLogger(logger)
		defer common.Sync()
	}

	application, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	if cfg.Server.ImportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Server.ImportTimeout)
		defer cancel()
	}

	result, err := application.Importer.SmartImport(ctx, input, importer.Options{
		Policy:   policy,
		Language: cmd.String("language"),
	})
	if err != nil {
		return describeError(err)
	}

	out, closeOut, err := openOutput(cmd.String("output"))
	if err != nil {
		return err
	}
	defer closeOut()
	return writeResult(out, format, result)
}

// describeError 附上使用者可採取的替代方案
func describeError(err error) error {
	var ext *common.ExternalServiceError
	if abstain, ok := importer.IsAbstain(err); ok && len(abstain.Suggestions) > 0 {
		return &suggestedError{err: err, suggestions: abstain.Suggestions}
	}
	if errors.As(err, &ext) && len(ext.Suggestions) > 0 {
		return &suggestedError{err: err, suggestions: ext.Suggestions}
	}
	return err
}

type suggestedError struct {
	err         error
	suggestions []string
}

func (e *suggestedError) Error() string {
	msg := e.err.Error() + "\ntry instead:"
	for _, s := range e.suggestions {
		msg += "\n  - " + s
	}
	return msg
}

func (e *suggestedError) Unwrap() error { return e.err }
