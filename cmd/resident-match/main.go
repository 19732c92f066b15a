// Package main provides the CLI entrypoint for resident-match.
//
// resident-match takes the raw strings read off a package label by OCR and
// prints the registered residents that most likely match, as JSON:
//
//	resident-match -config matcher.yaml "JOAO S1LVA" "Apto 12"
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"resident-matcher/internal/config"
	"resident-matcher/internal/logging"
	"resident-matcher/internal/match"
	"resident-matcher/internal/resident"
	"resident-matcher/internal/search"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}

		return 2
	}

	cfg, err := loadConfig(a)
	if err != nil {
		fmt.Fprintln(stderr, "resident-match:", err)
		return 2
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(stderr, "resident-match:", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	directory, err := newDirectory(a, cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, "resident-match:", err)
		return 2
	}

	orchestrator := search.New(directory,
		search.WithLogger(logger),
		search.WithOptions(cfg.Matching.Options()),
	)

	res := orchestrator.Search(ctx, a.queries)
	if res.Err != nil {
		fmt.Fprintln(stderr, "resident-match:", res.Message())
		return 1
	}

	return printCandidates(stdout, stderr, res.Candidates)
}

// loadConfig reads the config file (if any) and applies flag overrides.
func loadConfig(a cliArgs) (*config.Config, error) {
	cfg := config.Default()

	if a.configPath != "" {
		loaded, err := config.LoadFile(a.configPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	if a.host != "" {
		cfg.Directory.Host = a.host
	}

	if a.port != 0 {
		cfg.Directory.Port = a.port
	}

	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	if a.policy != "" {
		cfg.Matching.Policy = a.policy
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDirectory picks the resident source: a local file or the HTTP API.
func newDirectory(a cliArgs, cfg *config.Config, logger *zap.Logger) (resident.Directory, error) {
	if a.residentsPath != "" {
		return resident.LoadFile(a.residentsPath)
	}

	return resident.NewHTTPDirectory(cfg.Directory.Endpoint(), cfg.Directory.Timeout, logger), nil
}

func printCandidates(stdout, stderr io.Writer, candidates match.CandidateList) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	err := enc.Encode(candidates)
	if err != nil {
		fmt.Fprintln(stderr, "resident-match:", err)
		return 1
	}

	return 0
}
