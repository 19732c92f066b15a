package main

import (
	"flag"
	"io"
)

type cliArgs struct {
	configPath    string
	residentsPath string
	host          string
	port          int
	logLevel      string
	policy        string
	queries       []string
}

func parseFlags(args []string, stderr io.Writer) (cliArgs, error) {
	var a cliArgs

	fs := flag.NewFlagSet("resident-match", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = io.WriteString(stderr, "usage: resident-match [flags] OCR_TEXT...\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&a.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&a.residentsPath, "residents", "", "Match against a local resident file (JSON or YAML) instead of the API")
	fs.StringVar(&a.host, "host", "", "Resident directory host (overrides config)")
	fs.IntVar(&a.port, "port", 0, "Resident directory port (overrides config)")
	fs.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error, off (overrides config)")
	fs.StringVar(&a.policy, "policy", "", "Token pairing policy: first or best (overrides config)")

	err := fs.Parse(args)
	if err != nil {
		return a, err
	}

	a.queries = fs.Args()

	return a, nil
}
