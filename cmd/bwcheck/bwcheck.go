// Command bwcheck reports how far into the billing cycle an internet account
// is, next to how much of its data allowance has been used.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/kr/pretty"

	"bwcheck.dev/config"
	"bwcheck.dev/envknobs"
	"bwcheck.dev/portal"
	"bwcheck.dev/usage"
	"bwcheck.dev/version"
)

var (
	flagJSON    = flag.Bool("json", false, "")
	flagLogin   = flag.Bool("login", false, "")
	flagTimeout = flag.Duration("timeout", 2*time.Minute, "")
	flagVerbose = flag.Bool("v", false, "")
	flagVersion = flag.Bool("version", false, "")
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	log.SetFlags(0)
	flag.Usage = func() {
		io.WriteString(stderr, errUsage.Error()) // nolint: errcheck
	}
	flag.Parse()

	if err := envknobs.Load(".env"); err != nil {
		log.Printf("bwcheck: .env: %v", err)
	}

	if err := bwcheck(flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			log.Print(err)
			os.Exit(2)
		}
		log.Fatalf("bwcheck: %v", err)
	}
}

func bwcheck(args []string) error {
	if *flagVersion {
		fmt.Fprintln(stdout, version.String())
		return nil
	}
	if len(args) > 1 {
		return errUsage
	}

	name := envknobs.ConfigFile()
	if len(args) == 1 {
		name = args[0]
	}
	if *flagLogin {
		return login(name)
	}
	return check(name)
}

func check(name string) error {
	cfg, err := config.Load(name)
	if errors.Is(err, config.ErrMissingCredentials) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	vlogf("config: %s; password from %s", name, cfg.PasswordSource)

	// Keep stdout clean for -json.
	progress := stdout
	if *flagJSON {
		progress = stderr
	}

	fmt.Fprintln(progress, "Requesting usage data...")
	pc := &portal.Client{
		LoginURL: cfg.Portal.LoginURL,
		UsageURL: cfg.Portal.UsageURL,
		Logf:     vlogf,
		Debug:    envknobs.Debug(),
	}
	ctx := context.Background()
	if *flagTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *flagTimeout)
		defer cancel()
	}
	rec, err := pc.FetchUsage(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to fetch usage data: %w", err)
	}
	vvlogf("raw usage record: %# v", pretty.Formatter(rec))

	fmt.Fprintln(progress, "Parsing usage data...")
	u, err := usage.Parse(rec)
	if err != nil {
		return fmt.Errorf("failed to parse usage data: %w", err)
	}
	vlogf("cycle %s to %s; captured %s",
		u.CycleStart.Format(usage.DateLayout),
		u.CycleEnd.Format(usage.DateLayout),
		u.CapturedAt.Format(time.RFC3339))

	s, err := usage.Calculate(u)
	if err != nil {
		return fmt.Errorf("failed to compute usage: %w", err)
	}
	if *flagJSON {
		return usage.WriteJSON(stdout, s)
	}
	return usage.WriteSummary(stdout, s)
}

func vlogf(format string, args ...any) {
	if *flagVerbose || envknobs.Debug() {
		log.Printf(format, args...)
	}
}

func vvlogf(format string, args ...any) {
	if envknobs.Debug() {
		log.Printf(format, args...)
	}
}
