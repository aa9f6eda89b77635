// Command reconcile runs one reconciliation operation from the terminal.
//
//	reconcile sync [-interactive]
//	reconcile refresh
//	reconcile report [-format json|csv|xlsx|pdf] [-out FILE]
//	reconcile duplicates [-format json|csv] [-out FILE]
//	reconcile token [-subject NAME] [-ttl 24h]
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
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mobilepoint/comparator-stoc-api/internal/app"
	"github.com/mobilepoint/comparator-stoc-api/internal/config"
	"github.com/mobilepoint/comparator-stoc-api/internal/logging"
	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
	"github.com/mobilepoint/comparator-stoc-api/internal/report"
	"github.com/mobilepoint/comparator-stoc-api/internal/utils"
)

const usage = "usage: reconcile <sync|refresh|report|duplicates|token> [flags]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	format := fs.String("format", "", "output format: json, csv, xlsx or pdf")
	out := fs.String("out", "", "write output to FILE instead of stdout")
	interactive := fs.Bool("interactive", false, "ask before resolving SKU collisions")
	subject := fs.String("subject", "operator", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd, *format, *out, *interactive, *subject, *ttl); err != nil {
		logrus.Errorf("❌ %s failed: %v", cmd, err)
		if reconcile.IsFatal(err) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd, format, outPath string, interactive bool, subject string, ttl time.Duration) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.NewWithOutput(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	logrus.SetOutput(os.Stderr)

	if cmd == "token" {
		if cfg.Server.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		token, err := utils.GenerateToken(subject, cfg.Server.JWTSecret, ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	var resolver reconcile.CollisionResolver
	if interactive {
		resolver = app.PromptResolver(os.Stdin, os.Stderr)
	}
	a, err := app.New(cfg, log, app.Options{Resolver: resolver})
	if err != nil {
		return err
	}
	defer a.Close()

	w, closeOut, err := output(outPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", outPath, cerr)
		}
	}()

	switch cmd {
	case "sync":
		res, err := a.Engine.SyncFull(ctx)
		return writeRun(w, res, err)
	case "refresh":
		res, err := a.Engine.RefreshExisting(ctx)
		return writeRun(w, res, err)
	case "report":
		f, err := report.ParseFormat(format)
		if err != nil {
			return err
		}
		rep, err := a.Engine.Report(ctx)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"rows": len(rep.Rows), "format": f}).Info("📊 Writing report")
		if f == report.FormatJSON {
			return writeJSON(w, rep)
		}
		return report.Write(w, f, rep)
	case "duplicates":
		f, err := report.ParseFormat(format)
		if err != nil {
			return err
		}
		analysis, err := a.Engine.FindDuplicates(ctx)
		if err != nil {
			return err
		}
		switch f {
		case report.FormatJSON:
			return writeJSON(w, analysis)
		case report.FormatCSV:
			return report.WriteDuplicatesCSV(w, analysis)
		}
		return fmt.Errorf("duplicates support json or csv, not %s", f)
	}
	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

func output(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// writeRun prints the run report, including the partial one of a failed
// run. The run error takes precedence over an output error.
func writeRun(w io.Writer, res *reconcile.RunReport, runErr error) error {
	if res == nil {
		return runErr
	}
	if err := writeJSON(w, res); err != nil {
		if runErr != nil {
			return fmt.Errorf("%w (run report not written: %v)", runErr, err)
		}
		return fmt.Errorf("write run report: %w", err)
	}
	return runErr
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
