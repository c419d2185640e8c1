package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/mulic2/internal/app"
	"github.com/naveenspark/mulic2/internal/browser"
	"github.com/naveenspark/mulic2/internal/config"
	"github.com/naveenspark/mulic2/internal/logging"
	"github.com/naveenspark/mulic2/internal/payload"
	"github.com/naveenspark/mulic2/internal/tui"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// errReported marks failures already shown to the operator.
var errReported = errors.New("reported")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "--version", "version", "-v":
			fmt.Fprintln(stdout, "mulic2 "+version)
			return nil
		case "help", "--help", "-h":
			printHelp(stdout)
			return nil
		case "payload":
			return runPayload(args[1:], stdout, os.Stderr, time.Now)
		case "health":
			return withContext(stdout, runHealth)
		case "web":
			return withContext(stdout, runWeb)
		default:
			printHelp(stdout)
			return fmt.Errorf("unknown command %q", args[0])
		}
	}
	return withContext(stdout, runConsole)
}

// withContext loads settings, starts file logging, and builds the
// application context. A bad port configuration is fatal and rendered with
// remediation steps.
func withContext(stdout io.Writer, fn func(context.Context, io.Writer, *app.Context) error) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}

	logFile, err := logging.InitFile(settings.Home, settings.LogLevel, settings.LogFormat)
	if err != nil {
		return err
	}
	defer logFile.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ac, err := app.New(ctx, settings)
	if err != nil {
		slog.Error("Configuration failed", "source", settings.ConfigLocation, "error", err)
		printConfigError(stdout, settings.ConfigLocation, err)
		return errReported
	}
	defer ac.Close()

	return fn(ctx, stdout, ac)
}

func runConsole(ctx context.Context, _ io.Writer, ac *app.Context) error {
	ac.Start(ctx)

	p := tea.NewProgram(tui.NewApp(ac, version), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui error: %w", err)
	}
	// Leave no session behind.
	logoutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ac.Session.Logout(logoutCtx)
	return nil
}

func runHealth(ctx context.Context, stdout io.Writer, ac *app.Context) error {
	ok := ac.Health.Check(ctx)
	printHealthResult(stdout, ok, ac.API.BaseURL(), ac.Ports)
	if !ok {
		return errReported
	}
	return nil
}

func runWeb(_ context.Context, stdout io.Writer, ac *app.Context) error {
	url := ac.ConsoleURL()
	if url == "" {
		return errors.New("no frontend port in config.json")
	}
	if err := browser.Open(url); err != nil {
		fmt.Fprintf(stdout, "Could not open browser. Visit this URL manually:\n  %s\n", url)
	}
	return nil
}

// optionList collects repeated -opt flags.
type optionList []string

func (o *optionList) String() string     { return strings.Join(*o, ",") }
func (o *optionList) Set(v string) error { *o = append(*o, v); return nil }

// runPayload renders a payload to stdout or a file. Notices go to stderr so
// the payload can be redirected as-is.
func runPayload(args []string, stdout, stderr io.Writer, now func() time.Time) error {
	fs := flag.NewFlagSet("payload", flag.ContinueOnError)
	fs.SetOutput(stderr)
	host := fs.String("host", "", "target host")
	port := fs.String("port", "", "target port")
	kinds := make([]string, 0, len(payload.Kinds()))
	for _, k := range payload.Kinds() {
		kinds = append(kinds, string(k))
	}
	kind := fs.String("kind", string(payload.DefaultKind), "output kind: "+strings.Join(kinds, ", "))
	out := fs.String("o", "", "write to this file instead of stdout")
	var opts optionList
	fs.Var(&opts, "opt", "option flag, repeatable: "+strings.Join(payload.Options(), ", "))
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, ok := payload.ParseKind(*kind); !ok {
		fmt.Fprintf(stderr, "unknown kind %q, using %s\n", *kind, payload.DefaultKind)
	}
	res, err := payload.Generate(payload.Request{Host: *host, Port: *port, Kind: *kind, Options: opts}, now())
	if err != nil {
		return err
	}
	if *out == "" {
		fmt.Fprint(stdout, res.Code)
		return nil
	}
	if err := os.WriteFile(*out, []byte(res.Code), 0o600); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	fmt.Fprintf(stdout, "wrote %s (%s → %s)\n", *out, res.Metadata.Kind, res.Metadata.Target)
	return nil
}
