// Package payload renders listener check-in scripts from embedded templates.
//
// Generation is pure: the only input besides the request is the timestamp
// stamped into the metadata.
package payload

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Kind is an output script format.
type Kind string

const (
	KindPowerShell Kind = "ps1"
	KindPython     Kind = "py"
	KindBatch      Kind = "bat"
	KindShell      Kind = "sh"
)

// DefaultKind is rendered when the requested kind is not recognised.
const DefaultKind = KindPowerShell

// Option flags. Selected flags prefix the body with a named block, always in
// this order regardless of the order they were requested in.
const (
	OptBypassAMSI     = "bypass-amsi"
	OptBypassDefender = "bypass-defender"
)

var (
	kinds   = []Kind{KindPowerShell, KindPython, KindBatch, KindShell}
	options = []string{OptBypassAMSI, OptBypassDefender}

	comments = map[Kind]string{
		KindPowerShell: "#",
		KindPython:     "#",
		KindBatch:      "REM",
		KindShell:      "#",
	}
)

// ErrInvalidTarget is returned for an empty or malformed host or port.
var ErrInvalidTarget = errors.New("invalid target")

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Kinds lists the supported output kinds.
func Kinds() []Kind { return slices.Clone(kinds) }

// Options lists the recognised option flags.
func Options() []string { return slices.Clone(options) }

// ParseKind reports whether s names a supported kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	return k, slices.Contains(kinds, k)
}

// Request describes one payload.
type Request struct {
	Host    string
	Port    string
	Kind    string
	Options []string
}

// Metadata describes a rendered payload.
type Metadata struct {
	Kind      Kind     `json:"kind"`
	Target    string   `json:"target"`
	Timestamp string   `json:"timestamp"`
	Options   []string `json:"options"`
}

// Result is a rendered payload.
type Result struct {
	Code     string   `json:"code"`
	Filename string   `json:"filename"`
	Metadata Metadata `json:"metadata"`
}

type templateData struct {
	Host    string
	Port    int
	Comment string
	Blocks  []string
}

// Generate renders req. Unknown kinds fall back to DefaultKind and the
// metadata reports the kind actually rendered. Unknown option flags are
// echoed back but render nothing.
func Generate(req Request, now time.Time) (Result, error) {
	host := strings.TrimSpace(req.Host)
	if !validHost(host) {
		return Result{}, fmt.Errorf("payload.Generate: host %q: %w", req.Host, ErrInvalidTarget)
	}
	port, err := strconv.Atoi(strings.TrimSpace(req.Port))
	if err != nil || port < 1 || port > 65535 {
		return Result{}, fmt.Errorf("payload.Generate: port %q: %w", req.Port, ErrInvalidTarget)
	}

	kind, ok := ParseKind(req.Kind)
	if !ok {
		kind = DefaultKind
	}

	data := templateData{Host: host, Port: port, Comment: comments[kind]}
	for _, opt := range options {
		if slices.Contains(req.Options, opt) {
			data.Blocks = append(data.Blocks, opt)
		}
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(kind)+".tmpl", data); err != nil {
		return Result{}, fmt.Errorf("payload.Generate: render %s: %w", kind, err)
	}

	return Result{
		Code:     buf.String(),
		Filename: fmt.Sprintf("payload_%s_%d.%s", host, port, kind),
		Metadata: Metadata{
			Kind:      kind,
			Target:    fmt.Sprintf("%s:%d", host, port),
			Timestamp: now.UTC().Format(time.RFC3339),
			Options:   slices.Clone(req.Options),
		},
	}, nil
}

// validHost accepts hostnames and IPv4/IPv6 literals. Anything that could
// break out of a quoted string in a template is rejected.
func validHost(h string) bool {
	if h == "" || len(h) > 253 {
		return false
	}
	for _, r := range h {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '-', r == ':', r == '_':
		default:
			return false
		}
	}
	return true
}
