package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/ssargent/podkit/pkg/compose"
	"github.com/ssargent/podkit/pkg/inspect"
	"github.com/ssargent/podkit/pkg/pod"
	"golang.org/x/term"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func useColor(w io.Writer, mode string) (bool, error) {
	switch strings.ToLower(mode) {
	case "", "auto":
		return isTerminal(w), nil
	case "always":
		return true, nil
	case "never":
		return false, nil
	}
	return false, fmt.Errorf("invalid color mode %q: want auto, always or never", mode)
}

// render writes the pods of data to w in format, highlighting JSON and
// YAML output when color is on.
func render(w io.Writer, data []byte, format, color string, opts ...pod.Option) error {
	highlight, err := useColor(w, color)
	if err != nil {
		return err
	}
	var lexer string
	switch strings.ToLower(format) {
	case inspect.FormatJSON:
		lexer = "json"
	case inspect.FormatYAML:
		lexer = "yaml"
	}
	if !highlight || lexer == "" {
		return inspect.Render(w, data, format, opts...)
	}

	var buf bytes.Buffer
	if err := inspect.Render(&buf, data, format, opts...); err != nil {
		return err
	}
	return quick.Highlight(w, buf.String(), lexer, "terminal256", "monokai")
}

// composeInput encodes the documents in data. name picks the syntax:
// .json and .jsonc files may carry comments, anything else is YAML.
func composeInput(name string, data []byte, opts ...pod.Option) ([]byte, error) {
	var (
		encoded []byte
		err     error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".jsonc":
		encoded, err = compose.ComposeJSON(data, opts...)
	default:
		encoded, err = compose.ComposeAll(bytes.NewReader(data), opts...)
	}
	if err != nil {
		return nil, err
	}
	if err := pod.Validate(encoded, opts...); err != nil {
		return nil, fmt.Errorf("encoded pods do not validate: %w", err)
	}
	return encoded, nil
}

// readPodFile returns the pod bytes of path, encoding YAML and JSON
// documents on the way.
func readPodFile(path string, opts ...pod.Option) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".jsonc":
		return composeInput(path, data, opts...)
	}
	return data, nil
}
