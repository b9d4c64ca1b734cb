package inspect

import (
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"github.com/ssargent/podkit/pkg/pod"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by Render.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCBOR = "cbor"
)

// encMode produces Core Deterministic CBOR: sorted map keys and the
// smallest integer encodings, so equal trees give equal bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("inspect: CBOR encoder initialization failed: " + err.Error())
	}
}

// JSON encodes a tree as indented JSON.
func JSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// YAML encodes a tree as YAML.
func YAML(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// CBOR encodes a tree as deterministic CBOR.
func CBOR(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Render writes every top-level pod of buf to w in the given format.
// A single pod is rendered as one document and several as a list.
func Render(w io.Writer, buf []byte, format string, opts ...pod.Option) error {
	format = strings.ToLower(format)
	if format == "" || format == FormatText {
		return DumpAll(w, buf, opts...)
	}

	nodes, err := Trees(buf, opts...)
	if err != nil {
		return err
	}
	var doc any = nodes
	if len(nodes) == 1 {
		doc = nodes[0]
	}

	var out []byte
	switch format {
	case FormatJSON:
		out, err = JSON(doc)
		if err == nil {
			out = append(out, '\n')
		}
	case FormatYAML:
		out, err = YAML(doc)
	case FormatCBOR:
		out, err = CBOR(doc)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	_, err = w.Write(out)
	return err
}
