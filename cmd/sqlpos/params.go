package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gandaldf/sqlpos"
)

// parseParams decodes a JSON object into sqlpos.Params, keeping the key
// order of the document so it can drive marker numbering. Numbers are kept
// as json.Number.
func parseParams(raw string) (sqlpos.Params, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("params: expected a JSON object, got %v", tok)
	}

	var ps sqlpos.Params
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("params: %w", err)
		}
		name, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("params: value of %q: %w", name, err)
		}
		ps = append(ps, sqlpos.Param{Name: name, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("params: trailing data after object")
	}
	return ps, nil
}

// formatResult renders a rewritten statement and its args for display.
func formatResult(sql string, args []any) string {
	var b bytes.Buffer
	b.WriteString(sql)
	b.WriteByte('\n')
	enc, err := json.Marshal(args)
	if err != nil {
		enc = []byte(fmt.Sprint(args))
	}
	if args == nil {
		enc = []byte("[]")
	}
	b.WriteString("args: ")
	b.Write(enc)
	b.WriteByte('\n')
	return b.String()
}
