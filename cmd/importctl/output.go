package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"recipe-importer/internal/core/importer"
	"recipe-importer/internal/pkg/common"

	"gopkg.in/yaml.v3"
)

type outputFormat string

const (
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", formatJSON:
		return formatJSON, nil
	case formatYAML, "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format: %q", s)
	}
}

// inputFromFlags 三選一；--text - 從 stdin 讀取
func inputFromFlags(url, text, file, mime string, stdin io.Reader) (importer.RawInput, error) {
	var inputs []importer.RawInput
	if url = strings.TrimSpace(url); url != "" {
		inputs = append(inputs, importer.URLInput{URL: url})
	}
	if text != "" {
		if text == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("failed to read stdin: %w", err)
			}
			text = string(data)
		}
		inputs = append(inputs, importer.TextInput{Text: text})
	}
	if file = strings.TrimSpace(file); file != "" {
		inputs = append(inputs, importer.FileInput{URI: file, MIME: mime, Name: file})
	}
	if len(inputs) != 1 {
		return nil, common.NewValidationError("exactly one of --url, --text or --file is required")
	}
	return inputs[0], nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "importctl: failed to close %s: %v\n", path, err)
		}
	}, nil
}

func writeResult(w io.Writer, format outputFormat, result *importer.Result) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}
