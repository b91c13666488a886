package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"inlineedit/internal/api"
	"inlineedit/internal/config"
)

func newBulkUpdateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		project string
		apiKey  string
	)

	cmd := &cobra.Command{
		Use:   "bulk-update <file>",
		Short: "Submit inline edits from a JSON or YAML file",
		Long: `Submit inline edits from a JSON or YAML file ("-" reads JSON from stdin).

The document maps issue ids to changed attributes:

  issues:
    "12":
      subject: New subject
      done_ratio: 40
      custom_field_values:
        "2": "Beta"`,
		Args: requireArgs(1, 1, "input file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readBulkUpdateFile(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(req.Issues) == 0 {
				return fmt.Errorf("no issues in %s", args[0])
			}

			client := api.NewClient(cfg.APIURL)
			if strings.TrimSpace(apiKey) != "" {
				client = client.WithAPIKey(apiKey)
			}

			resp, err := client.UpdateMultiple(cmd.Context(), project, req)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(resp)
			}
			return writeUpdateResult(resp)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project id or identifier scoping the update")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (defaults to INLINEEDIT_API_KEY)")
	return cmd
}

func readBulkUpdateFile(path string, stdin io.Reader) (api.UpdateMultipleRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return api.UpdateMultipleRequest{}, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return parseBulkUpdateYAML(data)
	default:
		return parseBulkUpdateJSON(data)
	}
}

func parseBulkUpdateJSON(data []byte) (api.UpdateMultipleRequest, error) {
	var req api.UpdateMultipleRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return api.UpdateMultipleRequest{}, fmt.Errorf("parse json: %w", err)
	}
	return req, nil
}

func parseBulkUpdateYAML(data []byte) (api.UpdateMultipleRequest, error) {
	var doc struct {
		Issues  map[string]map[string]any `yaml:"issues"`
		BackURL string                    `yaml:"back_url"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return api.UpdateMultipleRequest{}, fmt.Errorf("parse yaml: %w", err)
	}

	req := api.UpdateMultipleRequest{
		Issues:  make(map[string]map[string]any, len(doc.Issues)),
		BackURL: doc.BackURL,
	}
	for id, attrs := range doc.Issues {
		normalized := make(map[string]any, len(attrs))
		for key, value := range attrs {
			normalized[key] = normalizeYAMLValue(value)
		}
		req.Issues[id] = normalized
	}
	return req, nil
}

// normalizeYAMLValue turns decoded YAML into values encoding/json accepts:
// mappings with non-string keys become map[string]any and timestamps become
// ISO dates.
func normalizeYAMLValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = normalizeYAMLValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = normalizeYAMLValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeYAMLValue(item)
		}
		return out
	case time.Time:
		return v.Format(time.DateOnly)
	default:
		return v
	}
}
