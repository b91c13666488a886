package server

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"inlineedit/internal/inline"
)

func TestBracketKeys(t *testing.T) {
	tests := []struct {
		key     string
		base    string
		parts   []string
		wantErr bool
	}{
		{key: "back_url", base: "back_url"},
		{key: "issues[1][subject]", base: "issues", parts: []string{"1", "subject"}},
		{key: "issues[1][custom_field_values][2][]", base: "issues", parts: []string{"1", "custom_field_values", "2", ""}},
		{key: "issues[1", wantErr: true},
		{key: "issues[1]x[2]", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			base, parts, err := bracketKeys(tc.key)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.key)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if base != tc.base {
				t.Fatalf("expected base %q, got %q", tc.base, base)
			}
			if diff := cmp.Diff(tc.parts, parts); diff != "" {
				t.Fatalf("parts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseIssuesForm(t *testing.T) {
	form := url.Values{}
	form.Add("back_url", "/issues")
	form.Add("issues[1][subject]", "A")
	form.Add("issues[1][is_private]", "0")
	form.Add("issues[1][is_private]", "1")
	form.Add("issues[1][custom_field_values][2]", "MySQL")
	form.Add("issues[1][custom_field_values][9][]", "")
	form.Add("issues[1][custom_field_values][9][]", "a")
	form.Add("issues[2][lock_version]", "4")

	got, err := parseIssuesForm(form)
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	want := map[int64]inline.Attributes{
		1: {
			"subject":    "A",
			"is_private": "1",
			"custom_field_values": map[string]any{
				"2": "MySQL",
				"9": []string{"", "a"},
			},
		},
		2: {"lock_version": "4"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("form mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIssuesFormRejectsMalformedKeys(t *testing.T) {
	for _, key := range []string{
		"issues[0][subject]",
		"issues[x][subject]",
		"issues[1]",
		"issues[1][custom_field_values]",
		"issues[1][subject",
	} {
		if _, err := parseIssuesForm(url.Values{key: {"x"}}); err == nil {
			t.Errorf("expected error for %q", key)
		}
	}
}

func TestParseIssuesJSON(t *testing.T) {
	got, err := parseIssuesJSON(map[string]map[string]any{"7": {"subject": "x"}, "8": nil})
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	want := map[int64]inline.Attributes{7: {"subject": "x"}, 8: {}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}

	if _, err := parseIssuesJSON(map[string]map[string]any{"abc": {}}); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}
