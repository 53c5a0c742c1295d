// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Doc: {
	name:  string & !=""
	items: [...{id: int & >=0}]
}
`

type testDoc struct {
	Name  string `json:"name"`
	Items []struct {
		ID int `json:"id"`
	} `json:"items"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	res, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`name: "x", items: [{id: 1}, {id: 2}]`), "#Doc")
	if err != nil {
		t.Fatalf("ParseAndDecode() error: %v", err)
	}
	if res.Value.Name != "x" || len(res.Value.Items) != 2 || res.Value.Items[1].ID != 2 {
		t.Errorf("decoded = %+v", res.Value)
	}
}

func TestParseAndDecode_PathInError(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`name: "x", items: [{id: 1}, {id: -4}]`), "#Doc",
		WithFilename("doc.cue"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "doc.cue: ") || !strings.Contains(msg, "items[1].id") {
		t.Errorf("error = %q, want file and items[1].id path", msg)
	}
}

func TestParseAndDecode_SizeLimit(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`name: "too big"`), "#Doc", WithMaxFileSize(4))
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Fatalf("error = %v, want size limit error", err)
	}
}

func TestParseAndDecode_MissingDefinition(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`name: "x"`), "#Nope")
	if err == nil || !strings.Contains(err.Error(), "#Nope") {
		t.Fatalf("error = %v, want missing definition error", err)
	}
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	if FormatError(nil, "a.cue") != nil {
		t.Error("FormatError(nil) should be nil")
	}

	base := errors.New("boom")
	err := FormatError(base, "a.cue")
	if !errors.Is(err, base) || !strings.Contains(err.Error(), "a.cue") {
		t.Errorf("FormatError(non-CUE) = %v", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"tasks"}, "tasks"},
		{[]string{"tasks", "0", "cmds", "2", "run"}, "tasks[0].cmds[2].run"},
		{[]string{"0"}, "0"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
