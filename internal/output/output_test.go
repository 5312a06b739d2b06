package output

import (
	"bytes"
	"strings"
	"testing"
)

type summary struct {
	DocumentID string `json:"document_id" yaml:"document_id"`
	Pages      int    `json:"pages" yaml:"pages"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"YML", FormatYAML, false},
		{"json", FormatJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestPrinter(t *testing.T) {
	data := summary{DocumentID: "2013", Pages: 5}

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewPrinter(&buf, FormatYAML).Print(data); err != nil {
			t.Fatalf("Print() error = %v", err)
		}
		if got, want := buf.String(), "document_id: \"2013\"\npages: 5\n"; got != want {
			t.Errorf("yaml output = %q, want %q", got, want)
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewPrinter(&buf, FormatJSON).Print(data); err != nil {
			t.Fatalf("Print() error = %v", err)
		}
		if !strings.Contains(buf.String(), `"document_id": "2013"`) {
			t.Errorf("json output = %s", buf.String())
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if err := Write(&bytes.Buffer{}, Format("toml"), data); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}
