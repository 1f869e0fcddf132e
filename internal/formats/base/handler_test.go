package base

import (
	"encoding/json"
	"errors"
	"testing"

	verrors "github.com/FocuswithJustin/versecorpus/core/errors"
)

func TestDetectConfig(t *testing.T) {
	jsonCfg := DetectConfig{Extensions: []string{".json"}, ContentMarkers: []string{`"versions"`}}
	xmlCfg := DetectConfig{Extensions: []string{".xml"}}
	strictCfg := DetectConfig{
		Extensions:       []string{".json"},
		ContentMarkers:   []string{`"BIBLEBOOK"`},
		RequireExtension: true,
	}

	tests := []struct {
		name string
		cfg  DetectConfig
		path string
		data string
		want bool
	}{
		{"extension only", xmlCfg, "esv.XML", "", true},
		{"wrong extension", xmlCfg, "esv.txt", "<bible/>", false},
		{"marker found", jsonCfg, "upload", `{"versions": []}`, true},
		{"marker after BOM", jsonCfg, "upload", "\xef\xbb\xbf  {\"versions\": []}", true},
		{"marker missing", jsonCfg, "kjv.json", `{"Genesis": {}}`, false},
		{"extension required", strictCfg, "swahili.txt", `{"BIBLEBOOK": []}`, false},
		{"extension and marker", strictCfg, "swahili.json", `{"BIBLEBOOK": []}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Detect(tt.path, []byte(tt.data)); got != tt.want {
				t.Errorf("Detect(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestDetectConfig_CustomValidator(t *testing.T) {
	cfg := DetectConfig{
		Extensions:      []string{".txt"},
		CustomValidator: func(_ string, data []byte) bool { return len(data) > 0 },
	}
	if cfg.Detect("a.txt", nil) {
		t.Error("validator should reject empty data")
	}
	if !cfg.Detect("a.txt", []byte("Acakki 1")) {
		t.Error("validator should accept text")
	}
}

func TestIntValue(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{`3`, 3, false},
		{`"12"`, 12, false},
		{`" 7 "`, 7, false},
		{`"x"`, 0, true},
		{`null`, 0, true},
		{`2.5`, 0, true},
	}
	for _, tt := range tests {
		got, err := IntValue(json.RawMessage(tt.raw))
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("IntValue(%s) = %d, %v; want %d, err=%v", tt.raw, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestOneOrMany(t *testing.T) {
	type item struct {
		N int `json:"n"`
	}
	tests := []struct {
		raw  string
		want int
	}{
		{`[{"n":1},{"n":2}]`, 2},
		{`{"n":1}`, 1},
		{`null`, 0},
		{``, 0},
	}
	for _, tt := range tests {
		got, err := OneOrMany[item](json.RawMessage(tt.raw))
		if err != nil || len(got) != tt.want {
			t.Errorf("OneOrMany(%s) = %v, %v; want %d items", tt.raw, got, err, tt.want)
		}
	}
	if _, err := OneOrMany[item](json.RawMessage(`"text"`)); err == nil {
		t.Error("OneOrMany(string) should fail")
	}
}

func TestUnsupportedOperationError(t *testing.T) {
	err := UnsupportedOperationError("emit", "html")
	if !errors.Is(err, verrors.ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}
