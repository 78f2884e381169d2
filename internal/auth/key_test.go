// SPDX-License-Identifier: MIT

package auth

import (
	"net/http/httptest"
	"testing"
)

func TestExtractKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "canonical header",
			headers: map[string]string{HeaderAPIKey: "sekrit"},
			want:    "sekrit",
		},
		{
			name:    "bearer fallback",
			headers: map[string]string{"Authorization": "Bearer sekrit"},
			want:    "sekrit",
		},
		{
			name: "canonical header wins over bearer",
			headers: map[string]string{
				HeaderAPIKey:    "canonical",
				"Authorization": "Bearer other",
			},
			want: "canonical",
		},
		{
			name:    "basic auth ignored",
			headers: map[string]string{"Authorization": "Basic Zm9vOmJhcg=="},
			want:    "",
		},
		{
			name:    "no headers",
			headers: nil,
			want:    "",
		},
		{
			name:    "whitespace trimmed",
			headers: map[string]string{HeaderAPIKey: "  sekrit  "},
			want:    "sekrit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/memory", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ExtractKey(r); got != tt.want {
				t.Errorf("ExtractKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthorizeKey(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
		want     bool
	}{
		{"match", "sekrit", "sekrit", true},
		{"mismatch", "wrong", "sekrit", false},
		{"empty got", "", "sekrit", false},
		{"empty expected", "sekrit", "", false},
		{"both empty", "", "", false},
		{"whitespace expected", "sekrit", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AuthorizeKey(tt.got, tt.expected); got != tt.want {
				t.Errorf("AuthorizeKey(%q, %q) = %v, want %v", tt.got, tt.expected, got, tt.want)
			}
		})
	}
}

func TestAuthorizeRequestNil(t *testing.T) {
	if AuthorizeRequest(nil, "sekrit") {
		t.Error("nil request must not authorize")
	}
}
