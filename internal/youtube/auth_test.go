package youtube

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadToken(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantToken string
		wantErr   bool
	}{
		{"oauth2 layout", `{"access_token":"abc","refresh_token":"r","token_type":"Bearer","expiry":"2030-01-01T00:00:00Z"}`, "abc", false},
		{"python layout", `{"token":"py","refresh_token":"r","expiry":"2030-01-01T00:00:00.123456"}`, "py", false},
		{"no credentials", `{"token_type":"Bearer"}`, "", true},
		{"garbage", `not json`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "token.json")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			tok, err := LoadToken(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrUnauthorized) {
					t.Errorf("LoadToken() error should wrap ErrUnauthorized, got %v", err)
				}
				return
			}
			if tok.AccessToken != tt.wantToken {
				t.Errorf("AccessToken = %q, want %q", tok.AccessToken, tt.wantToken)
			}
		})
	}
}

func TestLoadTokenMissingFile(t *testing.T) {
	_, err := LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	if KindOf(err) != KindAuth {
		t.Errorf("KindOf(LoadToken(missing)) = %v, want auth", KindOf(err))
	}
}
