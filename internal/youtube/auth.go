package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"
)

// storedToken accepts both the oauth2.Token layout and the layout written by
// Google's Python auth library ("token", "expiry").
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// LoadToken reads a previously authorized token from path.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read token %s: %v", ErrUnauthorized, path, err)
	}
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		// The Python library writes a naive expiry timestamp without a zone.
		var loose map[string]any
		if jerr := json.Unmarshal(data, &loose); jerr != nil {
			return nil, fmt.Errorf("%w: parse token %s: %v", ErrUnauthorized, path, err)
		}
		st = storedToken{}
		st.AccessToken, _ = loose["access_token"].(string)
		st.Token, _ = loose["token"].(string)
		st.RefreshToken, _ = loose["refresh_token"].(string)
		if exp, ok := loose["expiry"].(string); ok {
			st.Expiry, _ = time.Parse("2006-01-02T15:04:05.999999", exp)
		}
	}

	tok := &oauth2.Token{
		AccessToken:  firstNonEmpty(st.AccessToken, st.Token),
		RefreshToken: st.RefreshToken,
		TokenType:    st.TokenType,
		Expiry:       st.Expiry,
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token %s has no credentials", ErrUnauthorized, path)
	}
	return tok, nil
}

// TokenSource builds a refreshing token source from an OAuth client secret
// file and a stored token. Acquiring the initial token is not handled here.
func TokenSource(ctx context.Context, clientSecretFile, tokenFile string) (oauth2.TokenSource, error) {
	secret, err := os.ReadFile(clientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read client secret: %v", ErrUnauthorized, err)
	}
	cfg, err := google.ConfigFromJSON(secret, youtube.YoutubeScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parse client secret: %v", ErrUnauthorized, err)
	}
	tok, err := LoadToken(tokenFile)
	if err != nil {
		return nil, err
	}
	return cfg.TokenSource(ctx, tok), nil
}

// CheckToken forces a refresh if needed so that auth failures surface before
// any quota is spent.
func CheckToken(ts oauth2.TokenSource) error {
	if _, err := ts.Token(); err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return fmt.Errorf("%w: refresh token: %v", ErrUnauthorized, rerr)
		}
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}
