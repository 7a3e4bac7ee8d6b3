package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/nazlul/analytics-dash/internal/config"
)

// Identity is the validated claim set returned by the verifier. The
// session manager, not this adapter, decides whether Audience is
// acceptable for this deployment.
type Identity struct {
	Email         string
	Audience      string
	Name          string
	EmailVerified bool
}

// Verifier validates a third-party-issued ID token and returns the
// identity it asserts, or an error for anything else.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

const defaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleVerifier introspects ID tokens against Google's tokeninfo
// endpoint.
type GoogleVerifier struct {
	client       *http.Client
	tokenInfoURL string
}

func NewGoogleVerifier() *GoogleVerifier {
	return &GoogleVerifier{
		client:       &http.Client{Timeout: 10 * time.Second},
		tokenInfoURL: defaultTokenInfoURL,
	}
}

// WithEndpoint overrides the introspection endpoint. Tests point this at a
// local httptest server.
func (v *GoogleVerifier) WithEndpoint(rawURL string) *GoogleVerifier {
	return &GoogleVerifier{client: v.client, tokenInfoURL: rawURL}
}

func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, fmt.Errorf("empty id token")
	}
	u, err := url.Parse(v.tokenInfoURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("id_token", idToken)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tokeninfo status: %d", resp.StatusCode)
	}

	// tokeninfo serializes most claims as strings.
	var body struct {
		Aud           string `json:"aud"`
		Email         string `json:"email"`
		EmailVerified string `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Email == "" || body.Aud == "" {
		return nil, fmt.Errorf("missing required tokeninfo fields")
	}
	return &Identity{
		Email:         body.Email,
		Audience:      body.Aud,
		Name:          body.Name,
		EmailVerified: body.EmailVerified == "true",
	}, nil
}

// RedirectProvider drives the server-side authorization-code flow: consent
// URL, code exchange, and userinfo fetch. It funnels into the same
// GoogleLogin path as client-posted ID tokens.
type RedirectProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
}

const defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

func NewRedirectProvider(cfg *config.Config) *RedirectProvider {
	return &RedirectProvider{
		cfg: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: defaultUserInfoURL,
	}
}

func (p *RedirectProvider) WithUserInfoURL(rawURL string) *RedirectProvider {
	return &RedirectProvider{cfg: p.cfg, userInfoURL: rawURL}
}

func (p *RedirectProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (p *RedirectProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.cfg.Exchange(ctx, code)
}

// FetchIdentity resolves an exchanged token to the identity it belongs
// to. The audience is this deployment's own client ID because the code
// flow was initiated with it.
func (p *RedirectProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*Identity, error) {
	client := p.cfg.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status: %d", resp.StatusCode)
	}
	var body struct {
		Email         string `json:"email"`
		Name          string `json:"name"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Email == "" {
		return nil, fmt.Errorf("missing required userinfo fields")
	}
	return &Identity{
		Email:         body.Email,
		Audience:      p.cfg.ClientID,
		Name:          body.Name,
		EmailVerified: body.EmailVerified,
	}, nil
}
