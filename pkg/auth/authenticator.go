package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/veiloq/kraken-stream/pkg/common"
	"github.com/veiloq/kraken-stream/pkg/logging"
)

const (
	defaultBaseURL = "https://api.kraken.com"
	tokenPath      = "/0/private/GetWebSocketsToken"
)

// APIError carries the venue's error list from a structurally valid but
// rejected REST response.
type APIError struct {
	Errors []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue api error: %s", strings.Join(e.Errors, "; "))
}

// Config configures an Authenticator
type Config struct {
	APIKey    string
	APISecret string

	// BaseURL overrides the venue REST endpoint, mainly for tests
	BaseURL string

	// HTTP defaults to common.NewHTTPClient(nil)
	HTTP common.HTTPClient

	// Logger defaults to logging.NewLogger()
	Logger logging.Logger
}

// Authenticator exchanges API credentials for a WebSocket token. Failures
// surface synchronously to the caller; there is no automatic retry of a
// rejected authentication.
type Authenticator struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      common.HTTPClient
	logger    logging.Logger
	nonce     func() string
}

// NewAuthenticator creates an Authenticator from the given configuration
func NewAuthenticator(cfg Config) *Authenticator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.HTTP == nil {
		cfg.HTTP = common.NewHTTPClient(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger()
	}

	return &Authenticator{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		baseURL:   cfg.BaseURL,
		http:      cfg.HTTP,
		logger:    cfg.Logger,
		nonce: func() string {
			return strconv.FormatInt(time.Now().UnixMilli(), 10)
		},
	}
}

// WebSocketToken fetches the opaque token to attach to private-channel
// subscribe commands. A non-empty venue error list is returned as *APIError.
func (a *Authenticator) WebSocketToken(ctx context.Context) (string, error) {
	nonce := a.nonce()

	form := url.Values{}
	form.Set("nonce", nonce)
	postData := form.Encode()

	signature, err := Sign(a.apiSecret, tokenPath, nonce, postData)
	if err != nil {
		return "", fmt.Errorf("signing token request: %w", err)
	}

	headers := http.Header{}
	headers.Set("API-Key", a.apiKey)
	headers.Set("API-Sign", signature)

	a.logger.Debug("requesting websocket token")
	resp, err := a.http.PostForm(ctx, a.baseURL+tokenPath, form, headers)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Error  []string `json:"error"`
		Result struct {
			Token string `json:"token"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}

	if len(payload.Error) > 0 {
		return "", &APIError{Errors: payload.Error}
	}
	if payload.Result.Token == "" {
		return "", errors.New("token response missing result token")
	}

	return payload.Result.Token, nil
}
