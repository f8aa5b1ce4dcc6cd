package oauth2

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/tokenstore"
)

// FlowResult contains the result of a completed OAuth2 flow
type FlowResult struct {
	Provider  entities.OAuthProvider
	AccountID string
	ExpiresAt *time.Time
	Scope     string
}

// FlowHandler runs sign-in and sign-out for one provider
type FlowHandler struct {
	provider   Provider
	tokenStore *tokenstore.TokenStore
}

// NewFlowHandler creates a new OAuth2 flow handler
func NewFlowHandler(provider Provider, store *tokenstore.TokenStore) *FlowHandler {
	return &FlowHandler{
		provider:   provider,
		tokenStore: store,
	}
}

// CLIFlowConfig configures a CLI-based OAuth2 flow
type CLIFlowConfig struct {
	Port           int                      // Local server port for callback (default: 8089)
	Timeout        time.Duration            // Timeout waiting for authorization (default: 5 minutes)
	OnAuthURL      func(url string)         // Called with the authorization URL to display
	OnCodeReceived func()                   // Called when authorization code is received
	OnSignedIn     func(result *FlowResult) // Called when tokens are stored
}

// DefaultCLIFlowConfig returns default configuration for CLI flow
func DefaultCLIFlowConfig() CLIFlowConfig {
	return CLIFlowConfig{
		Port:    8089,
		Timeout: 5 * time.Minute,
		OnAuthURL: func(url string) {
			fmt.Println("\nOpen this URL in your browser to authorize:")
			fmt.Println()
			fmt.Println(url)
		},
	}
}

type callbackResult struct {
	code string
	err  error
}

// RunCLIFlow executes the OAuth2 flow with a local callback server
func (h *FlowHandler) RunCLIFlow(ctx context.Context, cfg CLIFlowConfig) (*FlowResult, error) {
	if cfg.Port == 0 {
		cfg.Port = 8089
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("port %d is not available: %w", cfg.Port, err)
	}
	redirectURL := fmt.Sprintf("http://localhost:%d/callback", listener.Addr().(*net.TCPAddr).Port)

	authURL, codeVerifier, state, err := h.provider.BuildAuthURL(redirectURL)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to build auth URL: %w", err)
	}

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", callbackHandler(state, results))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case results <- callbackResult{err: fmt.Errorf("callback server: %w", err)}:
			default:
			}
		}
	}()
	defer server.Shutdown(context.Background())

	if cfg.OnAuthURL != nil {
		cfg.OnAuthURL(authURL)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var res callbackResult
	select {
	case res = <-results:
	case <-timeoutCtx.Done():
		return nil, fmt.Errorf("timeout waiting for authorization")
	}
	if res.err != nil {
		return nil, res.err
	}
	if cfg.OnCodeReceived != nil {
		cfg.OnCodeReceived()
	}

	result, err := h.Complete(ctx, res.code, codeVerifier, redirectURL)
	if err != nil {
		return nil, err
	}
	if cfg.OnSignedIn != nil {
		cfg.OnSignedIn(result)
	}
	return result, nil
}

func callbackHandler(state string, results chan<- callbackResult) http.HandlerFunc {
	send := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}
	page := func(w http.ResponseWriter, status int, title, body string) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, "<html><body><h1>%s</h1><p>%s</p></body></html>", html.EscapeString(title), html.EscapeString(body))
	}

	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		if errParam := query.Get("error"); errParam != "" {
			desc := query.Get("error_description")
			send(callbackResult{err: fmt.Errorf("authorization error: %s - %s", errParam, desc)})
			page(w, http.StatusBadRequest, "Authorization Failed", errParam+": "+desc)
			return
		}
		if query.Get("state") != state {
			send(callbackResult{err: ErrStateMismatch})
			page(w, http.StatusBadRequest, "Security Error", "State mismatch detected.")
			return
		}
		code := query.Get("code")
		if code == "" {
			send(callbackResult{err: errors.New("no authorization code received")})
			page(w, http.StatusBadRequest, "Error", "No authorization code received.")
			return
		}

		page(w, http.StatusOK, "Authorization Successful", "You can close this window and return to the terminal.")
		send(callbackResult{code: code})
	}
}

// Complete exchanges an authorization code and stores the tokens.
func (h *FlowHandler) Complete(ctx context.Context, code, codeVerifier, redirectURL string) (*FlowResult, error) {
	tokenResp, err := h.provider.ExchangeCode(ctx, code, codeVerifier, redirectURL)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	accountID := tokenResp.AccountID
	if accountID == "" {
		accountID, err = h.provider.GetAccountInfo(ctx, tokenResp.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to get account info: %w", err)
		}
	}

	token := &entities.DecryptedToken{
		Provider:     h.provider.Name(),
		AccountID:    accountID,
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		ExpiresAt:    tokenResp.ExpiresAt(),
		Scope:        tokenResp.Scope,
	}
	if err := h.tokenStore.SaveToken(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"provider": h.provider.Name(),
		"account":  accountID,
	}).Info("Signed in")

	return &FlowResult{
		Provider:  h.provider.Name(),
		AccountID: accountID,
		ExpiresAt: token.ExpiresAt,
		Scope:     token.Scope,
	}, nil
}

// SignOut deletes every stored token of the provider.
func (h *FlowHandler) SignOut() (int64, error) {
	removed, err := h.tokenStore.DeleteProvider(h.provider.Name())
	if err != nil {
		return 0, err
	}
	logrus.WithFields(logrus.Fields{
		"provider": h.provider.Name(),
		"removed":  removed,
	}).Info("Signed out")
	return removed, nil
}
