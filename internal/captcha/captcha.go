// Package captcha forwards reCAPTCHA tokens to Google's siteverify endpoint.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

var (
	ErrMissingToken  = errors.New("captcha token is required")
	ErrNotConfigured = errors.New("captcha secret is not configured")
	ErrUpstream      = errors.New("captcha verification failed")
)

type Result struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

type Verifier struct {
	client    *http.Client
	verifyURL string
	secret    string
}

func New(secret, verifyURL string, client *http.Client) *Verifier {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Verifier{client: client, verifyURL: verifyURL, secret: secret}
}

// Verify checks token with the upstream service. remoteIP is optional.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (*Result, error) {
	const op = "captcha.Verifier.Verify"

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	if v.secret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %w: status %d", op, ErrUpstream, resp.StatusCode)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}

	return &out, nil
}
