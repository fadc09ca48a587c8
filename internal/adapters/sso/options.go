package sso

import (
	"net/http"
	"time"

	"github.com/okian/plusolver/pkg/logger"
)

// Option configures a Browser.
type Option func(*Browser)

// WithFederationURL sets the identity provider login page.
func WithFederationURL(u string) Option {
	return func(b *Browser) {
		if u != "" {
			b.federationURL = u
		}
	}
}

// WithPortalURL sets the portal page that establishes the SSO session.
func WithPortalURL(u string) Option {
	return func(b *Browser) {
		if u != "" {
			b.portalURL = u
		}
	}
}

// WithRankingURL sets the ranking page whose API call carries the token.
func WithRankingURL(u string) Option {
	return func(b *Browser) {
		if u != "" {
			b.rankingURL = u
		}
	}
}

// WithRankingAPIURL sets the ranking endpoint used for capture and Verify.
func WithRankingAPIURL(u string) Option {
	return func(b *Browser) {
		if u != "" {
			b.rankingAPIURL = u
		}
	}
}

// WithHeadless toggles a visible browser window.
func WithHeadless(headless bool) Option {
	return func(b *Browser) { b.headless = headless }
}

// WithTimeout bounds the whole browser flow.
func WithTimeout(d time.Duration) Option {
	return func(b *Browser) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithCaptureWait sets how long to wait on the ranking page for the token.
func WithCaptureWait(d time.Duration) Option {
	return func(b *Browser) {
		if d > 0 {
			b.captureWait = d
		}
	}
}

// WithHTTPClient sets the client used by Verify.
func WithHTTPClient(h *http.Client) Option {
	return func(b *Browser) {
		if h != nil {
			b.http = h
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Browser) {
		if l != nil {
			b.log = l
		}
	}
}
