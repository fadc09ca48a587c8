package easyplu

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/plusolver/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the vendor API root, e.g. https://host/api/plu.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout bounds each vendor call. Zero keeps the client's own timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSettleDelay sets the pause between starting a quiz and fetching its items.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.settleDelay = d
		}
	}
}

// WithCatalogSize sets count_selection on session create.
func WithCatalogSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.catalogSize = n
		}
	}
}

// WithLocale picks the translation used for catalog titles.
func WithLocale(locale string) Option {
	return func(c *Client) {
		if locale != "" {
			c.locale = locale
		}
	}
}

// WithLanguageID sets language_id on session create.
func WithLanguageID(id int) Option {
	return func(c *Client) {
		if id > 0 {
			c.languageID = id
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
