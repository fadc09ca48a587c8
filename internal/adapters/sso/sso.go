// Package sso captures a vendor bearer token by driving the corporate SSO
// login in a real browser.
//
// The vendor only issues tokens to browser sessions that went through the
// federation login with an SMS one-time password. Acquire replays that flow
// with chromedp and lifts the Authorization header off the ranking API call
// the vendor web app makes once the user lands on the ranking page.
package sso

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/okian/plusolver/pkg/logger"
)

// Defaults for the production identity provider and vendor.
const (
	DefaultFederationURL = "https://federation.auth.lidl.com/nidp/app/login?sid=0&sid=0"
	DefaultPortalURL     = "https://mylidl.lidl.com/sap/bc/ui5_ui5/ui2/ushell/shells/abap/Fiorilaunchpad.html?sov-ui-flp=true#Shell-home"
	DefaultRankingURL    = "https://easy-plu.knowledge-hero.com/user-ranking"
	DefaultRankingAPIURL = "https://easy-plu.knowledge-hero.com/api/plu/knowledge/user/ranking-by-store"

	defaultTimeout     = 2 * time.Minute
	defaultCaptureWait = 3 * time.Second
	userAgent          = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"
)

// Form selectors on the federation login pages.
const (
	selCredentialMethod = `input[value="Credential"]`
	selUser             = `input[name="Ecom_User_ID"]`
	selPassword         = `input[name="Ecom_Password"]`
	selSubmit           = `input[type="submit"]`
	selSMSMethod        = `input[value="SMS_OTP:1"]`
	selSMSCode          = `input[name="SMSPassword"]`
	xpathVendorTile     = `//a[contains(., "easyPLU")]`
)

// OTPSource yields the SMS code once the identity provider has sent it.
type OTPSource func(ctx context.Context) (string, error)

// StaticOTP returns an OTPSource for a code known up front.
func StaticOTP(code string) OTPSource {
	return func(context.Context) (string, error) { return code, nil }
}

// Credentials for the federation login.
type Credentials struct {
	User     string
	Password string
	OTP      OTPSource
}

// String redacts the password.
func (c Credentials) String() string {
	return fmt.Sprintf("user=%s password=[REDACTED]", c.User)
}

func (c Credentials) validate() error {
	switch {
	case strings.TrimSpace(c.User) == "":
		return fmt.Errorf("%w: user", ErrMissingCredentials)
	case c.Password == "":
		return fmt.Errorf("%w: password", ErrMissingCredentials)
	case c.OTP == nil:
		return fmt.Errorf("%w: otp source", ErrMissingCredentials)
	}
	return nil
}

// Browser drives the SSO login.
type Browser struct {
	federationURL string
	portalURL     string
	rankingURL    string
	rankingAPIURL string
	headless      bool
	timeout       time.Duration
	captureWait   time.Duration
	http          *http.Client
	log           logger.Logger
}

// New creates a Browser.
func New(opts ...Option) *Browser {
	b := &Browser{
		federationURL: DefaultFederationURL,
		portalURL:     DefaultPortalURL,
		rankingURL:    DefaultRankingURL,
		rankingAPIURL: DefaultRankingAPIURL,
		headless:      true,
		timeout:       defaultTimeout,
		captureWait:   defaultCaptureWait,
		http:          &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.Get().Named("sso")
	}
	return b
}

// Acquire runs the login flow and returns the captured bearer token.
func (b *Browser) Acquire(ctx context.Context, creds Credentials) (string, error) {
	if err := creds.validate(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	tokens := make(chan string, 1)
	chromedp.ListenTarget(browserCtx, func(ev any) {
		e, ok := ev.(*network.EventRequestWillBeSent)
		if !ok || e.Request == nil || !strings.HasPrefix(e.Request.URL, b.rankingAPIURL) {
			return
		}
		if tok, ok := bearerFromHeaders(e.Request.Headers); ok {
			select {
			case tokens <- tok:
			default:
			}
		}
	})

	b.log.Info(ctx, "submitting federation credentials", logger.String("user", creds.User))
	if err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(b.federationURL),
		chromedp.WaitVisible(selCredentialMethod, chromedp.ByQuery),
		chromedp.Click(selCredentialMethod, chromedp.ByQuery),
		chromedp.WaitVisible(selUser, chromedp.ByQuery),
		chromedp.SendKeys(selUser, creds.User, chromedp.ByQuery),
		chromedp.SendKeys(selPassword, creds.Password, chromedp.ByQuery),
		chromedp.Click(selSubmit, chromedp.ByQuery),
		chromedp.WaitVisible(selSMSMethod, chromedp.ByQuery),
		chromedp.Click(selSMSMethod, chromedp.ByQuery),
		chromedp.WaitVisible(selSMSCode, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("sso: federation login: %w", err)
	}

	b.log.Info(ctx, "waiting for sms code")
	otp, err := creds.OTP(ctx)
	if err != nil {
		return "", fmt.Errorf("sso: otp: %w", err)
	}

	b.log.Info(ctx, "opening portal")
	if err := chromedp.Run(browserCtx,
		chromedp.SendKeys(selSMSCode, strings.TrimSpace(otp), chromedp.ByQuery),
		chromedp.Click(selSubmit, chromedp.ByQuery),
		chromedp.Navigate(b.portalURL),
		chromedp.WaitVisible(xpathVendorTile, chromedp.BySearch),
		chromedp.Navigate(b.rankingURL),
	); err != nil {
		return "", fmt.Errorf("sso: portal: %w", err)
	}

	t := time.NewTimer(b.captureWait)
	defer t.Stop()
	select {
	case tok := <-tokens:
		b.log.Info(ctx, "bearer token captured")
		return tok, nil
	case <-t.C:
		var location string
		_ = chromedp.Run(browserCtx, chromedp.Location(&location))
		b.log.Warn(ctx, "no bearer token seen", logger.String("url", location))
		return "", ErrTokenNotCaptured
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Verify calls the ranking endpoint with the token and returns its JSON body.
func (b *Browser) Verify(ctx context.Context, token string) (map[string]any, error) {
	body, err := json.Marshal(map[string]int{"first": 0, "rows": 20})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.rankingAPIURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", b.rankingURL)

	res, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerify, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerify, err)
	}
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: status %d", ErrVerify, res.StatusCode)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrVerify, err)
	}
	return out, nil
}

// bearerFromHeaders finds a bearer token in CDP request headers. Header names
// arrive in whatever case the page used.
func bearerFromHeaders(h network.Headers) (string, bool) {
	for k, v := range h {
		if !strings.EqualFold(k, "authorization") {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", false
		}
		const prefix = "bearer "
		if len(s) <= len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
			return "", false
		}
		tok := strings.TrimSpace(s[len(prefix):])
		return tok, tok != ""
	}
	return "", false
}
