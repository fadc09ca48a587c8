package cli

import (
	"context"
	"fmt"

	"github.com/okian/plusolver/internal/adapters/easyplu"
	"github.com/okian/plusolver/internal/adapters/repository"
	"github.com/okian/plusolver/internal/adapters/sso"
	service "github.com/okian/plusolver/internal/app"
	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/internal/domain/targeting"
	"github.com/okian/plusolver/pkg/logger"
)

// Environment variables read instead of prompting.
const (
	envPassword = "PLUSOLVER_PASSWORD"
	envAPIKey   = "PLUSOLVER_API_KEY"
)

func (e *env) vendorClient() *easyplu.Client {
	return easyplu.New(
		easyplu.WithBaseURL(e.cfg.VendorBaseURL),
		easyplu.WithTimeout(e.cfg.VendorTimeout()),
		easyplu.WithSettleDelay(e.cfg.SettleDelay()),
		easyplu.WithCatalogSize(e.cfg.CatalogSize),
		easyplu.WithLocale(e.cfg.Locale),
		easyplu.WithLanguageID(e.cfg.LanguageID),
	)
}

func (e *env) openCache(ctx context.Context) (repository.Cache, error) {
	cache, err := repository.OpenCache(ctx, e.cfg.CacheDriver, e.cfg.CacheDSN)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return cache, nil
}

// openService starts a solver service over the configured cache. The caller
// stops it.
func (e *env) openService(ctx context.Context, maxAttempts int) (*service.Service, error) {
	cache, err := e.openCache(ctx)
	if err != nil {
		return nil, err
	}
	if maxAttempts <= 0 {
		maxAttempts = e.cfg.MaxAttempts
	}
	svc := service.New(
		service.WithCache(cache),
		service.WithPlanner(targeting.NewPlanner(targeting.WithWrongAnswer(e.cfg.WrongAnswer))),
		service.WithMaxAttempts(maxAttempts),
		service.WithPollInterval(e.cfg.PollInterval()),
		service.WithQueueCapacity(e.cfg.QueueCapacity),
		service.WithMaxActiveRuns(1),
	)
	if err := svc.Start(ctx); err != nil {
		_ = cache.Close()
		return nil, err
	}
	return svc, nil
}

// credentials takes the identifier from the flag or a prompt and the secret
// from PLUSOLVER_PASSWORD or a prompt without echo.
func (e *env) credentials(email string) (model.Credentials, error) {
	id, err := e.prompt.LineOr(email, "Email: ")
	if err != nil {
		return model.Credentials{}, err
	}
	secret, err := e.prompt.SecretOr(envPassword, "Password: ")
	if err != nil {
		return model.Credentials{}, err
	}
	creds := model.Credentials{Identifier: id, Secret: secret}
	return creds, creds.Validate()
}

func (e *env) browser() *sso.Browser {
	return sso.New(
		sso.WithFederationURL(e.cfg.SSOFederationURL),
		sso.WithPortalURL(e.cfg.SSOPortalURL),
		sso.WithRankingURL(e.cfg.SSORankingURL),
		sso.WithHeadless(e.cfg.SSOHeadless),
		sso.WithTimeout(e.cfg.SSOTimeout()),
	)
}

// ssoToken runs the browser login, asking for the SMS code once the
// federation page requests it.
func (e *env) ssoToken(ctx context.Context, user string) (string, error) {
	id, err := e.prompt.LineOr(user, "SSO user: ")
	if err != nil {
		return "", err
	}
	secret, err := e.prompt.SecretOr(envPassword, "SSO password: ")
	if err != nil {
		return "", err
	}
	creds := sso.Credentials{
		User:     id,
		Password: secret,
		OTP: func(context.Context) (string, error) {
			return e.prompt.Line("SMS code: ")
		},
	}
	logger.Get().Info(ctx, "starting browser login", logger.String("user", id))
	return e.browser().Acquire(ctx, creds)
}

// authenticator picks password login or a token captured through SSO.
func (e *env) authenticator(ctx context.Context, useSSO bool, user string) (service.Authenticator, error) {
	client := e.vendorClient()
	if useSSO {
		token, err := e.ssoToken(ctx, user)
		if err != nil {
			return nil, err
		}
		return service.TokenAuth(client, token), nil
	}
	creds, err := e.credentials(user)
	if err != nil {
		return nil, err
	}
	return service.PasswordAuth(client, creds), nil
}
