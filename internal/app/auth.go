package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/okian/plusolver/internal/adapters/easyplu"
	"github.com/okian/plusolver/internal/domain/inflight"
	"github.com/okian/plusolver/internal/domain/model"
)

// Session is what an attempt needs from an authenticated vendor client.
// *easyplu.Session satisfies it.
type Session interface {
	UserID() model.ID
	PopulateCatalog(ctx context.Context) ([]model.CatalogItem, error)
	BeginQuiz(ctx context.Context) (string, error)
	FetchItems(ctx context.Context, sessionID string) ([]model.QuizItem, error)
	SubmitAnswer(ctx context.Context, a model.AnswerSubmission) error
	Finalize(ctx context.Context, sessionID string) (model.AttemptResult, error)
}

// preloader is implemented by sessions that can warm vendor state first.
type preloader interface {
	PreloadCategories(ctx context.Context) error
}

// Authenticator yields a fresh Session for each attempt.
type Authenticator interface {
	Authenticate(ctx context.Context) (Session, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context) (Session, error)

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx context.Context) (Session, error) { return f(ctx) }

// identifier is implemented by authenticators that know which operator they
// act for; Stream uses it to keep one run per operator.
type identifier interface {
	Identity() string
}

type passwordAuth struct {
	client *easyplu.Client
	creds  model.Credentials
}

// PasswordAuth logs in with identifier and secret on every attempt.
func PasswordAuth(client *easyplu.Client, creds model.Credentials) Authenticator {
	return &passwordAuth{client: client, creds: creds}
}

func (a *passwordAuth) Authenticate(ctx context.Context) (Session, error) {
	s, err := a.client.Authenticate(ctx, a.creds)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (a *passwordAuth) Identity() string { return inflight.Key(a.creds.Identifier) }

type tokenAuth struct {
	client *easyplu.Client
	token  string
}

// TokenAuth reuses a captured bearer token on every attempt.
func TokenAuth(client *easyplu.Client, token string) Authenticator {
	return &tokenAuth{client: client, token: token}
}

func (a *tokenAuth) Authenticate(ctx context.Context) (Session, error) {
	s, err := a.client.FromToken(ctx, a.token)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Identity derives a stable key from the token without exposing it.
func (a *tokenAuth) Identity() string {
	return "token:" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(a.token)).String()
}

func identityOf(auth Authenticator) string {
	if id, ok := auth.(identifier); ok {
		return id.Identity()
	}
	return ""
}
