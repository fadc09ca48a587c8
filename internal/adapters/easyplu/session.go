package easyplu

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/pkg/logger"
)

// Session is an authenticated vendor client bound to one user.
type Session struct {
	client *Client
	http   *http.Client
	userID model.ID
}

// UserID returns the vendor user id the session acts for.
func (s *Session) UserID() model.ID { return s.userID }

// PreloadCategories warms the vendor's category state ahead of a session.
func (s *Session) PreloadCategories(ctx context.Context) error {
	return s.client.do(ctx, s.http, "product_categories", http.MethodPost, "/plu-learn/product-categories",
		categoriesRequest{UserID: s.userID}, nil)
}

// PopulateCatalog opens a browse session and returns every catalog entry with
// its correct answer.
func (s *Session) PopulateCatalog(ctx context.Context) ([]model.CatalogItem, error) {
	sessionID, err := s.createSession(ctx, executionBrowse)
	if err != nil {
		return nil, err
	}
	raw, err := s.executionItems(ctx, sessionID, executionBrowse)
	if err != nil {
		return nil, err
	}

	items := make([]model.CatalogItem, 0, len(raw))
	for _, it := range raw {
		if it.PLUNumber == nil || it.PLUNumber.ID.IsZero() {
			continue
		}
		items = append(items, model.CatalogItem{
			CatalogID:    it.PLUNumber.ID,
			Answer:       it.PLUNumber.PLUNumber,
			Title:        it.PLUNumber.Translations[s.client.locale].Name,
			ImageRef:     it.PLUNumber.ImageSrc,
			SourceItemID: it.ID,
		})
	}
	s.client.log.Info(ctx, "catalog fetched",
		logger.String("session_id", sessionID),
		logger.Int("items", len(items)),
		logger.Int("skipped", len(raw)-len(items)),
	)
	return items, nil
}

// BeginQuiz creates a graded session, starts it and waits for the vendor to
// settle. It returns the session id.
func (s *Session) BeginQuiz(ctx context.Context) (string, error) {
	sessionID, err := s.createSession(ctx, executionQuiz)
	if err != nil {
		return "", err
	}
	if err := s.client.do(ctx, s.http, "start_execution", http.MethodPost,
		"/plu-learn/"+url.PathEscape(sessionID)+"/start-execution", struct{}{}, nil); err != nil {
		return "", err
	}

	if d := s.client.settleDelay; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return sessionID, nil
}

// FetchItems lists the question instances of a graded session.
func (s *Session) FetchItems(ctx context.Context, sessionID string) ([]model.QuizItem, error) {
	raw, err := s.executionItems(ctx, sessionID, executionQuiz)
	if err != nil {
		return nil, err
	}
	items := make([]model.QuizItem, 0, len(raw))
	for _, it := range raw {
		catalogID := it.PLUNumberID
		if catalogID.IsZero() && it.PLUNumber != nil {
			catalogID = it.PLUNumber.ID
		}
		items = append(items, model.QuizItem{InstanceID: it.ID, CatalogID: catalogID})
	}
	return items, nil
}

// SubmitAnswer records the answer for one question instance.
func (s *Session) SubmitAnswer(ctx context.Context, a model.AnswerSubmission) error {
	req := answerRequest{
		ExecutionType:  executionQuiz,
		GivenPLUNumber: a.Given,
		PLUNumberID:    a.CatalogID,
	}
	req.Answer.Correct = a.Correct
	return s.client.do(ctx, s.http, "update_answer", http.MethodPut,
		"/plu-learn/"+url.PathEscape(a.InstanceID.String())+"/update", req, nil)
}

// Finalize closes a graded session and returns the vendor's verdict.
func (s *Session) Finalize(ctx context.Context, sessionID string) (model.AttemptResult, error) {
	var resp resultResponse
	if err := s.client.do(ctx, s.http, "result", http.MethodPost,
		"/plu-learn/"+url.PathEscape(sessionID)+"/result", resultRequest{UserID: s.userID}, &resp); err != nil {
		return model.AttemptResult{}, err
	}
	return resp.attemptResult(), nil
}

func (s *Session) createSession(ctx context.Context, executionType int) (string, error) {
	req := createSessionRequest{
		CountSelection:  s.client.catalogSize,
		UserID:          s.userID,
		LanguageID:      s.client.languageID,
		ExecutionType:   executionType,
		PLUCurrentCount: 1,
	}
	var resp createSessionResponse
	if err := s.client.do(ctx, s.http, "create_session", http.MethodPost,
		"/plu-learn/create-new-session", req, &resp); err != nil {
		return "", err
	}
	if resp.Data.SessionID.IsZero() {
		return "", &UpstreamError{Call: "create_session", Body: "no data.session_id in response"}
	}
	s.client.log.Debug(ctx, "session created",
		logger.String("session_id", resp.Data.SessionID.String()),
		logger.Int("execution_type", executionType),
	)
	return resp.Data.SessionID.String(), nil
}

func (s *Session) executionItems(ctx context.Context, sessionID string, executionType int) ([]executionItem, error) {
	var resp itemsResponse
	err := s.client.do(ctx, s.http, "execution_items", http.MethodPost,
		"/plu-learn/"+url.PathEscape(sessionID)+"/execution-items",
		itemsRequest{ActiveLanguageLocale: s.client.locale, ExecutionType: executionType}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Data.Items, nil
}
