package easyplu

import (
	"github.com/okian/plusolver/internal/domain/model"
)

// Execution types understood by the vendor.
const (
	executionBrowse = 1
	executionQuiz   = 3
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	APIToken string   `json:"api_token"`
	ID       model.ID `json:"id"`
	User     *struct {
		ID model.ID `json:"id"`
	} `json:"user"`
}

func (r loginResponse) userID() model.ID {
	if r.User != nil && !r.User.ID.IsZero() {
		return r.User.ID
	}
	return r.ID
}

type categoriesRequest struct {
	UserID       model.ID `json:"user_id"`
	BaselineTest bool     `json:"baseline_test"`
}

type createSessionRequest struct {
	ProductCategoryID *int     `json:"product_category_id"`
	CountSelection    int      `json:"count_selection"`
	UserID            model.ID `json:"user_id"`
	LanguageID        int      `json:"language_id"`
	ExecutionType     int      `json:"execution_type"`
	ExecutionSubtype  int      `json:"execution_subtype"`
	IsGoldPLU         bool     `json:"is_gold_plu"`
	NewPLU            *bool    `json:"new_plu"`
	PLUCurrentCount   int      `json:"plu_current_count"`
	TopArticleActive  bool     `json:"top_article_active"`
	AttributeGroupID  *int     `json:"attribute_group_id"`
	EANActive         bool     `json:"ean_active"`
}

type createSessionResponse struct {
	Data struct {
		SessionID model.ID `json:"session_id"`
	} `json:"data"`
}

type itemsRequest struct {
	IncrementCurrent     bool   `json:"incrementCurrent"`
	ActiveLanguageLocale string `json:"activeLanguageLocale"`
	ExecutionType        int    `json:"execution_type"`
}

type itemsResponse struct {
	Data struct {
		Items []executionItem `json:"items"`
	} `json:"data"`
}

type executionItem struct {
	ID          model.ID `json:"id"`
	PLUNumberID model.ID `json:"pluNumberId"`
	PLUNumber   *struct {
		ID           model.ID `json:"id"`
		PLUNumber    string   `json:"pluNumber"`
		ImageSrc     string   `json:"imageSrc"`
		Translations map[string]struct {
			Name string `json:"name"`
		} `json:"translations"`
	} `json:"pluNumber"`
}

type answerRequest struct {
	ExecutionType  int      `json:"execution_type"`
	GivenPLUNumber string   `json:"given_plu_number"`
	PLUNumberID    model.ID `json:"plu_number_id"`
	Answer         struct {
		Correct bool `json:"correct"`
	} `json:"answer"`
}

type resultRequest struct {
	UserID model.ID `json:"user_id"`
}

type resultResponse struct {
	Data struct {
		FinalResult   *model.Number `json:"final_result"`
		UserKnowledge *model.Number `json:"user_knowledge"`
		Ranking       *model.Number `json:"user_ranking_in_store"`
		EarnedGold    *model.Number `json:"earned_gold_plus"`
		TotalGold     *model.Number `json:"total_gold_plus"`
		Result        struct {
			TotalUserPoints *model.Number `json:"total_user_points"`
			MaxPoints       *model.Number `json:"max_points"`
			RequiredPoints  *model.Number `json:"required_points"`
			ExecutionTime   *model.Number `json:"total_execution_time"`
		} `json:"result"`
		ExecutionSession struct {
			ItemCount *model.Number `json:"plu_execution_session_item_count"`
		} `json:"executionSession"`
	} `json:"data"`
}

func (r resultResponse) attemptResult() model.AttemptResult {
	d := r.Data
	return model.AttemptResult{
		FinalResult:     d.FinalResult,
		TotalUserPoints: d.Result.TotalUserPoints,
		MaxPoints:       d.Result.MaxPoints,
		RequiredPoints:  d.Result.RequiredPoints,
		UserKnowledge:   d.UserKnowledge.Float64(),
		Ranking:         d.Ranking,
		EarnedGoldPlus:  d.EarnedGold,
		TotalGoldPlus:   d.TotalGold,
		ItemCount:       d.ExecutionSession.ItemCount,
		ExecutionTime:   d.Result.ExecutionTime,
	}
}
