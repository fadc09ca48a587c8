// Package model contains domain models passed between layers.
package model

// CatalogItem is one entry of the fixed question bank with its correct answer.
// Identity is CatalogID.
type CatalogItem struct {
	CatalogID    ID     `json:"catalog_id"`
	Answer       string `json:"correct_answer"`
	Title        string `json:"display_title"`
	ImageRef     string `json:"image_reference"`
	SourceItemID ID     `json:"source_item_id,omitempty"` // browse-session item the entry was read from
}

// QuizItem is one question instance inside a vendor session.
type QuizItem struct {
	InstanceID ID `json:"item_id"`
	CatalogID  ID `json:"plu_number_id"`
}

// AnswerSubmission is the answer given for one QuizItem.
type AnswerSubmission struct {
	InstanceID ID     `json:"item_id"`
	CatalogID  ID     `json:"plu_number_id"`
	Given      string `json:"given_plu"`
	Correct    bool   `json:"correct"`
}

// AttemptResult holds what the vendor reported for a finished attempt plus the
// figures derived locally from the submissions.
type AttemptResult struct {
	FinalResult     *Number `json:"final_result"`
	TotalUserPoints *Number `json:"total_user_points"`
	MaxPoints       *Number `json:"max_points"`
	RequiredPoints  *Number `json:"required_points"`
	UserKnowledge   float64 `json:"user_knowledge"`
	Ranking         *Number `json:"user_ranking_in_store"`
	EarnedGoldPlus  *Number `json:"earned_gold_plus"`
	TotalGoldPlus   *Number `json:"total_gold_plus"`
	ItemCount       *Number `json:"plu_execution_session_item_count"`
	ExecutionTime   *Number `json:"total_execution_time"`

	TotalItems     int                `json:"total_items"`
	CorrectItems   int                `json:"correct_items"`
	IncorrectItems int                `json:"incorrect_items"`
	AverageScore   float64            `json:"average_score"`
	IntegrityGaps  int                `json:"integrity_gaps"`
	Attempt        int                `json:"attempt,omitempty"`
	Details        []AnswerSubmission `json:"detailed_results"`
}

// FullKnowledge reports whether the vendor considers the catalog mastered.
func (r AttemptResult) FullKnowledge() bool {
	return r.UserKnowledge >= 100.0
}
