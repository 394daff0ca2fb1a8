package dto

// AnalyzeRequest is the advisory input: the draft plus the interaction state
// the client tracks across rounds.
type AnalyzeRequest struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	DoneActions      []string `json:"done_actions"`
	RejectedActions  []string `json:"rejected_actions"`
	PriorSuggestions []string `json:"prior_suggestions"`
}

// AnalyzeResponse is the advisory result.
type AnalyzeResponse struct {
	Suggestions         []string `json:"suggestions"`
	PredictedDepartment *string  `json:"predicted_department"`
	Confidence          *float64 `json:"confidence"`
	PriorityHint        *string  `json:"priority_hint"`
	Rationale           *string  `json:"rationale"`
	Source              string   `json:"source"`
	NextAction          *string  `json:"next_action"`
	FollowUpQuestions   []string `json:"follow_up_questions"`
}

// ClassifyRequest asks for a department guess for a draft.
type ClassifyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ClassifyResponse carries the guessed department, if any.
type ClassifyResponse struct {
	DepartmentID   *string `json:"department_id"`
	DepartmentName *string `json:"department_name"`
}
