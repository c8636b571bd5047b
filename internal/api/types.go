// Package api defines the JSON request and response bodies of the HTTP API.
package api

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// SignupRequest is the body of POST /signup.
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries a signed access token.
type TokenResponse struct {
	Token string `json:"token"`
}

// PredictionResponse is one label with its rounded confidence in percent.
type PredictionResponse struct {
	Name       string `json:"name"`
	Confidence int    `json:"confidence"`
}

// HeatmapResponse is a base64-encoded PNG overlay for one detected label.
type HeatmapResponse struct {
	Disease string `json:"disease"`
	Image   string `json:"image"`
}

// ProbabilityResponse is the raw probability of one label.
type ProbabilityResponse struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
}

// AnalysisResponse is the body returned by POST /v1/xray/analyze.
type AnalysisResponse struct {
	AnalysisID    string                `json:"analysis_id"`
	Predictions   []PredictionResponse  `json:"predictions"`
	Heatmaps      []HeatmapResponse     `json:"heatmaps"`
	Probabilities []ProbabilityResponse `json:"probabilities,omitempty"`
}

// LabelsResponse lists the labels the classifier scores.
type LabelsResponse struct {
	Labels    []string `json:"labels"`
	Threshold float64  `json:"threshold"`
}

// ReportResponse is the body returned by POST /v1/report.
type ReportResponse struct {
	Title      string `json:"title"`
	ReportText string `json:"report_text"`
}
