package server

// ExplainForm carries the optional multipart fields of an explain request.
type ExplainForm struct {
	Category string `form:"category" validate:"omitempty,max=64,printascii"`
	Heatmap  bool   `form:"heatmap"`
	Detailed bool   `form:"detailed"`
}

// PredictionResponse is the classifier verdict.
type PredictionResponse struct {
	Label      string  `json:"label" jsonschema:"enum=Original,enum=Fake"`
	Confidence float64 `json:"confidence" jsonschema:"minimum=0,maximum=100"`
	Uncertain  bool    `json:"uncertain"`
}

// ExplainResponse is the body of POST /api/v1/explain.
type ExplainResponse struct {
	RequestID    string             `json:"request_id"`
	Prediction   PredictionResponse `json:"prediction"`
	Reasons      []string           `json:"reasons" jsonschema:"minItems=1,maxItems=5"`
	Category     string             `json:"category"`
	HeatmapPNG   string             `json:"heatmap_png,omitempty" jsonschema:"description=Base64-encoded PNG overlay"`
	HeatmapError string             `json:"heatmap_error,omitempty"`
	Features     map[string]float64 `json:"features,omitempty"`
	Similarity   map[string]float64 `json:"similarity,omitempty"`
	TimingsMS    map[string]float64 `json:"timings_ms"`
}

// ReasonsRequest is the body of POST /api/v1/reasons.
type ReasonsRequest struct {
	Features   map[string]float64 `json:"features" validate:"required"`
	Label      string             `json:"label" validate:"required,max=32"`
	Confidence float64            `json:"confidence" validate:"gte=0,lte=100"`
}

// ReasonsResponse is the body returned by POST /api/v1/reasons.
type ReasonsResponse struct {
	Reasons   []string `json:"reasons"`
	Uncertain bool     `json:"uncertain"`
}

// CompareRequest is the body of POST /api/v1/compare.
type CompareRequest struct {
	Features map[string]float64 `json:"features" validate:"required"`
	Category string             `json:"category" validate:"omitempty,max=64,printascii"`
}

// CompareResponse is the body returned by POST /api/v1/compare.
type CompareResponse struct {
	Category   string             `json:"category"`
	Matched    bool               `json:"matched"`
	Similarity map[string]float64 `json:"similarity"`
}

// ProfilesResponse lists the reference categories.
type ProfilesResponse struct {
	Categories []string `json:"categories"`
	Default    string   `json:"default"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
