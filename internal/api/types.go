package api

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Query       string `json:"query"`
	MaxPages    int    `json:"max_pages"`
	Concurrency int    `json:"concurrency"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
