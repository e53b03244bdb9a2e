package slack

// SearchResponse represents the response from search.files.
type SearchResponse struct {
	OK    bool       `json:"ok"`
	Error string     `json:"error,omitempty"`
	Files FileResult `json:"files"`
}

// FileResult represents the file matches block of a search response.
type FileResult struct {
	Total   int    `json:"total"`
	Matches []File `json:"matches"`
}

// File represents a file entry returned by the Slack API.
type File struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Title      string `json:"title"`
	Mimetype   string `json:"mimetype"`
	Timestamp  int64  `json:"timestamp"`
	URLPrivate string `json:"url_private"`
}
