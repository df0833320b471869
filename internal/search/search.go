package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultPerson ResultType = "person"
	ResultPlace  ResultType = "place"
	ResultNote   ResultType = "note"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	TreeID   string     `json:"treeId"`
	PersonID string     `json:"personId,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterType   ResultType // empty = all types
	FilterTreeID string
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// PersonRecord is the data we index for a person.
type PersonRecord struct {
	ID         string `json:"id"` // treeID:personID, unique across trees
	TreeID     string `json:"treeId"`
	PersonID   string `json:"personId"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	BirthPlace string `json:"birthPlace"`
	DeathPlace string `json:"deathPlace"`
	Occupation string `json:"occupation"`
}

// PlaceRecord is the data we index for a distinct location string.
type PlaceRecord struct {
	ID     string `json:"id"` // treeID:hash(raw)
	TreeID string `json:"treeId"`
	Raw    string `json:"raw"`
	Region string `json:"region"`
	Count  int    `json:"count"`
}

// NoteRecord is the data we index for a research note.
type NoteRecord struct {
	ID       string `json:"id"`
	TreeID   string `json:"treeId"`
	PersonID string `json:"personId"`
	Body     string `json:"body"`
}
