package archive

import (
	"encoding/json"
	"strconv"
)

// SearchResult is one row from a search query.
type SearchResult struct {
	Identifier  string   `json:"identifier"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	MediaType   string   `json:"mediatype,omitempty"`
	Collection  []string `json:"collection,omitempty"`
	Date        string   `json:"date,omitempty"`
	Creator     string   `json:"creator,omitempty"`
	Downloads   int64    `json:"downloads,omitempty"`
}

// SearchPage is one page of search results plus the total match count.
type SearchPage struct {
	Results []SearchResult `json:"results"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Rows    int            `json:"rows"`
}

// ItemFile describes one file within an item's listing.
type ItemFile struct {
	Name   string `json:"name"`
	Size   *int64 `json:"size,omitempty"`
	Format string `json:"format,omitempty"`
	MD5    string `json:"md5,omitempty"`
	Mtime  string `json:"mtime,omitempty"`
	Source string `json:"source,omitempty"`
}

// Item is the full metadata record for one identifier.
type Item struct {
	Identifier string         `json:"identifier"`
	Metadata   map[string]any `json:"metadata"`
	Files      []ItemFile     `json:"files"`
}

// flexString decodes metadata fields that may arrive as a string, a number,
// or a list of strings. Lists collapse to their first element.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*s = flexString(asString)
		return nil
	}
	var asList []string
	if err := json.Unmarshal(data, &asList); err == nil {
		if len(asList) > 0 {
			*s = flexString(asList[0])
		}
		return nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*s = flexString(asNumber.String())
		return nil
	}
	*s = ""
	return nil
}

// flexStrings decodes fields that may be a single string or a list.
type flexStrings []string

func (s *flexStrings) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		if asString != "" {
			*s = flexStrings{asString}
		}
		return nil
	}
	var asList []string
	if err := json.Unmarshal(data, &asList); err == nil {
		*s = flexStrings(asList)
		return nil
	}
	*s = nil
	return nil
}

// flexInt64 decodes size fields that may arrive as a number or a string.
type flexInt64 struct {
	value int64
	set   bool
}

func (n *flexInt64) UnmarshalJSON(data []byte) error {
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		if parsed, err := asNumber.Int64(); err == nil {
			n.value = parsed
			n.set = true
		}
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		if parsed, err := strconv.ParseInt(asString, 10, 64); err == nil {
			n.value = parsed
			n.set = true
		}
		return nil
	}
	return nil
}

func (n flexInt64) pointer() *int64 {
	if !n.set {
		return nil
	}
	value := n.value
	return &value
}
