package posts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Operation is the arithmetic operator a reply applies to its parent's result.
// Root posts carry the empty operation.
type Operation string

const (
	OpNone     Operation = ""
	OpAdd      Operation = "+"
	OpSubtract Operation = "-"
	OpMultiply Operation = "*"
	OpDivide   Operation = "/"
)

// Operations lists the operators a reply may use, in menu order.
func Operations() []Operation {
	return []Operation{OpAdd, OpSubtract, OpMultiply, OpDivide}
}

// Valid reports whether op is one of the four reply operators.
func (op Operation) Valid() bool {
	switch op {
	case OpAdd, OpSubtract, OpMultiply, OpDivide:
		return true
	}
	return false
}

// Author is the denormalized identity attached to every post.
type Author struct {
	ID    string  `json:"id"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// DisplayName returns the name, then the email, then "Unknown".
func (a Author) DisplayName() string {
	if a.Name != nil && strings.TrimSpace(*a.Name) != "" {
		return *a.Name
	}
	if a.Email != nil && strings.TrimSpace(*a.Email) != "" {
		return *a.Email
	}
	return "Unknown"
}

// Post is a single ledger entry. Posts are immutable once fetched; a later fetch
// of the same id supersedes the earlier record.
type Post struct {
	ID         string
	Value      float64
	Operation  Operation
	ParentID   string
	Result     float64
	AuthorID   string
	Author     Author
	CreatedAt  time.Time
	ChildCount int
}

// IsRoot reports whether the post has no parent.
func (p Post) IsRoot() bool {
	return p.ParentID == ""
}

// Validate checks the root/operation invariant: roots carry no operation and
// replies always carry one.
func (p Post) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return &ValidationError{Field: "id", Reason: "missing"}
	}
	if p.IsRoot() && p.Operation != OpNone {
		return &ValidationError{Field: "operation", Reason: "root posts cannot carry an operation"}
	}
	if !p.IsRoot() && !p.Operation.Valid() {
		return &ValidationError{Field: "operation", Reason: fmt.Sprintf("reply has invalid operation %q", p.Operation)}
	}
	return nil
}

// Label renders the post the way the list shows it, e.g. "+ 3" or "10".
func (p Post) Label() string {
	value := FormatNumber(p.Value)
	if p.Operation == OpNone {
		return value
	}
	return string(p.Operation) + " " + value
}

type wirePost struct {
	ID         string     `json:"id"`
	Value      float64    `json:"value"`
	Operation  *Operation `json:"operation"`
	ParentID   *string    `json:"parentId"`
	Result     *float64   `json:"result,omitempty"`
	AuthorID   string     `json:"authorId"`
	Author     Author     `json:"author"`
	CreatedAt  time.Time  `json:"createdAt"`
	ChildCount *int       `json:"childCount,omitempty"`
	Count      *struct {
		Children int `json:"children"`
	} `json:"_count,omitempty"`
}

// MarshalJSON writes the collaborator's wire shape, including _count.children.
func (p Post) MarshalJSON() ([]byte, error) {
	w := wirePost{
		ID:        p.ID,
		Value:     p.Value,
		AuthorID:  p.AuthorID,
		Author:    p.Author,
		CreatedAt: p.CreatedAt,
	}
	result := p.Result
	w.Result = &result
	if p.Operation != OpNone {
		op := p.Operation
		w.Operation = &op
	}
	if p.ParentID != "" {
		parent := p.ParentID
		w.ParentID = &parent
	}
	w.Count = &struct {
		Children int `json:"children"`
	}{Children: p.ChildCount}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the collaborator's wire shape. Null operation and
// parentId decode to their empty values; a missing result on a root falls back
// to the value.
func (p *Post) UnmarshalJSON(data []byte) error {
	var w wirePost
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Post{
		ID:        w.ID,
		Value:     w.Value,
		AuthorID:  w.AuthorID,
		Author:    w.Author,
		CreatedAt: w.CreatedAt,
	}
	if w.Operation != nil {
		p.Operation = *w.Operation
	}
	if w.ParentID != nil {
		p.ParentID = *w.ParentID
	}
	switch {
	case w.Result != nil:
		p.Result = *w.Result
	case p.ParentID == "":
		p.Result = p.Value
	}
	switch {
	case w.Count != nil:
		p.ChildCount = w.Count.Children
	case w.ChildCount != nil:
		p.ChildCount = *w.ChildCount
	}
	if p.AuthorID == "" {
		p.AuthorID = p.Author.ID
	}
	return nil
}

// IDs returns the ids of items in order.
func IDs(items []Post) []string {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}
