package posts

// rootKey names the root scope in cursor maps and query keys.
const rootKey = "root"

// Scope is a pagination namespace: either the root posts or the direct
// children of one post.
type Scope struct {
	ParentID string
}

// Root returns the root-posts scope.
func Root() Scope {
	return Scope{}
}

// ChildrenOf returns the scope listing direct replies of parentID.
func ChildrenOf(parentID string) Scope {
	return Scope{ParentID: parentID}
}

// IsRoot reports whether s lists root posts.
func (s Scope) IsRoot() bool {
	return s.ParentID == ""
}

// Key returns "root" or "children:<parentID>".
func (s Scope) Key() string {
	if s.IsRoot() {
		return rootKey
	}
	return "children:" + s.ParentID
}

func (s Scope) String() string {
	return s.Key()
}

// CursorState distinguishes a scope that was never fetched from one that is
// exhausted.
type CursorState int

const (
	CursorUnfetched CursorState = iota
	CursorMore
	CursorExhausted
)

func (s CursorState) String() string {
	switch s {
	case CursorMore:
		return "more"
	case CursorExhausted:
		return "exhausted"
	default:
		return "unfetched"
	}
}

// Cursor is the pagination position of a scope. Next is only meaningful when
// State is CursorMore.
type Cursor struct {
	State CursorState
	Next  string
}

// NextCursor builds the cursor that follows a fetched page. An empty next token
// means the scope is exhausted.
func NextCursor(next string) Cursor {
	if next == "" {
		return Cursor{State: CursorExhausted}
	}
	return Cursor{State: CursorMore, Next: next}
}

// HasMore reports whether another page can be requested.
func (c Cursor) HasMore() bool {
	return c.State == CursorMore
}
