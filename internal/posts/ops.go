package posts

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrDivideByZero is returned when a "/" reply carries the value zero.
	ErrDivideByZero = errors.New("division by zero")
	// ErrNotFinite is returned for NaN and infinite operands.
	ErrNotFinite = errors.New("value is not a finite number")
)

// ValidationError reports input rejected before any network call.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid post: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ApplyOp computes a reply's result from its parent's result. Arithmetic is done
// in decimal so chains like 0.1 + 0.2 stay exact before conversion.
func ApplyOp(parent, value float64, op Operation) (float64, error) {
	if !isFinite(parent) || !isFinite(value) {
		return 0, ErrNotFinite
	}
	a := decimal.NewFromFloat(parent)
	b := decimal.NewFromFloat(value)
	var r decimal.Decimal
	switch op {
	case OpAdd:
		r = a.Add(b)
	case OpSubtract:
		r = a.Sub(b)
	case OpMultiply:
		r = a.Mul(b)
	case OpDivide:
		if b.IsZero() {
			return 0, ErrDivideByZero
		}
		r = a.Div(b)
	default:
		return 0, fmt.Errorf("unknown operation %q", op)
	}
	return r.InexactFloat64(), nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FormatNumber renders v without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NewPost is the body of a create request.
type NewPost struct {
	Value     float64   `json:"value"`
	Operation Operation `json:"operation,omitempty"`
	ParentID  string    `json:"parentId,omitempty"`
	AuthorID  string    `json:"authorId"`
}

// IsReply reports whether the new post targets a parent.
func (n NewPost) IsReply() bool {
	return n.ParentID != ""
}

// Scope returns the listing the new post will appear in.
func (n NewPost) Scope() Scope {
	return ChildrenOf(n.ParentID)
}

// Validate enforces the client-side rules: replies need an operation, roots
// must not have one, and "/" with zero is rejected.
func (n NewPost) Validate() error {
	if strings.TrimSpace(n.AuthorID) == "" {
		return &ValidationError{Field: "author", Reason: "sign in to post"}
	}
	if !isFinite(n.Value) {
		return &ValidationError{Field: "value", Reason: "please enter a valid number", Err: ErrNotFinite}
	}
	if !n.IsReply() {
		if n.Operation != OpNone {
			return &ValidationError{Field: "operation", Reason: "root posts cannot carry an operation"}
		}
		return nil
	}
	if n.Operation == OpNone {
		return &ValidationError{Field: "operation", Reason: "operation is required for replies"}
	}
	if !n.Operation.Valid() {
		return &ValidationError{Field: "operation", Reason: fmt.Sprintf("unknown operation %q", n.Operation)}
	}
	if n.Operation == OpDivide && n.Value == 0 {
		return &ValidationError{Field: "value", Reason: "cannot divide by zero", Err: ErrDivideByZero}
	}
	return nil
}

// ParseDraft turns raw form input into a validated NewPost.
func ParseDraft(valueText, opText, parentID, authorID string) (NewPost, error) {
	trimmed := strings.TrimSpace(valueText)
	if trimmed == "" {
		return NewPost{}, &ValidationError{Field: "value", Reason: "please enter a number"}
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return NewPost{}, &ValidationError{Field: "value", Reason: "please enter a valid number", Err: err}
	}
	// ParseFloat accepts "NaN" and "Inf".
	if !isFinite(value) {
		return NewPost{}, &ValidationError{Field: "value", Reason: "please enter a valid number", Err: ErrNotFinite}
	}
	draft := NewPost{
		Value:     value,
		Operation: Operation(strings.TrimSpace(opText)),
		ParentID:  strings.TrimSpace(parentID),
		AuthorID:  strings.TrimSpace(authorID),
	}
	if err := draft.Validate(); err != nil {
		return NewPost{}, err
	}
	return draft, nil
}
