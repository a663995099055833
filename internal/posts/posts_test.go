package posts

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func TestApplyOp(t *testing.T) {
	tests := []struct {
		name   string
		parent float64
		value  float64
		op     Operation
		want   float64
	}{
		{"subtract", 10, 3, OpSubtract, 7},
		{"add", 10, 3, OpAdd, 13},
		{"multiply", 10, 3, OpMultiply, 30},
		{"divide", 10, 4, OpDivide, 2.5},
		{"decimal add", 0.1, 0.2, OpAdd, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyOp(tt.parent, tt.value, tt.op)
			if err != nil {
				t.Fatalf("ApplyOp returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ApplyOp(%v, %v, %q) = %v, want %v", tt.parent, tt.value, tt.op, got, tt.want)
			}
		})
	}
}

func TestApplyOp_DivideByZero(t *testing.T) {
	if _, err := ApplyOp(10, 0, OpDivide); !errors.Is(err, ErrDivideByZero) {
		t.Fatalf("ApplyOp error = %v, want ErrDivideByZero", err)
	}
	if _, err := ApplyOp(10, 1, Operation("%")); err == nil {
		t.Fatal("ApplyOp with unknown operation returned nil error")
	}
}

func TestApplyOp_RejectsNonFinite(t *testing.T) {
	tests := []struct {
		name          string
		parent, value float64
	}{
		{"nan value", 10, math.NaN()},
		{"inf value", 10, math.Inf(1)},
		{"nan parent", math.NaN(), 1},
		{"negative inf parent", math.Inf(-1), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ApplyOp(tt.parent, tt.value, OpAdd); !errors.Is(err, ErrNotFinite) {
				t.Fatalf("ApplyOp error = %v, want ErrNotFinite", err)
			}
		})
	}
}

func TestNewPost_ValidateRejectsNonFinite(t *testing.T) {
	err := NewPost{Value: math.NaN(), Operation: OpAdd, ParentID: "p1", AuthorID: "u1"}.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "value" {
		t.Fatalf("Validate error = %v, want value ValidationError", err)
	}
	if !errors.Is(err, ErrNotFinite) {
		t.Fatalf("Validate error = %v, want it to wrap ErrNotFinite", err)
	}
}

func TestParseDraft_Rules(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		op        string
		parent    string
		author    string
		wantField string
	}{
		{"non numeric", "abc", "", "", "u1", "value"},
		{"empty value", "  ", "", "", "u1", "value"},
		{"reply without operation", "3", "", "p1", "u1", "operation"},
		{"root with operation", "3", "+", "", "u1", "operation"},
		{"unknown operation", "3", "%", "p1", "u1", "operation"},
		{"divide by zero", "0", "/", "p1", "u1", "value"},
		{"missing author", "3", "", "", "", "author"},
		{"nan reply", "NaN", "+", "p1", "u1", "value"},
		{"lowercase nan", "nan", "+", "p1", "u1", "value"},
		{"inf root", "Inf", "", "", "u1", "value"},
		{"infinity reply", "-Infinity", "*", "p1", "u1", "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDraft(tt.value, tt.op, tt.parent, tt.author)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ParseDraft error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Fatalf("ValidationError.Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestParseDraft_DivideByZeroWrapsSentinel(t *testing.T) {
	_, err := ParseDraft("0", "/", "p1", "u1")
	if !errors.Is(err, ErrDivideByZero) {
		t.Fatalf("ParseDraft error = %v, want it to wrap ErrDivideByZero", err)
	}
}

func TestParseDraft_Valid(t *testing.T) {
	draft, err := ParseDraft(" 2.5 ", "*", "p1", "u1")
	if err != nil {
		t.Fatalf("ParseDraft returned error: %v", err)
	}
	if draft.Value != 2.5 || draft.Operation != OpMultiply || draft.ParentID != "p1" {
		t.Fatalf("draft = %#v, want value=2.5 op=* parent=p1", draft)
	}
	if draft.Scope() != ChildrenOf("p1") {
		t.Fatalf("Scope() = %v, want children:p1", draft.Scope())
	}

	root, err := ParseDraft("10", "", "", "u1")
	if err != nil {
		t.Fatalf("ParseDraft(root) returned error: %v", err)
	}
	if !root.Scope().IsRoot() {
		t.Fatalf("root draft scope = %v, want root", root.Scope())
	}
}

func TestPost_Validate(t *testing.T) {
	if err := (Post{ID: "a"}).Validate(); err != nil {
		t.Fatalf("root Validate returned error: %v", err)
	}
	if err := (Post{ID: "a", Operation: OpAdd}).Validate(); err == nil {
		t.Fatal("root with operation validated, want error")
	}
	if err := (Post{ID: "b", ParentID: "a"}).Validate(); err == nil {
		t.Fatal("reply without operation validated, want error")
	}
	if err := (Post{ID: "b", ParentID: "a", Operation: OpDivide}).Validate(); err != nil {
		t.Fatalf("reply Validate returned error: %v", err)
	}
}

func TestPost_UnmarshalWireShape(t *testing.T) {
	raw := `{
		"id": "c1",
		"value": 3,
		"operation": "-",
		"parentId": "r1",
		"result": 7,
		"authorId": "u1",
		"createdAt": "2024-05-01T10:00:00.000Z",
		"author": {"id": "u1", "name": null, "email": "a@example.com"},
		"_count": {"children": 4}
	}`
	var p Post
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if p.Operation != OpSubtract || p.ParentID != "r1" || p.Result != 7 || p.ChildCount != 4 {
		t.Fatalf("post = %#v, want op=- parent=r1 result=7 children=4", p)
	}
	if got := p.Author.DisplayName(); got != "a@example.com" {
		t.Fatalf("DisplayName = %q, want email fallback", got)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if !p.CreatedAt.Equal(want) {
		t.Fatalf("CreatedAt = %v, want %v", p.CreatedAt, want)
	}
}

func TestPost_UnmarshalRootWithoutResult(t *testing.T) {
	var p Post
	if err := json.Unmarshal([]byte(`{"id":"r1","value":10,"operation":null,"parentId":null,"author":{"id":"u1"}}`), &p); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if !p.IsRoot() || p.Operation != OpNone {
		t.Fatalf("post = %#v, want root without operation", p)
	}
	if p.Result != 10 {
		t.Fatalf("Result = %v, want value fallback 10", p.Result)
	}
	if p.AuthorID != "u1" {
		t.Fatalf("AuthorID = %q, want author.id fallback", p.AuthorID)
	}
	if got := p.Author.DisplayName(); got != "Unknown" {
		t.Fatalf("DisplayName = %q, want Unknown", got)
	}
}

func TestPost_MarshalRoundTripKeepsCount(t *testing.T) {
	in := Post{ID: "c1", Value: 2, Operation: OpMultiply, ParentID: "r1", Result: 20, ChildCount: 2}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	var out Post
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if out.ChildCount != 2 || out.Result != 20 || out.Operation != OpMultiply {
		t.Fatalf("round trip = %#v, want %#v", out, in)
	}
}

func TestScopeKeysAndCursor(t *testing.T) {
	if Root().Key() != "root" {
		t.Fatalf("Root().Key() = %q, want root", Root().Key())
	}
	if ChildrenOf("x").Key() != "children:x" {
		t.Fatalf("ChildrenOf(x).Key() = %q, want children:x", ChildrenOf("x").Key())
	}
	if c := NextCursor(""); c.State != CursorExhausted || c.HasMore() {
		t.Fatalf("NextCursor(\"\") = %#v, want exhausted", c)
	}
	if c := NextCursor("abc"); c.State != CursorMore || c.Next != "abc" {
		t.Fatalf("NextCursor(abc) = %#v, want more/abc", c)
	}
	var zero Cursor
	if zero.State != CursorUnfetched {
		t.Fatalf("zero Cursor state = %v, want unfetched", zero.State)
	}
}

func TestPost_Label(t *testing.T) {
	if got := (Post{Value: 10}).Label(); got != "10" {
		t.Fatalf("root Label = %q, want 10", got)
	}
	if got := (Post{Value: 2.5, Operation: OpDivide, ParentID: "p"}).Label(); got != "/ 2.5" {
		t.Fatalf("reply Label = %q, want \"/ 2.5\"", got)
	}
}
