package apitest

import (
	"github.com/five82/posttree/internal/posts"
)

// DemoAuthorID is the author used by SeedDemo and by -demo sessions.
const DemoAuthorID = "demo-user"

// SeedDemo fills b with a small tree: a few roots, replies and a nested chain.
func SeedDemo(b *Backend) {
	name := "Demo User"
	email := "demo@example.com"
	b.AddAuthor(posts.Author{ID: DemoAuthorID, Name: &name, Email: &email})
	other := "ada@example.com"
	b.AddAuthor(posts.Author{ID: "ada", Email: &other})

	roots := []float64{10, 42, 7}
	for _, v := range roots {
		root, err := b.Create(posts.NewPost{Value: v, AuthorID: DemoAuthorID})
		if err != nil {
			continue
		}
		reply, err := b.Create(posts.NewPost{Value: 3, Operation: posts.OpSubtract, ParentID: root.ID, AuthorID: "ada"})
		if err != nil {
			continue
		}
		_, _ = b.Create(posts.NewPost{Value: 2, Operation: posts.OpMultiply, ParentID: reply.ID, AuthorID: DemoAuthorID})
		_, _ = b.Create(posts.NewPost{Value: 4, Operation: posts.OpDivide, ParentID: root.ID, AuthorID: DemoAuthorID})
	}
}
