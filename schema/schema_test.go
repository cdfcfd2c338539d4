package schema_test

import (
	"errors"
	"testing"

	"github.com/syssam/schemasync/schema"
	"github.com/syssam/schemasync/schema/field"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func user() *schema.Entity {
	return schema.NewEntity("User", "users",
		field.ID("id"),
		field.String("username").Size(50).Unique(),
		field.Int("age").Optional(),
		field.Refs("posts", "Post").MappedBy("author"),
		field.CreatedAt(),
	)
}

func post() *schema.Entity {
	return schema.NewEntity("Post", "posts",
		field.ID("id"),
		field.String("title"),
		field.Ref("author", "User").JoinColumn("author_id"),
		field.ManyToManyRef("tags", "Tag"),
	)
}

func tag() *schema.Entity {
	return schema.NewEntity("Tag", "tags",
		field.ID("id"),
		field.String("name").Unique(),
		field.ManyToManyRef("posts", "Post"),
	)
}

// TestRegister tests entity registration.
func TestRegister(t *testing.T) {
	t.Run("registration_order", func(t *testing.T) {
		reg := schema.NewRegistry()
		require.NoError(t, reg.Register(post(), user()))
		names := []string{}
		for _, e := range reg.Entities() {
			names = append(names, e.Name)
		}
		assert.Equal(t, []string{"Post", "User"}, names)
		assert.Equal(t, 2, reg.Len())
	})

	t.Run("default_table", func(t *testing.T) {
		reg := schema.NewRegistry()
		require.NoError(t, reg.Register(schema.NewEntity("BlogPost", "", field.ID("id"))))
		e, ok := reg.Entity("BlogPost")
		require.True(t, ok)
		assert.Equal(t, "blog_posts", e.Table)
	})

	t.Run("copies_descriptors", func(t *testing.T) {
		reg := schema.NewRegistry()
		e := user()
		require.NoError(t, reg.Register(e))
		e.Fields[1].(*field.Column).Size = 10
		got, _ := reg.Entity("User")
		assert.EqualValues(t, 50, got.Fields[1].(*field.Column).Size)
	})

	t.Run("all_or_nothing", func(t *testing.T) {
		reg := schema.NewRegistry()
		bad := schema.NewEntity("Bad", "bad", field.String("name"))
		err := reg.Register(user(), bad)
		require.Error(t, err)
		assert.True(t, schema.IsMetadataError(err))
		assert.Zero(t, reg.Len())
	})

	t.Run("duplicate_entity", func(t *testing.T) {
		reg := schema.NewRegistry()
		require.NoError(t, reg.Register(user()))
		err := reg.Register(user())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registered twice")
	})

	t.Run("duplicate_table", func(t *testing.T) {
		reg := schema.NewRegistry()
		err := reg.Register(user(), schema.NewEntity("Account", "users", field.ID("id")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `table "users" is already mapped`)
	})
}

// TestRegisterValidation tests the declaration checks run at registration.
func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		entity *schema.Entity
		field  string
		reason string
	}{
		{
			name:   "missing_join_column",
			entity: schema.NewEntity("Post", "posts", field.ID("id"), field.Ref("author", "User")),
			field:  "author",
			reason: "missing join column",
		},
		{
			name:   "missing_target",
			entity: schema.NewEntity("Post", "posts", field.ID("id"), field.ManyToManyRef("tags", "")),
			field:  "tags",
			reason: "missing target entity",
		},
		{
			name:   "no_identity",
			entity: schema.NewEntity("Post", "posts", field.String("title")),
			reason: "expected exactly one identity field, got 0",
		},
		{
			name:   "two_identities",
			entity: schema.NewEntity("Post", "posts", field.ID("id"), field.ID("key")),
			reason: "expected exactly one identity field, got 2",
		},
		{
			name:   "duplicate_column",
			entity: schema.NewEntity("Post", "posts", field.ID("id"), field.String("title"), field.Text("title")),
			field:  "title",
			reason: `column "title" already declared by field "title"`,
		},
		{
			name:   "invalid_column_name",
			entity: schema.NewEntity("Post", "posts", field.ID("id"), field.String("title; DROP")),
			field:  "title; DROP",
			reason: `invalid column name "title; DROP"`,
		},
		{
			name:   "missing_type",
			entity: schema.NewEntity("Post", "posts", field.ID("id"), &field.Column{Name: "x"}),
			field:  "x",
			reason: "missing column type",
		},
		{
			name:   "auto_increment_string",
			entity: schema.NewEntity("Post", "posts", field.ID("id").OfType(field.TypeString)),
			field:  "id",
			reason: "auto-increment identity must be an integer, got string",
		},
		{
			name:   "invalid_table",
			entity: schema.NewEntity("Post", "po sts", field.ID("id")),
			reason: `invalid table name "po sts"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.NewRegistry().Register(tt.entity)
			require.Error(t, err)
			var merr *schema.MetadataError
			require.True(t, errors.As(err, &merr))
			assert.Equal(t, "Post", merr.Entity)
			assert.Equal(t, tt.field, merr.Field)
			assert.Equal(t, tt.reason, merr.Reason)
		})
	}
}

// TestTargets tests resolution of reference targets.
func TestTargets(t *testing.T) {
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(user(), post(),
		schema.NewEntity("Country", "countries", field.ID("code").OfType(field.TypeString).Manual()),
	))
	assert.Equal(t, "users", reg.TargetTable("User"))
	assert.Equal(t, "audit_logs", reg.TargetTable("AuditLog"))
	assert.Equal(t, field.TypeInt64, reg.ReferenceType("User"))
	assert.Equal(t, field.TypeString, reg.ReferenceType("Country"))
	assert.Equal(t, field.TypeInt64, reg.ReferenceType("Unknown"))

	ref := &field.ManyToOne{Name: "country", Target: "Country", JoinColumn: "country_code"}
	assert.Equal(t, "code", reg.ReferencedColumn(ref))
	ref.ReferencedColumn = "iso"
	assert.Equal(t, "iso", reg.ReferencedColumn(ref))
}

// TestJoinTables tests join table resolution of many-to-many relations.
func TestJoinTables(t *testing.T) {
	t.Run("defaults_and_dedup", func(t *testing.T) {
		reg := schema.NewRegistry()
		require.NoError(t, reg.Register(user(), post(), tag()))
		jts := reg.JoinTables()
		require.Len(t, jts, 1)
		assert.Equal(t, "posts_tags", jts[0].Name)
		assert.Equal(t, "Post", jts[0].Owner.Name)
		assert.Equal(t, "Tag", jts[0].Target.Name)
		assert.Equal(t, "post_id", jts[0].Column)
		assert.Equal(t, "tag_id", jts[0].InverseColumn)
	})

	t.Run("explicit", func(t *testing.T) {
		reg := schema.NewRegistry()
		require.NoError(t, reg.Register(user(), schema.NewEntity("Group", "groups",
			field.ID("id"),
			field.ManyToManyRef("members", "User").JoinTable("memberships").JoinColumn("gid").InverseJoinColumn("uid"),
		)))
		jts := reg.JoinTables()
		require.Len(t, jts, 1)
		assert.Equal(t, "memberships", jts[0].Name)
		assert.Equal(t, "gid", jts[0].Column)
		assert.Equal(t, "uid", jts[0].InverseColumn)
	})

	t.Run("named_on_one_side", func(t *testing.T) {
		reg := schema.NewRegistry()
		require.NoError(t, reg.Register(
			schema.NewEntity("Post", "posts", field.ID("id"), field.ManyToManyRef("tags", "Tag")),
			schema.NewEntity("Tag", "tags", field.ID("id"), field.ManyToManyRef("posts", "Post").JoinTable("post_tags").JoinColumn("tid")),
		))
		jts := reg.JoinTables()
		require.Len(t, jts, 1)
		assert.Equal(t, "post_tags", jts[0].Name)
		assert.Equal(t, "Post", jts[0].Owner.Name)
		assert.Equal(t, "post_id", jts[0].Column)
		assert.Equal(t, "tid", jts[0].InverseColumn)
	})

	t.Run("distinct_relations", func(t *testing.T) {
		reg := schema.NewRegistry()
		require.NoError(t, reg.Register(
			schema.NewEntity("Post", "posts", field.ID("id"),
				field.ManyToManyRef("tags", "Tag"),
				field.ManyToManyRef("featured", "Tag").JoinTable("featured_tags"),
			),
			schema.NewEntity("Tag", "tags", field.ID("id"),
				field.ManyToManyRef("posts", "Post"),
				field.ManyToManyRef("featured_in", "Post").JoinTable("featured_tags"),
			),
		))
		jts := reg.JoinTables()
		require.Len(t, jts, 2)
		assert.Equal(t, "posts_tags", jts[0].Name)
		assert.Equal(t, "featured_tags", jts[1].Name)
	})

	t.Run("unregistered_target", func(t *testing.T) {
		reg := schema.NewRegistry()
		require.NoError(t, reg.Register(post()))
		assert.Empty(t, reg.JoinTables())
	})
}

// TestOrder tests dependency ordering of entities.
func TestOrder(t *testing.T) {
	t.Run("referenced_first", func(t *testing.T) {
		a := schema.NewEntity("A", "a", field.ID("id"))
		b := schema.NewEntity("B", "b", field.ID("id"), field.Ref("a", "A").JoinColumn("a_id"))
		ordered, cycles := schema.Order([]*schema.Entity{b, a})
		assert.Empty(t, cycles)
		assert.Equal(t, []*schema.Entity{a, b}, ordered)
	})

	t.Run("stable_for_independent", func(t *testing.T) {
		x := schema.NewEntity("X", "x", field.ID("id"))
		y := schema.NewEntity("Y", "y", field.ID("id"))
		z := schema.NewEntity("Z", "z", field.ID("id"))
		ordered, _ := schema.Order([]*schema.Entity{z, x, y})
		assert.Equal(t, []*schema.Entity{z, x, y}, ordered)
	})

	t.Run("chain", func(t *testing.T) {
		c := schema.NewEntity("C", "c", field.ID("id"), field.Ref("b", "B").JoinColumn("b_id"))
		b := schema.NewEntity("B", "b", field.ID("id"), field.Ref("a", "A").JoinColumn("a_id"))
		a := schema.NewEntity("A", "a", field.ID("id"))
		ordered, _ := schema.Order([]*schema.Entity{c, b, a})
		assert.Equal(t, []*schema.Entity{a, b, c}, ordered)
	})

	t.Run("self_reference", func(t *testing.T) {
		n := schema.NewEntity("Node", "nodes", field.ID("id"), field.Ref("parent", "Node").JoinColumn("parent_id").Optional())
		ordered, cycles := schema.Order([]*schema.Entity{n})
		assert.Empty(t, cycles)
		assert.Len(t, ordered, 1)
	})

	t.Run("unknown_target", func(t *testing.T) {
		p := post()
		ordered, cycles := schema.Order([]*schema.Entity{p})
		assert.Empty(t, cycles)
		assert.Equal(t, []*schema.Entity{p}, ordered)
	})

	t.Run("cycle", func(t *testing.T) {
		a := schema.NewEntity("A", "a", field.ID("id"), field.Ref("b", "B").JoinColumn("b_id"))
		b := schema.NewEntity("B", "b", field.ID("id"), field.Ref("a", "A").JoinColumn("a_id"))
		ordered, cycles := schema.Order([]*schema.Entity{a, b})
		assert.Len(t, ordered, 2)
		require.Len(t, cycles, 1)
		assert.Equal(t, schema.Cycle{"A", "B"}, cycles[0])
		assert.Equal(t, "A -> B -> A", cycles[0].String())

		err := &schema.CycleError{Cycles: cycles}
		assert.True(t, errors.Is(err, schema.ErrCycle))
		assert.Equal(t, "schema: circular dependency: A -> B -> A", err.Error())
	})
}
