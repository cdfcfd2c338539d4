// Package schema holds the entity metadata that is synchronized to the
// database: entities, their registry and the dependency order between them.
//
// Entities are declared with field builders and registered once, usually at
// program start:
//
//	reg := schema.NewRegistry()
//	err := reg.Register(
//		schema.NewEntity("User", "users",
//			field.ID("id"),
//			field.String("username").Size(50).Unique(),
//		),
//		schema.NewEntity("Post", "",
//			field.ID("id"),
//			field.String("title"),
//			field.Ref("author", "User").JoinColumn("author_id"),
//		),
//	)
//
// Registration validates every entity and returns a *MetadataError for
// incomplete declarations, such as a reference without a join column or an
// entity without exactly one identity field.
//
// Order sorts entities so that referenced tables are created first.
package schema
