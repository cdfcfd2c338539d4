// Package field provides the dialect-neutral field descriptors of an entity
// and fluent builders for them.
//
// Field names are column names and follow database conventions (snake_case):
//
//	field.ID("id")                                  // BIGINT auto-increment primary key
//	field.String("email").Size(120).Unique()        // VARCHAR(120) NOT NULL UNIQUE
//	field.Text("bio").Optional()                    // TEXT
//	field.Decimal("price").Precision(12, 4)         // DECIMAL(12,4) NOT NULL
//	field.Enum("status", "active", "banned")
//	field.Ref("author", "User").JoinColumn("author_id")
//	field.Refs("posts", "Post").MappedBy("author")  // informational only
//	field.ManyToManyRef("tags", "Tag")              // join table posts_tags
//	field.CreatedAt()
//	field.UpdatedAt()
//
// Columns are NOT NULL unless marked Optional. Descriptors can also be
// written as literals, e.g. &field.Column{Name: "age", Type: field.TypeInt32}.
//
// # Types
//
// Width tiers of text and binary columns are expressed through Size:
//
//	field.TinyText("note")     // Size 255
//	field.MediumText("body")   // Size 16MB
//	field.LongBlob("payload")  // Size 4GB
//
// ColumnType bypasses type mapping entirely and is written verbatim.
package field
