// Package metadata provides typed point metadata and filtering.
//
// An Index keeps a Roaring Bitmap inverted index per field and value, so
// equality and set-membership filters resolve to posting lists without
// touching the documents. Range and substring operators fall back to
// scanning the surviving candidates.
//
// Example:
//
//	fs := metadata.NewFilterSet(
//	    metadata.Eq("lang", metadata.String("en")),
//	    metadata.In("year", metadata.Int(2023), metadata.Int(2024)),
//	)
//	allowed := idx.Compile(fs)
package metadata
