// Package posts provides the persistence layer for moments.
//
// # Data Model
//
// Each row carries a store-assigned id (AUTOINCREMENT, so ids are never
// reused), a caller-supplied creation time used as the only ordering key,
// and a soft-delete flag. Rows are never physically removed: deleting a post
// flips the flag and every read path filters on deleted=0.
//
// # Ordering
//
// Listings are ordered by time descending, then id descending so that posts
// sharing a timestamp come out in a stable order.
//
// Typical Usage
//
//	repo := posts.NewSQLiteRepository(db)
//	id, _ := repo.Insert(ctx, models.NewPost{Kind: 1, Content: "hi", CreatedAt: 1000})
//	list, _ := repo.ListSince(ctx, 0, 50)
//	deleted, _ := repo.SoftDelete(ctx, id)
package posts
