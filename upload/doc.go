// Package upload validates a batch of uploaded files against count and size
// limits before any of them is stored.
//
// Files are classified by declared MIME prefix ("image/" or "video/"). Every
// violated limit is reported, not just the first, so a client can fix the
// whole batch in one round trip.
package upload
