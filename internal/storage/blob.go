package storage

import "io"

// BlobStore is the opaque attachment store. Question image uploads live
// here; the core only ever handles keys.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
	SignedURL(key string) (string, error) // fs returns "file://..." for dev
}
