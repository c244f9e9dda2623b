// Package blob stores encrypted item content. The server treats blobs as
// opaque ciphertext; keys into the store come from item metadata rows.
package blob

import "context"

type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
