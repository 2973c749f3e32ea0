package repositories

import "errors"

var (
	// ErrPostNotFound indicates the requested blog post does not exist.
	ErrPostNotFound = errors.New("post repository: post not found")
	// ErrProductNotFound indicates the requested product does not exist.
	ErrProductNotFound = errors.New("product repository: product not found")
	// ErrEmptyUpdate indicates a product edit carried no fields to change.
	ErrEmptyUpdate = errors.New("product repository: update has no fields")
)

// IsNotFound reports whether the error represents a missing document, either
// as one of the sentinel errors above or as a categorised RepositoryError.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrPostNotFound) || errors.Is(err, ErrProductNotFound) {
		return true
	}
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}
