// Repositories - convenience wrapper for all database repositories.
// Provides a single point of access to all repository types.

package database

// Repositories holds all repository instances.
type Repositories struct {
	Nonces   *NonceRepository
	Compacts *CompactRepository
}

// NewRepositories creates all repositories with the given client.
func NewRepositories(client *Client) *Repositories {
	return &Repositories{
		Nonces:   NewNonceRepository(client),
		Compacts: NewCompactRepository(client),
	}
}
