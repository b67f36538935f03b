package service

// SecretHasher hashes and compares credential secrets.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Compare(secret, encoded string) (bool, error)
	DummyHash() (string, error)
}
