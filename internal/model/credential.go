package model

type Credential struct {
	ID          string    `db:"id" json:"id"`
	SecretHash  string    `db:"secret_hash" json:"-"`
	DisplayHint string    `db:"display_hint" json:"-"`
	CreatedAt   Timestamp `db:"created_at" json:"createdAt"`
	UpdatedAt   Timestamp `db:"updated_at" json:"updatedAt"`
}

// Masked returns the display form of the credential. It never contains more
// than the stored hint.
func (c *Credential) Masked() string {
	if c.DisplayHint == "" {
		return "xxxx...****"
	}
	return "xxxx..." + c.DisplayHint
}

type CreateCredentialParams struct {
	SecretHash  string
	DisplayHint string
}
