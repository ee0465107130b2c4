package auth

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
)

// DissolveStepUp gates the one-time disclosure of a 64-hex dissolve
// authorization key behind a TOTP challenge, mirroring the teacher's use
// of a TOTP step-up before a sensitive one-time secret reveal.
type DissolveStepUp struct {
	issuer string
}

func NewDissolveStepUp(issuer string) *DissolveStepUp {
	return &DissolveStepUp{issuer: issuer}
}

// Enroll issues a new TOTP secret for ownerID, to be scanned once by the
// owner's authenticator app. The secret itself is what the caller must
// persist (hashed at rest is out of scope here, matching the storage
// adapter's existing `dissolve_auth_key_hash` pattern of storing a
// derived value, not the raw secret, at the asset-repository layer).
func (d *DissolveStepUp) Enroll(ownerID uuid.UUID) (secret, otpauthURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      d.issuer,
		AccountName: ownerID.String(),
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp secret: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// Verify reports whether code is a valid current TOTP code for secret,
// required immediately before AuthorizeDissolve mints the one-time
// dissolve key.
func (d *DissolveStepUp) Verify(secret, code string) bool {
	return totp.Validate(code, secret)
}
