package models

import (
	"bytes"
	"encoding/base64"
	"image/png"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPIssuer is the issuer name shown next to the account in
// authenticator apps.
const TOTPIssuer = "Expense Diary"

// qrSize is the QR PNG edge in pixels; large enough to scan from the
// enrollment page without zooming.
const qrSize = 200

// NewTOTPKey provisions a fresh TOTP secret for the given account.
// Nothing is persisted here; the secret only sticks once the user has
// proven they enrolled it.
func NewTOTPKey(username string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      TOTPIssuer,
		AccountName: username,
	})
}

// TOTPKeyDataURI renders the key as a PNG QR code wrapped in a data URI,
// ready to use as an <img> source.
func TOTPKeyDataURI(key *otp.Key) (string, error) {
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// VerifyTOTPCode reports whether code is currently valid for secret.
func VerifyTOTPCode(secret, code string) bool {
	return totp.Validate(code, secret)
}
