package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base32"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// RFC 6238 defaults used throughout: 6-digit codes over 30-second steps
// signed with HMAC-SHA1.
const (
	DefaultDigits    = 6
	DefaultPeriod    = 30
	DefaultAlgorithm = "SHA1"
)

var (
	// ValidateSecretKeyRegex matches unpadded-or-padded Base32 secrets.
	ValidateSecretKeyRegex = regexp.MustCompile("^[A-Z2-7]+=*$")

	otpCodeRegex = regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, DefaultDigits))
)

// Params describes an otpauth URI.
type Params struct {
	Secret      string // Base32 secret, required
	AccountName string // usually the user's email, required
	Issuer      string // shown in authenticator apps, required
	Algorithm   string // defaults to SHA1
	Digits      int    // defaults to 6
	Period      int    // seconds, defaults to 30
}

// Validate checks the required fields.
func (p Params) Validate() error {
	if p.Secret == "" {
		return ErrMissingSecret
	}
	if !ValidateSecretKeyRegex.MatchString(p.Secret) {
		return ErrInvalidSecret
	}
	if p.AccountName == "" {
		return ErrMissingAccountName
	}
	if p.Issuer == "" {
		return ErrMissingIssuer
	}
	return nil
}

// GetDefaults fills zero-valued fields with the RFC 6238 defaults.
func (p Params) GetDefaults() Params {
	if p.Algorithm == "" {
		p.Algorithm = DefaultAlgorithm
	}
	if p.Digits == 0 {
		p.Digits = DefaultDigits
	}
	if p.Period == 0 {
		p.Period = DefaultPeriod
	}
	return p
}

// GenerateSecretKey returns a fresh 160-bit Base32 secret.
func GenerateSecretKey() (string, error) {
	secret := make([]byte, 20) // RFC 4226 recommends 160 bits
	if _, err := rand.Read(secret); err != nil {
		return "", errors.Join(ErrFailedToGenerateSecretKey, err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret), nil
}

// GetTOTPURI renders the otpauth:// URI authenticator apps import, per
// https://github.com/google/google-authenticator/wiki/Key-Uri-Format
func GetTOTPURI(params Params) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	params = params.GetDefaults()

	label := fmt.Sprintf("%s:%s",
		url.PathEscape(params.Issuer),
		url.PathEscape(params.AccountName),
	)

	query := url.Values{}
	query.Set("secret", params.Secret)
	query.Set("issuer", params.Issuer)
	query.Set("algorithm", params.Algorithm)
	query.Set("digits", fmt.Sprintf("%d", params.Digits))
	query.Set("period", fmt.Sprintf("%d", params.Period))

	return fmt.Sprintf("otpauth://totp/%s?%s", label, query.Encode()), nil
}

// ValidateTOTP validates the TOTP code provided by the user against the
// current time.
func ValidateTOTP(secret, otp string) (bool, error) {
	return ValidateTOTPWithTime(secret, otp, time.Now())
}

// ValidateTOTPWithTime validates a TOTP code against the 30-second window
// containing t, plus one window on each side for clock drift.
func ValidateTOTPWithTime(secret, otp string, t time.Time) (bool, error) {
	secret = strings.TrimSpace(strings.ToUpper(secret))
	if !ValidateSecretKeyRegex.MatchString(secret) {
		return false, ErrInvalidSecret
	}

	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		return false, errors.Join(ErrFailedToValidateTOTP, err)
	}

	otp = strings.TrimSpace(otp)
	if !otpCodeRegex.MatchString(otp) {
		return false, ErrInvalidOTP
	}

	counter := t.Unix() / int64(DefaultPeriod)

	// one window of drift tolerated on either side
	for i := -1; i <= 1; i++ {
		code := GenerateHOTP(key, counter+int64(i), DefaultDigits)
		if fmt.Sprintf("%06d", code) == otp {
			return true, nil
		}
	}

	return false, nil
}

// GenerateTOTP generates a time-based one-time password for the current
// 30-second window. The secret must be a valid Base32-encoded string.
func GenerateTOTP(secret string) (string, error) {
	return GenerateTOTPWithTime(secret, time.Now())
}

// GenerateTOTPWithTime generates a TOTP code for the 30-second window
// containing the specified time. Useful for testing.
func GenerateTOTPWithTime(secret string, t time.Time) (string, error) {
	secret = strings.TrimSpace(strings.ToUpper(secret))
	if !ValidateSecretKeyRegex.MatchString(secret) {
		return "", ErrInvalidSecret
	}

	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		return "", errors.Join(ErrFailedToGenerateTOTP, err)
	}

	counter := t.Unix() / int64(DefaultPeriod)

	code := GenerateHOTP(key, counter, DefaultDigits)

	return fmt.Sprintf("%06d", code), nil
}

// GenerateHOTP computes the RFC 4226 HMAC-based one-time password.
func GenerateHOTP(key []byte, counter int64, digits int) int {
	// big-endian 8-byte counter
	counterBytes := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		counterBytes[i] = byte(counter & 0xff)
		counter = counter >> 8
	}

	hmacHash := hmac.New(sha1.New, key)
	hmacHash.Write(counterBytes)
	hash := hmacHash.Sum(nil)

	// dynamic truncation: low nibble picks the offset, MSB cleared to
	// keep the value positive
	offset := hash[len(hash)-1] & 0x0f
	code := (int(hash[offset]&0x7f) << 24) |
		(int(hash[offset+1]&0xff) << 16) |
		(int(hash[offset+2]&0xff) << 8) |
		(int(hash[offset+3] & 0xff))

	return code % int(math.Pow10(digits))
}
