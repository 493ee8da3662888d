// Package qrcode renders QR code PNG images, used to present MFA enrollment
// otpauth URIs to authenticator apps.
package qrcode
