// Package signature verifica a autenticidade dos webhooks recebidos dos provedores PIX.
//
// A assinatura é um HMAC-SHA256 do corpo bruto da requisição, com o secret do
// provedor, em hexadecimal e opcionalmente prefixada por "sha256=".
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Header é o header HTTP que carrega a assinatura
const Header = "X-Webhook-Signature"

const prefix = "sha256="

// MinLength é o tamanho mínimo da assinatura sem prefixo (SHA-256 em hex)
const MinLength = sha256.Size * 2

var (
	ErrMissing  = errors.New("missing signature")
	ErrTooShort = errors.New("signature too short")
	ErrEncoding = errors.New("signature is not hex")
	ErrMismatch = errors.New("signature mismatch")
	ErrNoSecret = errors.New("provider has no secret")
)

// Sign calcula a assinatura de um payload no formato aceito por Verify
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify confere a assinatura do payload em tempo constante
// Não tem efeitos colaterais; retorna nil quando a assinatura é válida
func Verify(payload []byte, sig, secret string) error {
	if secret == "" {
		return ErrNoSecret
	}
	sig = strings.TrimSpace(sig)
	if sig == "" {
		return ErrMissing
	}
	sig = strings.TrimPrefix(sig, prefix)
	if len(sig) < MinLength {
		return ErrTooShort
	}

	got, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return ErrEncoding
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), got) {
		return ErrMismatch
	}
	return nil
}
