package server

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blackgold9/canvas-integration/pkg/log"
)

// tokenPayload is what gets sealed so more credential fields can be added
// without changing the stored format.
type tokenPayload struct {
	Token string `json:"token"`
}

func (s *Server) gcm(ctx context.Context) (cipher.AEAD, error) {
	if s.encryptionKey == "" {
		log.Ctx(ctx).ErrorContext(ctx, "no encryption key configured")
		return nil, errors.New("no encryption key configured")
	}

	key := []byte(s.encryptionKey)
	if len(key) != 32 {
		log.Ctx(ctx).ErrorContext(ctx, "invalid encryption key length (must be 32 bytes)", slog.Int("length", len(key)))
		return nil, errors.New("invalid encryption key length (must be 32 bytes)")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to create cipher", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to create gcm", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return gcm, nil
}

func (s *Server) decryptToken(ctx context.Context, encrypted []byte) (string, error) {
	if len(encrypted) == 0 {
		return "", errors.New("no encrypted token")
	}

	gcm, err := s.gcm(ctx)
	if err != nil {
		return "", err
	}

	if len(encrypted) < gcm.NonceSize() {
		log.Ctx(ctx).ErrorContext(ctx, "malformed encrypted token", slog.Int("length", len(encrypted)))
		return "", errors.New("malformed encrypted token")
	}

	nonce, ciphertext := encrypted[:gcm.NonceSize()], encrypted[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decrypt token", slog.Any("error", err))
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}

	var p tokenPayload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to unmarshal token", slog.Any("error", err))
		return "", fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return p.Token, nil
}

func (s *Server) encryptToken(ctx context.Context, token string) ([]byte, error) {
	gcm, err := s.gcm(ctx)
	if err != nil {
		return nil, err
	}

	jsonBytes, err := json.Marshal(tokenPayload{Token: token})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to generate nonce", slog.Any("error", err))
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, jsonBytes, nil), nil
}
