package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword は空のパスワードをハッシュしようとした場合に返される。
var ErrEmptyPassword = errors.New("password must not be empty")

// ErrPasswordTooLong はbcryptが扱える長さ（72バイト）を超えた場合に返される。
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// MaxPasswordBytes はbcryptが入力として扱う最大バイト数。これを超える部分は比較に使われない。
const MaxPasswordBytes = 72

// Hasher はパスワードの一方向ハッシュと検証を行う。
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// BcryptHasher はbcryptによるHasher実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
// costがbcryptの許容範囲外の場合はbcrypt.DefaultCostを使う。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash はソルト付きのハッシュを生成する。
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify はパスワードがハッシュと一致するかを返す。
// 不一致や不正なハッシュ形式の場合もfalseを返し、エラーにはしない。
// 72バイトを超える入力は先頭が一致していてもfalseとする。
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	if len(plaintext) > MaxPasswordBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// compile-time interface check
var _ Hasher = (*BcryptHasher)(nil)
