// Package solana provides a Solana JSON-RPC client for account reads.
package solana

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/fd1az/spread-monitor/internal/apperror"
)

// PublicKeySize is the length of an ed25519 public key.
const PublicKeySize = 32

// PublicKey is a Solana account address.
type PublicKey [PublicKeySize]byte

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	b, err := base58.Decode(s)
	if err != nil {
		return pk, apperror.New(apperror.CodeInvalidPublicKey, apperror.WithCause(err), apperror.WithContext(s))
	}
	if len(b) != PublicKeySize {
		return pk, apperror.New(apperror.CodeInvalidPublicKey,
			apperror.WithContext(fmt.Sprintf("%s: %d bytes", s, len(b))))
	}
	copy(pk[:], b)
	return pk, nil
}

// MustPublicKey is ParsePublicKey for compile-time constants.
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies a 32 byte slice into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, apperror.New(apperror.CodeInvalidPublicKey,
			apperror.WithContext(fmt.Sprintf("%d bytes", len(b))))
	}
	copy(pk[:], b)
	return pk, nil
}

// String returns the base58 encoding.
func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

// IsZero reports whether p is the all-zero key.
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}

// MarshalJSON encodes the key as a base58 string.
func (p PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Account is the decoded state of an on-chain account.
type Account struct {
	Owner      PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool
}

type rpcAccount struct {
	Data       []string `json:"data"` // [payload, encoding]
	Executable bool     `json:"executable"`
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
}

func (a *rpcAccount) decode() (*Account, error) {
	if len(a.Data) != 2 || a.Data[1] != "base64" {
		return nil, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithContext("account data is not base64 encoded"))
	}
	data, err := base64.StdEncoding.DecodeString(a.Data[0])
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidFormat, apperror.WithCause(err))
	}
	owner, err := ParsePublicKey(a.Owner)
	if err != nil {
		return nil, err
	}
	return &Account{
		Owner:      owner,
		Lamports:   a.Lamports,
		Data:       data,
		Executable: a.Executable,
	}, nil
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type getAccountInfoResult struct {
	Context rpcContext  `json:"context"`
	Value   *rpcAccount `json:"value"`
}

type getMultipleAccountsResult struct {
	Context rpcContext    `json:"context"`
	Value   []*rpcAccount `json:"value"`
}
