// Package api defines the wire shapes of the HTTP protocol, shared by the
// server handlers and the client.
package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/data"
	"github.com/passman-project/passman/internal/envelope"
	"github.com/passman-project/passman/internal/server/models"
	"github.com/passman-project/passman/internal/suite"
)

// Hello is the unauthenticated server identity answer at GET /hello.
type Hello struct {
	ServerID        uuid.UUID    `json:"server_id"`
	ProtocolID      uuid.UUID    `json:"protocol_id"`
	ProtocolVersion data.Version `json:"protocol_version"`
	HelloTime       time.Time    `json:"hello_time"`
}

// UserAuth is the client-managed authentication bundle exchanged at
// GET/PUT /users/{id}/auth and inside registration.
type UserAuth struct {
	KDFBaseDigestAlg  suite.DigestAlgorithm     `json:"kdf_base_digest_alg"`
	AuthKeyAlg        suite.AsymmetricAlgorithm `json:"auth_key_alg"`
	PubKey            data.Bytes                `json:"pub_key"`
	PrivKeyIV         data.Bytes                `json:"priv_key_iv"`
	SecuredPrivateKey data.Bytes                `json:"secured_private_key"`
}

// NewUserRequest is the POST /users/new payload.
type NewUserRequest struct {
	UserAddress string   `json:"user_address"`
	InitialAuth UserAuth `json:"initial_auth"`
}

type NewUserResponse struct {
	UserID uuid.UUID `json:"user_id"`
}

// UserRootInfo points at the user's root object and root wrapping key.
type UserRootInfo struct {
	RootObject uuid.UUID `json:"root_object"`
	RootKey    uuid.UUID `json:"root_key"`
}

type UserPublicKey struct {
	PubKey    data.Bytes                `json:"pub_key"`
	PubKeyAlg suite.AsymmetricAlgorithm `json:"pub_key_alg"`
}

// AuthChallengeRequest starts authentication at POST /auth/challenge. The
// challenge session id is chosen by the client and presented back as the
// bearer credential on POST /auth/response.
type AuthChallengeRequest struct {
	UserID             uuid.UUID `json:"user_id"`
	ChallengeSessionID uuid.UUID `json:"challenge_session_id"`
}

type AuthChallengeResponse struct {
	ChallengeDigest suite.DigestAlgorithm `json:"challenge_digest"`
	ChallengeBytes  data.Bytes            `json:"challenge_bytes"`
}

// AuthResponse carries the signature over the challenge bytes.
type AuthResponse struct {
	ChallengeSignature data.Bytes `json:"challenge_signature"`
}

// AuthSession is the successful authentication answer.
type AuthSession struct {
	SessionToken string    `json:"session_token"`
	UserID       uuid.UUID `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AclRow is one authorization fact on the wire. The object is implied by the
// request path.
type AclRow struct {
	Subject uuid.UUID      `json:"subject"`
	Action  models.Action  `json:"action"`
	Mode    models.AclMode `json:"mode"`
}

// ItemKeySet is an item's envelope record. The key list and its wrapping
// entries travel together so a write replaces them as one unit; version
// drives optimistic concurrency (0 creates, otherwise it must match the
// stored version).
type ItemKeySet struct {
	BaseCipher  suite.SymmetricAlgorithm           `json:"base_cipher"`
	KeyRefs     []uuid.UUID                        `json:"key_refs"`
	ItemIV      data.Bytes                         `json:"item_iv"`
	ItemAuthTag data.Bytes                         `json:"item_auth_tag,omitempty"`
	KeyInfos    map[uuid.UUID]envelope.ItemKeyInfo `json:"key_infos"`
	Version     int64                              `json:"version"`
}

type PutKeysResponse struct {
	Version int64 `json:"version"`
}

type ItemMetadata struct {
	ContentType string    `json:"content_type"`
	MTime       time.Time `json:"mtime"`
	ATime       time.Time `json:"atime"`
	CTime       time.Time `json:"ctime"`
}

// ErrorBody is the JSON shape of every error answer. Code is the contract
// surface; Message is diagnostic only.
type ErrorBody struct {
	Code    common.Code `json:"code"`
	Message string      `json:"message"`
}
