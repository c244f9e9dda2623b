// Package envelope implements the hierarchical key model: an item's content
// key is wrapped under one or more wrapping keys, so access grants and
// revocations change only the per-key wrapping entries and never force the
// item content to be re-encrypted.
package envelope

import (
	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/data"
	"github.com/passman-project/passman/internal/suite"
)

// ItemKeys is the envelope metadata for one encrypted item: the content
// cipher, the ordered list of wrapping-key references, and the IV (plus auth
// tag for AEAD modes) of the content ciphertext itself.
type ItemKeys struct {
	BaseCipher  suite.SymmetricAlgorithm `json:"base_cipher"`
	KeyRefs     []uuid.UUID              `json:"key_refs"`
	ItemIV      data.Bytes               `json:"item_iv"`
	ItemAuthTag data.Bytes               `json:"item_auth_tag,omitempty"`
}

// ItemKeyInfo is one wrapping entry: the item content key encrypted under
// the referenced wrapping key.
type ItemKeyInfo struct {
	SecuredItemKey data.Bytes `json:"secured_item_key"`
	ItemKeyIV      data.Bytes `json:"item_key_iv"`
	ItemAuthTag    data.Bytes `json:"item_auth_tag,omitempty"`
}

// CandidateKey is a wrapping key available to the caller during unwrap.
type CandidateKey struct {
	ID  uuid.UUID
	Key []byte
}

// ErrNoUsableKey reports that no candidate key unwrapped the item key. It is
// deliberately ambiguous between "no key available" and "wrong key" so a
// caller cannot use it as an oracle.
var ErrNoUsableKey = common.ErrNotFound.WithMessage("no usable wrapping key")

// checkTagShape enforces the structural rule: an auth tag is present iff the
// algorithm is an AEAD mode. A mismatch is a validation error, never a
// silent default.
func checkTagShape(c suite.SymmetricCipher, tag []byte) error {
	if c.Authenticated() && tag == nil {
		return common.ErrValidation.WithMessage("cipher %q requires an auth tag", c.Algorithm())
	}
	if !c.Authenticated() && tag != nil {
		return common.ErrValidation.WithMessage("cipher %q does not produce an auth tag", c.Algorithm())
	}
	return nil
}

// Validate checks the structural integrity of keys and its wrapping entries:
// the cipher must be available, auth tags must match its AEAD-ness, and every
// key ref must have a wrapping entry.
func Validate(reg *suite.Registry, keys ItemKeys, infos map[uuid.UUID]ItemKeyInfo) error {
	c, err := reg.Symmetric(keys.BaseCipher)
	if err != nil {
		return err
	}
	if err := checkTagShape(c, keys.ItemAuthTag); err != nil {
		return err
	}
	for _, ref := range keys.KeyRefs {
		info, ok := infos[ref]
		if !ok {
			return common.ErrValidation.WithMessage("key ref %s has no wrapping entry", ref)
		}
		if err := checkTagShape(c, info.ItemAuthTag); err != nil {
			return err
		}
	}
	return nil
}

// WrapItemKey encrypts contentKey under wrappingKey with alg, generating a
// fresh IV and, for AEAD modes, capturing the auth tag.
func WrapItemKey(reg *suite.Registry, contentKey, wrappingKey []byte, alg suite.SymmetricAlgorithm) (ItemKeyInfo, error) {
	c, err := reg.Symmetric(alg)
	if err != nil {
		return ItemKeyInfo{}, err
	}
	ciphertext, iv, tag, err := c.Seal(wrappingKey, contentKey)
	if err != nil {
		return ItemKeyInfo{}, err
	}
	return ItemKeyInfo{SecuredItemKey: ciphertext, ItemKeyIV: iv, ItemAuthTag: tag}, nil
}

// UnwrapItemKey walks keys.KeyRefs in order and attempts to unwrap the
// content key with each candidate that matches a ref. The first success wins.
// For AEAD modes the tag is verified before any plaintext is trusted. If no
// candidate succeeds the result is ErrNoUsableKey.
func UnwrapItemKey(reg *suite.Registry, keys ItemKeys, infos map[uuid.UUID]ItemKeyInfo, candidates []CandidateKey) ([]byte, error) {
	c, err := reg.Symmetric(keys.BaseCipher)
	if err != nil {
		return nil, err
	}
	for _, ref := range keys.KeyRefs {
		info, ok := infos[ref]
		if !ok {
			continue
		}
		if err := checkTagShape(c, info.ItemAuthTag); err != nil {
			return nil, err
		}
		for _, candidate := range candidates {
			if candidate.ID != ref {
				continue
			}
			contentKey, err := c.Open(candidate.Key, info.SecuredItemKey, info.ItemKeyIV, info.ItemAuthTag)
			if err == nil {
				return contentKey, nil
			}
		}
	}
	return nil, ErrNoUsableKey
}

// AddKeyRef returns a copy of keys with ref appended, leaving the content
// IV/tag untouched. Adding an existing ref is a no-op.
func AddKeyRef(keys ItemKeys, ref uuid.UUID) ItemKeys {
	for _, existing := range keys.KeyRefs {
		if existing == ref {
			return keys
		}
	}
	out := keys
	out.KeyRefs = make([]uuid.UUID, 0, len(keys.KeyRefs)+1)
	out.KeyRefs = append(out.KeyRefs, keys.KeyRefs...)
	out.KeyRefs = append(out.KeyRefs, ref)
	return out
}

// RemoveKeyRef returns a copy of keys without ref, leaving the content
// IV/tag untouched.
func RemoveKeyRef(keys ItemKeys, ref uuid.UUID) ItemKeys {
	out := keys
	out.KeyRefs = make([]uuid.UUID, 0, len(keys.KeyRefs))
	for _, existing := range keys.KeyRefs {
		if existing != ref {
			out.KeyRefs = append(out.KeyRefs, existing)
		}
	}
	return out
}
