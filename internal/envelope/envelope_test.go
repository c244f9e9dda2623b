package envelope

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/suite"
)

func TestWrapUnwrap_RoundTrip(t *testing.T) {
	reg := suite.NewRegistry()
	contentKey := common.GenerateRandByteArray(32)

	for _, alg := range []suite.SymmetricAlgorithm{suite.Aes128Gcm, suite.Aes256Gcm, suite.Chacha20, suite.Aes128Cbc, suite.Aes256Cbc} {
		t.Run(string(alg), func(t *testing.T) {
			c, err := reg.Symmetric(alg)
			require.NoError(t, err)

			wrappingKey := common.GenerateRandByteArray(c.KeySize())
			info, err := WrapItemKey(reg, contentKey, wrappingKey, alg)
			require.NoError(t, err)

			ref := uuid.New()
			keys := ItemKeys{
				BaseCipher: alg,
				KeyRefs:    []uuid.UUID{ref},
				ItemIV:     common.GenerateRandByteArray(12),
			}
			if c.Authenticated() {
				keys.ItemAuthTag = common.GenerateRandByteArray(16)
			}
			infos := map[uuid.UUID]ItemKeyInfo{ref: info}

			unwrapped, err := UnwrapItemKey(reg, keys, infos, []CandidateKey{{ID: ref, Key: wrappingKey}})
			require.NoError(t, err)
			assert.Equal(t, contentKey, unwrapped)
		})
	}
}

func TestUnwrap_WalksRefsInOrder(t *testing.T) {
	reg := suite.NewRegistry()
	contentKey := common.GenerateRandByteArray(32)

	firstRef, secondRef := uuid.New(), uuid.New()
	firstKey := common.GenerateRandByteArray(32)
	secondKey := common.GenerateRandByteArray(32)

	firstInfo, err := WrapItemKey(reg, contentKey, firstKey, suite.Aes256Gcm)
	require.NoError(t, err)
	secondInfo, err := WrapItemKey(reg, contentKey, secondKey, suite.Aes256Gcm)
	require.NoError(t, err)

	keys := ItemKeys{
		BaseCipher:  suite.Aes256Gcm,
		KeyRefs:     []uuid.UUID{firstRef, secondRef},
		ItemIV:      common.GenerateRandByteArray(12),
		ItemAuthTag: common.GenerateRandByteArray(16),
	}
	infos := map[uuid.UUID]ItemKeyInfo{firstRef: firstInfo, secondRef: secondInfo}

	// Only the second candidate is usable.
	unwrapped, err := UnwrapItemKey(reg, keys, infos, []CandidateKey{{ID: secondRef, Key: secondKey}})
	require.NoError(t, err)
	assert.Equal(t, contentKey, unwrapped)

	// Both candidates usable: the first ref still wins.
	unwrapped, err = UnwrapItemKey(reg, keys, infos, []CandidateKey{
		{ID: secondRef, Key: secondKey},
		{ID: firstRef, Key: firstKey},
	})
	require.NoError(t, err)
	assert.Equal(t, contentKey, unwrapped)
}

func TestUnwrap_NoUsableKey(t *testing.T) {
	reg := suite.NewRegistry()
	contentKey := common.GenerateRandByteArray(32)
	wrappingKey := common.GenerateRandByteArray(32)

	ref := uuid.New()
	info, err := WrapItemKey(reg, contentKey, wrappingKey, suite.Aes256Gcm)
	require.NoError(t, err)

	keys := ItemKeys{
		BaseCipher:  suite.Aes256Gcm,
		KeyRefs:     []uuid.UUID{ref},
		ItemIV:      common.GenerateRandByteArray(12),
		ItemAuthTag: common.GenerateRandByteArray(16),
	}
	infos := map[uuid.UUID]ItemKeyInfo{ref: info}

	// No candidates at all.
	_, err = UnwrapItemKey(reg, keys, infos, nil)
	assert.ErrorIs(t, err, ErrNoUsableKey)

	// A candidate with the wrong key: same error, no oracle.
	wrongKey := common.GenerateRandByteArray(32)
	_, err = UnwrapItemKey(reg, keys, infos, []CandidateKey{{ID: ref, Key: wrongKey}})
	assert.ErrorIs(t, err, ErrNoUsableKey)

	// A candidate for a ref the item does not carry.
	_, err = UnwrapItemKey(reg, keys, infos, []CandidateKey{{ID: uuid.New(), Key: wrappingKey}})
	assert.ErrorIs(t, err, ErrNoUsableKey)
}

func TestUnwrap_TamperedEntryFails(t *testing.T) {
	reg := suite.NewRegistry()
	contentKey := common.GenerateRandByteArray(32)
	wrappingKey := common.GenerateRandByteArray(32)

	ref := uuid.New()
	info, err := WrapItemKey(reg, contentKey, wrappingKey, suite.Aes256Gcm)
	require.NoError(t, err)

	tampered := info
	tampered.SecuredItemKey = append([]byte(nil), info.SecuredItemKey...)
	tampered.SecuredItemKey[0] ^= 0x01

	keys := ItemKeys{
		BaseCipher:  suite.Aes256Gcm,
		KeyRefs:     []uuid.UUID{ref},
		ItemIV:      common.GenerateRandByteArray(12),
		ItemAuthTag: common.GenerateRandByteArray(16),
	}
	_, err = UnwrapItemKey(reg, keys, map[uuid.UUID]ItemKeyInfo{ref: tampered}, []CandidateKey{{ID: ref, Key: wrappingKey}})
	assert.ErrorIs(t, err, ErrNoUsableKey)
}

func TestValidate_TagShape(t *testing.T) {
	reg := suite.NewRegistry()
	ref := uuid.New()

	aeadKeys := ItemKeys{
		BaseCipher:  suite.Aes256Gcm,
		KeyRefs:     []uuid.UUID{ref},
		ItemIV:      common.GenerateRandByteArray(12),
		ItemAuthTag: common.GenerateRandByteArray(16),
	}
	goodInfo := ItemKeyInfo{
		SecuredItemKey: common.GenerateRandByteArray(48),
		ItemKeyIV:      common.GenerateRandByteArray(12),
		ItemAuthTag:    common.GenerateRandByteArray(16),
	}
	require.NoError(t, Validate(reg, aeadKeys, map[uuid.UUID]ItemKeyInfo{ref: goodInfo}))

	// AEAD without a content tag.
	noTag := aeadKeys
	noTag.ItemAuthTag = nil
	assert.ErrorIs(t, Validate(reg, noTag, map[uuid.UUID]ItemKeyInfo{ref: goodInfo}), common.ErrValidation)

	// AEAD entry without a tag.
	badInfo := goodInfo
	badInfo.ItemAuthTag = nil
	assert.ErrorIs(t, Validate(reg, aeadKeys, map[uuid.UUID]ItemKeyInfo{ref: badInfo}), common.ErrValidation)

	// CBC must not carry tags.
	cbcKeys := ItemKeys{
		BaseCipher: suite.Aes256Cbc,
		KeyRefs:    []uuid.UUID{ref},
		ItemIV:     common.GenerateRandByteArray(16),
	}
	cbcInfo := ItemKeyInfo{
		SecuredItemKey: common.GenerateRandByteArray(48),
		ItemKeyIV:      common.GenerateRandByteArray(16),
	}
	require.NoError(t, Validate(reg, cbcKeys, map[uuid.UUID]ItemKeyInfo{ref: cbcInfo}))

	taggedCbc := cbcKeys
	taggedCbc.ItemAuthTag = common.GenerateRandByteArray(16)
	assert.ErrorIs(t, Validate(reg, taggedCbc, map[uuid.UUID]ItemKeyInfo{ref: cbcInfo}), common.ErrValidation)

	// Missing wrapping entry for a ref.
	assert.ErrorIs(t, Validate(reg, aeadKeys, map[uuid.UUID]ItemKeyInfo{}), common.ErrValidation)

	// Unknown cipher tag.
	unknown := aeadKeys
	unknown.BaseCipher = "rot13"
	assert.ErrorIs(t, Validate(reg, unknown, map[uuid.UUID]ItemKeyInfo{ref: goodInfo}), common.ErrUnsupported)
}

func TestAddRemoveKeyRef_PreserveContent(t *testing.T) {
	iv := common.GenerateRandByteArray(12)
	tag := common.GenerateRandByteArray(16)
	first, second := uuid.New(), uuid.New()

	keys := ItemKeys{
		BaseCipher:  suite.Aes256Gcm,
		KeyRefs:     []uuid.UUID{first},
		ItemIV:      iv,
		ItemAuthTag: tag,
	}

	added := AddKeyRef(keys, second)
	assert.Equal(t, []uuid.UUID{first, second}, added.KeyRefs)
	assert.Equal(t, iv, []byte(added.ItemIV))
	assert.Equal(t, tag, []byte(added.ItemAuthTag))
	// Original untouched.
	assert.Equal(t, []uuid.UUID{first}, keys.KeyRefs)

	// Adding an existing ref is a no-op.
	again := AddKeyRef(added, second)
	assert.Equal(t, added.KeyRefs, again.KeyRefs)

	removed := RemoveKeyRef(added, first)
	assert.Equal(t, []uuid.UUID{second}, removed.KeyRefs)
	assert.Equal(t, iv, []byte(removed.ItemIV))
	assert.Equal(t, tag, []byte(removed.ItemAuthTag))
}
