package httpapi

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/api"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/envelope"
	"github.com/passman-project/passman/internal/server/repositories/items"
)

// maxContentBytes bounds an item content upload.
const maxContentBytes = 32 << 20

func keySetFromWire(k api.ItemKeySet) *items.KeySet {
	return &items.KeySet{
		Keys: envelope.ItemKeys{
			BaseCipher:  k.BaseCipher,
			KeyRefs:     k.KeyRefs,
			ItemIV:      k.ItemIV,
			ItemAuthTag: k.ItemAuthTag,
		},
		Infos:   k.KeyInfos,
		Version: k.Version,
	}
}

func keySetToWire(set *items.KeySet) api.ItemKeySet {
	return api.ItemKeySet{
		BaseCipher:  set.Keys.BaseCipher,
		KeyRefs:     set.Keys.KeyRefs,
		ItemIV:      set.Keys.ItemIV,
		ItemAuthTag: set.Keys.ItemAuthTag,
		KeyInfos:    set.Infos,
		Version:     set.Version,
	}
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	itemID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	content, contentType, err := s.items.GetContent(r.Context(), actor, itemID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		s.logger.Warn(r.Context(), "failed to write item content", "item", itemID, "error", err)
	}
}

func (s *Server) handlePutItem(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	itemID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxContentBytes))
	if err != nil {
		s.writeError(r.Context(), w, common.ErrValidation.WithMessage("reading content: %v", err))
		return
	}
	contentType := r.Header.Get("Content-Type")
	if err := s.items.PutContent(r.Context(), actor, itemID, content, contentType); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	itemID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.items.DeleteContent(r.Context(), actor, itemID); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetItemMetadata(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	itemID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	meta, err := s.items.GetMetadata(r.Context(), actor, itemID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemMetadata{
		ContentType: meta.ContentType,
		MTime:       meta.ModifiedAt.UTC(),
		ATime:       meta.AccessedAt.UTC(),
		CTime:       meta.CreatedAt.UTC(),
	})
}

func (s *Server) handleGetItemKeys(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	itemID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	set, err := s.items.GetKeys(r.Context(), actor, itemID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, keySetToWire(set))
}

func (s *Server) handlePutItemKeys(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	itemID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	var req api.ItemKeySet
	if err := readJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	version, err := s.items.PutKeys(r.Context(), actor, itemID, keySetFromWire(req), req.Version)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PutKeysResponse{Version: version})
}

func (s *Server) handleDeleteItemKeys(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	itemID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.items.DeleteKeys(r.Context(), actor, itemID); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) itemKeyPath(r *http.Request) (itemID, keyID uuid.UUID, err error) {
	if itemID, err = pathUUID(r, "id"); err != nil {
		return
	}
	keyID, err = pathUUID(r, "keyID")
	return
}

func (s *Server) handleGetItemKeyInfo(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	itemID, keyID, err := s.itemKeyPath(r)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	info, err := s.items.GetKeyInfo(r.Context(), actor, itemID, keyID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handlePutItemKeyInfo(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	itemID, keyID, err := s.itemKeyPath(r)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	var info envelope.ItemKeyInfo
	if err := readJSON(r, &info); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.items.PutKeyInfo(r.Context(), actor, itemID, keyID, &info); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteItemKeyInfo(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	itemID, keyID, err := s.itemKeyPath(r)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.items.DeleteKeyInfo(r.Context(), actor, itemID, keyID); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
