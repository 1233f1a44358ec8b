package server

import (
	"fmt"
	"net/http"
)

// Deprecated aliases of the layered pipeline endpoints, kept for older clients.
const (
	LegacyLayeredPath      = "/api/layered"
	LegacyGenerateKeysPath = LegacyLayeredPath + "/generate-keys"
	LegacyEncryptPath      = LegacyLayeredPath + "/encrypt"
	LegacyDecryptPath      = LegacyLayeredPath + "/decrypt"
	LegacyInfoPath         = LegacyLayeredPath + "/info"
)

// defaultSender is the sender identifier legacy clients get when they omit one.
const defaultSender = "System"

// deprecated serves next and points the client at successor.
func (s *Server) deprecated(successor string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Deprecation", "true")
		w.Header().Set("Link", fmt.Sprintf("<%s>; rel=\"successor-version\"", successor))
		s.log(r).WithField("successor", successor).Warn("deprecated endpoint")
		next(w, r)
	}
}

func (s *Server) legacyEncrypt(w http.ResponseWriter, r *http.Request) {
	var req encryptRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if req.SenderIdentifier == "" {
		req.SenderIdentifier = defaultSender
	}
	s.encryptWith(w, r, req)
}
