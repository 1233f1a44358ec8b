package server

import (
	"net/http"

	"github.com/rbaliyan/stegocrypt/covertext"
	"github.com/rbaliyan/stegocrypt/watermark"
)

// Standalone text tool endpoints.
const (
	WatermarkPath        = "/api/text-watermark"
	WatermarkEmbedPath   = WatermarkPath + "/embed"
	WatermarkExtractPath = WatermarkPath + "/extract"
	WatermarkRemovePath  = WatermarkPath + "/remove"

	StegoPath         = "/api/linguistic-stego"
	StegoHidePath     = StegoPath + "/hide"
	StegoExtractPath  = StegoPath + "/extract"
	StegoCapacityPath = StegoPath + "/capacity"
)

type textRequest struct {
	Text       string `json:"text"`
	Identifier string `json:"identifier,omitempty"`
}

type watermarkResponse struct {
	Success    bool   `json:"success"`
	Text       string `json:"text,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Found      bool   `json:"found"`
	Method     string `json:"method"`
}

func (s *Server) watermarkEmbed(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	marked, err := watermark.Embed([]byte(req.Text), req.Identifier)
	if err != nil {
		s.writeError(w, r, invalid("%v", err), nil)
		return
	}
	writeJSON(w, http.StatusOK, watermarkResponse{
		Success:    true,
		Text:       string(marked),
		Identifier: req.Identifier,
		Found:      true,
		Method:     watermark.Method,
	})
}

func (s *Server) watermarkExtract(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	id := watermark.Extract([]byte(req.Text))
	writeJSON(w, http.StatusOK, watermarkResponse{
		Success:    true,
		Identifier: id,
		Found:      id != "",
		Method:     watermark.Method,
	})
}

func (s *Server) watermarkRemove(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	stripped, found := watermark.Strip([]byte(req.Text))
	writeJSON(w, http.StatusOK, watermarkResponse{
		Success: true,
		Text:    string(stripped),
		Found:   found,
		Method:  watermark.Method,
	})
}

type stegoRequest struct {
	Message   string `json:"message,omitempty"`
	CoverText string `json:"cover_text,omitempty"`
	StegoText string `json:"stego_text,omitempty"`
}

type stegoResponse struct {
	Success          bool   `json:"success"`
	StegoText        string `json:"stego_text,omitempty"`
	Message          string `json:"message,omitempty"`
	BitsEmbedded     int    `json:"bits_embedded,omitempty"`
	WordsUsed        int    `json:"words_used,omitempty"`
	Repetitions      int    `json:"repetitions,omitempty"`
	UsedDefaultCover bool   `json:"used_default_cover,omitempty"`
	CapacityBytes    *int   `json:"capacity_bytes,omitempty"`
	Method           string `json:"method"`
}

func (s *Server) stegoHide(w http.ResponseWriter, r *http.Request) {
	var req stegoRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if req.Message == "" {
		s.writeError(w, r, invalid("message is required"), nil)
		return
	}
	if err := s.checkSize("message", req.Message); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	res, err := covertext.Hide([]byte(req.Message), req.CoverText)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, stegoResponse{
		Success:          true,
		StegoText:        res.Text,
		BitsEmbedded:     res.BitsEmbedded,
		WordsUsed:        res.WordsUsed,
		Repetitions:      res.Repetitions,
		UsedDefaultCover: res.UsedDefaultCover,
		Method:           covertext.Method,
	})
}

func (s *Server) stegoExtract(w http.ResponseWriter, r *http.Request) {
	var req stegoRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	msg, err := covertext.Extract(req.StegoText)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, stegoResponse{Success: true, Message: string(msg), Method: covertext.Method})
}

func (s *Server) stegoCapacity(w http.ResponseWriter, r *http.Request) {
	var req stegoRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	capacity := covertext.Capacity(req.CoverText)
	writeJSON(w, http.StatusOK, stegoResponse{Success: true, CapacityBytes: &capacity, Method: covertext.Method})
}
