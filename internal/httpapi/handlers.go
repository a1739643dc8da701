package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/engine"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/mgmt"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/service"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

const (
	maxConfigBody    = 64 << 10
	maxCardStoreBody = 1 << 20
)

// submit runs cmd on the engine and writes the error response itself when
// it fails.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, cmd mgmt.Command) (mgmt.Result, bool) {
	res, err := s.engine.Submit(r.Context(), cmd)
	if err == nil {
		err = res.Err
	}
	if err != nil {
		s.fail(w, r, cmd, err)
		return res, false
	}
	return res, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, cmd mgmt.Command, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, mgmt.ErrDisabled):
		writeError(w, http.StatusForbidden, "disabled", err.Error())
	case errors.Is(err, engine.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "restarting", "device is restarting")
	case r.Context().Err() != nil:
		// The client is gone; the command may still complete.
		s.logger.Info("request abandoned", "command", cmd.Name(), "err", err)
	default:
		s.logger.Error("command failed", "command", cmd.Name(), "err", err)
		writeError(w, http.StatusInternalServerError, "io_error", "storage error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"scanning": snap.ScanningEnabled,
	})
}

func (s *Server) handleReadConfig(w http.ResponseWriter, r *http.Request) {
	res, ok := s.submit(w, r, mgmt.ReadConfig{})
	if !ok {
		return
	}
	writeRaw(w, "application/json", res.Value.([]byte))
}

func (s *Server) handleWriteConfig(w http.ResponseWriter, r *http.Request) {
	raw, err := formOrBody(w, r, "config", maxConfigBody)
	if tooLarge(err) {
		writeTooLarge(w, maxConfigBody)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if _, ok := s.submit(w, r, mgmt.WriteConfig{Raw: raw}); !ok {
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{OK: true, Message: "config saved, restarting", Restart: true})
}

func (s *Server) handleLastTag(w http.ResponseWriter, r *http.Request) {
	res, ok := s.submit(w, r, mgmt.ReadLastTag{})
	if !ok {
		return
	}
	writeRaw(w, "text/plain; charset=utf-8", []byte(res.Value.(string)))
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	res, ok := s.submit(w, r, mgmt.ListCards{})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res.Value)
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCardRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, ok := s.submit(w, r, mgmt.AddCard{UID: req.UID, Color: req.Color, Animation: req.Animation})
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, res.Value)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		req, err := decodeCardRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		uid = req.UID
	}
	if _, ok := s.submit(w, r, mgmt.DeleteCard{UID: uid}); !ok {
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{OK: true, Message: "card deleted"})
}

func (s *Server) handleReadCardStore(w http.ResponseWriter, r *http.Request) {
	res, ok := s.submit(w, r, mgmt.ReadCardStore{})
	if !ok {
		return
	}
	writeRaw(w, "text/plain; charset=utf-8", res.Value.([]byte))
}

func (s *Server) handleWriteCardStore(w http.ResponseWriter, r *http.Request) {
	data, err := formOrBody(w, r, "cards", maxCardStoreBody)
	if tooLarge(err) {
		writeTooLarge(w, maxCardStoreBody)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, ok := s.submit(w, r, mgmt.WriteCardStore{Data: data})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{OK: true, Message: fmt.Sprintf("%d bytes written", res.Value)})
}

func (s *Server) handleUploadCardStore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCardStoreBody+4096)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		if tooLarge(err) {
			writeTooLarge(w, maxCardStoreBody)
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", "multipart field \"file\" is required")
		return
	}
	defer f.Close()
	// One byte past the limit tells a full-size file from a truncated one.
	data, err := io.ReadAll(io.LimitReader(f, maxCardStoreBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "could not read upload")
		return
	}
	if len(data) > maxCardStoreBody {
		writeTooLarge(w, maxCardStoreBody)
		return
	}
	res, ok := s.submit(w, r, mgmt.UploadCardStore{Filename: hdr.Filename, Data: data})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{OK: true, Message: fmt.Sprintf("%d bytes uploaded", res.Value)})
}

func (s *Server) handleReadActivity(w http.ResponseWriter, r *http.Request) {
	res, ok := s.submit(w, r, mgmt.ReadActivity{})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res.Value)
}

func (s *Server) handleClearActivity(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.submit(w, r, mgmt.ClearActivity{}); !ok {
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{OK: true, Message: "activity log cleared"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, ok := s.submit(w, r, mgmt.ReadStatus{})
	if !ok {
		return
	}
	st := res.Value.(types.DeviceStatus)
	if wantsProtobuf(r) {
		msg, err := statusToProto(st)
		if err != nil {
			s.logger.Error("status to proto", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func isForm(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

// formOrBody returns the named form field for form posts and the whole body
// otherwise.
func formOrBody(w http.ResponseWriter, r *http.Request, field string, limit int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if isForm(r) {
		if err := r.ParseMultipartForm(limit); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("invalid form: %w", err)
		}
		if _, ok := r.Form[field]; !ok {
			return nil, fmt.Errorf("form field %q is required", field)
		}
		return []byte(r.FormValue(field)), nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func writeTooLarge(w http.ResponseWriter, limit int64) {
	writeError(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("body exceeds %d bytes", limit))
}

func decodeCardRequest(r *http.Request) (types.CardRequest, error) {
	var req types.CardRequest
	if isJSON(r) {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, errors.New("invalid JSON body")
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, errors.New("invalid form")
	}
	req.UID = strings.TrimSpace(r.FormValue("uid"))
	req.Color = r.FormValue("color")
	req.Animation = r.FormValue("animation")
	return req, nil
}
