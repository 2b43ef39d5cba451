package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"wastechem.org/internal/audit"
	"wastechem.org/internal/storage"
)

// uploadPrefix is where signed upload URLs are redeemed.
const uploadPrefix = "/storage/v1/object/upload/sign/"

func (a *API) uploadURL(w http.ResponseWriter, r *http.Request) {
	var req storage.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.uploader.Issue(r.Context(), identity(r).ID, req)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// receiveUpload stores the body of a PUT to a signed upload URL. The token
// query parameter is the only credential.
func (a *API) receiveUpload(w http.ResponseWriter, r *http.Request) {
	objectPath, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed object path")
		return
	}
	body, err := uploadBody(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	obj, err := a.receiver.Receive(r.Context(), chi.URLParam(r, "bucket"), objectPath, r.URL.Query().Get("token"), body)
	switch {
	case err == nil:
		a.logger.InfoContext(r.Context(), "upload stored",
			"request_id", audit.RequestIDFromContext(r.Context()),
			"key", obj.Key,
			"size", obj.Size,
		)
		writeJSON(w, http.StatusOK, obj)
	case errors.Is(err, storage.ErrInvalidCapability):
		writeError(w, r, http.StatusForbidden, "invalid upload token")
	case errors.Is(err, storage.ErrTooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
	case errors.Is(err, storage.ErrObjectExists):
		writeError(w, r, http.StatusConflict, "object already exists")
	default:
		a.handleError(w, r, err)
	}
}

// uploadBody returns the file bytes of a raw or multipart/form-data body. In a
// multipart body the first part with a file name is used.
func uploadBody(r *http.Request) (io.Reader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("multipart body has no file part")
		}
		if err != nil {
			return nil, err
		}
		if part.FileName() != "" {
			return part, nil
		}
	}
}
