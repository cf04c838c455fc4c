// Package images provides the gallery API routes and public file access.
package images

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"imghost/internal/errs"
	"imghost/internal/gallery"
	"imghost/internal/server/auth"
	"imghost/pkg/api"
)

const (
	// DefaultMaxUploadBytes bounds the file part of an upload.
	DefaultMaxUploadBytes = 50 << 20
	// multipartOverhead allows for form fields and boundaries.
	multipartOverhead = 1 << 20
	// formMemory is how much of a form is kept in memory before spilling
	// to temporary files.
	formMemory = 32 << 20

	cacheControl = "public, max-age=31536000"
)

// Options controls access and limits of the handler.
type Options struct {
	// PublicRead lets unauthenticated callers list, read stats and fetch
	// files. Mutations always need a principal.
	PublicRead     bool
	MaxUploadBytes int64
}

type handler struct {
	svc  *gallery.Service
	opts Options
}

// Handler returns the routes of the gallery API. Requests are expected to
// have passed auth.Authenticator.Middleware.
func Handler(svc *gallery.Service, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	h := &handler{svc: svc, opts: opts}

	mux := http.NewServeMux()
	mux.Handle("GET /api/auth", auth.Require(http.HandlerFunc(h.whoami)))
	mux.Handle("GET /api/images", h.read(h.list))
	mux.Handle("POST /api/images", auth.Require(http.HandlerFunc(h.upload)))
	mux.Handle("DELETE /api/images", auth.Require(http.HandlerFunc(h.deleteImage)))
	mux.Handle("DELETE /api/images/{key...}", auth.Require(http.HandlerFunc(h.deleteImage)))
	mux.Handle("GET /api/folders", h.read(h.listFolders))
	mux.Handle("POST /api/folders", auth.Require(http.HandlerFunc(h.createFolder)))
	mux.Handle("DELETE /api/folders", auth.Require(http.HandlerFunc(h.deleteFolder)))
	mux.Handle("GET /api/stats", h.read(h.stats))
	mux.Handle("POST /api/upload-key", auth.Require(http.HandlerFunc(h.uploadKey)))
	mux.Handle("GET /api/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "API endpoint not found"})
	}))
	mux.Handle("GET /{key...}", h.read(h.file))
	return mux
}

// read guards a read-only route according to Options.PublicRead.
func (h *handler) read(fn http.HandlerFunc) http.Handler {
	if h.opts.PublicRead {
		return fn
	}
	return auth.Require(fn)
}

func (h *handler) whoami(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, api.Principal{ID: p.ID, Type: p.Type})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, r, errs.New(errs.KindInvalidInput, "list", "", "limit must be an integer"))
			return
		}
		limit = n
	}

	listing, err := h.svc.List(r.Context(), q.Get("folder"), q.Get("cursor"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res := api.ListResponse{
		Images:    make([]api.Image, 0, len(listing.Files)),
		Truncated: listing.Truncated,
		Total:     len(listing.Files),
	}
	for _, f := range listing.Files {
		res.Images = append(res.Images, toImage(h.svc, f))
	}
	if listing.Folders != nil {
		res.Folders = toFolders(h.svc.Root(), listing.Folders)
	}
	if listing.Truncated {
		res.Cursor = &listing.NextCursor
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{Error: "file too large"})
			return
		}
		writeError(w, r, errs.Wrap(errs.KindInvalidInput, "upload", "", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, errs.New(errs.KindInvalidInput, "upload", "", "no file provided"))
		return
	}
	defer file.Close()
	if header.Size > h.opts.MaxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{Error: "file too large"})
		return
	}

	up, err := h.svc.Upload(r.Context(), gallery.UploadRequest{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Folder:      r.FormValue("folder"),
		Body:        file,
		Size:        header.Size,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.UploadResponse{
		Success:       true,
		Key:           up.Key,
		Name:          up.FileName,
		Folder:        up.Folder,
		URL:           up.URL,
		CDNURL:        up.CDNURL,
		Size:          up.Size,
		SizeFormatted: api.FormatSize(up.Size),
		ContentType:   up.ContentType,
	})
}

func (h *handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	if err := h.svc.DeleteImage(r.Context(), key); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.DeleteImageResponse{Message: "Image deleted successfully", Key: key})
}

func (h *handler) listFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.svc.ListFolders(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FoldersResponse{Folders: toFolders(h.svc.Root(), folders)})
}

func (h *handler) createFolder(w http.ResponseWriter, r *http.Request) {
	var req api.CreateFolderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, errs.New(errs.KindInvalidName, "create folder", "", "Invalid folder name"))
		return
	}
	created, err := h.svc.CreateFolder(r.Context(), req.Name, req.Parent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.CreateFolderResponse{
		Success:  true,
		Name:     created.Name,
		Path:     created.Path,
		FullPath: created.FullPath,
		Message:  "Folder created successfully",
	})
}

func (h *handler) deleteFolder(w http.ResponseWriter, r *http.Request) {
	var req api.DeleteFolderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Path == "" {
		req.Path = r.URL.Query().Get("path")
	}
	res, err := h.svc.DeleteFolder(r.Context(), req.Path)
	if err != nil && !errs.IsPartialDeletion(err) {
		writeError(w, r, err)
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Strs("failed", res.FailedKeys()).Msg("partial folder deletion")
	}
	writeJSON(w, http.StatusOK, toDeleteResponse(res))
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Stats(r.Context(), r.URL.Query().Get("folder"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStats(snap))
}

func (h *handler) uploadKey(w http.ResponseWriter, r *http.Request) {
	var req api.UploadKeyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	uk, err := h.svc.NewUploadKey(req.Name, req.ContentType, req.Folder)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.UploadKeyResponse{
		Key:         uk.Key,
		Name:        uk.FileName,
		ContentType: uk.ContentType,
		URL:         uk.URL,
		CDNURL:      uk.CDNURL,
	})
}

// file streams a stored object with long-lived caching headers.
func (h *handler) file(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		http.NotFound(w, r)
		return
	}
	obj, body, err := h.svc.Open(r.Context(), key, nil)
	if err != nil {
		if errs.IsNotFound(err) || errs.IsInvalidInput(err) {
			http.NotFound(w, r)
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Str("key", key).Msg("open object")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	etag := `"` + obj.ETag + `"`
	hdr := w.Header()
	hdr.Set("ETag", etag)
	hdr.Set("Cache-Control", cacheControl)
	if obj.ContentType != "" {
		hdr.Set("Content-Type", obj.ContentType)
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	hdr.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("key", key).Msg("stream object")
	}
}

// decodeBody reads an optional JSON body into v.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errs.Wrap(errs.KindInvalidInput, "decode body", "", err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status and logs server-side failures.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(err)
	log := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	} else {
		log.Debug().Err(err).Msg("request rejected")
	}

	msg := err.Error()
	var e *errs.Error
	if errors.As(err, &e) && e.Message != "" && e.Cause == nil {
		msg = e.Message
	}
	writeJSON(w, status, api.ErrorResponse{Error: msg, Kind: errs.KindOf(err).String()})
}
