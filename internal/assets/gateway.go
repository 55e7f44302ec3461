package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"stagehand/internal/logging"
)

const multipartMemory = 32 << 20

// UploadResponse lists the files written by an upload.
type UploadResponse struct {
	Files []string `json:"files"`
}

// Gateway serves asset uploads, deletes and downloads. It never touches the
// collections; the Watcher observes the files it writes and removes.
type Gateway struct {
	table    *Table
	maxFiles int
	logger   *slog.Logger
}

// NewGateway creates a gateway over table accepting at most maxFiles files
// per upload.
func NewGateway(table *Table, maxFiles int, logger *slog.Logger) *Gateway {
	return &Gateway{
		table:    table,
		maxFiles: maxFiles,
		logger:   logging.NewComponentLogger(logger, "asset-gateway"),
	}
}

// Register mounts the gateway routes on mux. wrap guards every route; pass nil
// to leave them open.
func (g *Gateway) Register(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	if wrap == nil {
		wrap = func(h http.HandlerFunc) http.HandlerFunc { return h }
	}
	mux.HandleFunc("POST /assets/{namespace}/{category}", wrap(g.handleUpload))
	mux.HandleFunc("DELETE /assets/{namespace}/{category}/{filename}", wrap(g.handleDelete))
	mux.HandleFunc("GET /assets/{namespace}/{category}/{file...}", wrap(g.handleGet))
}

func (g *Gateway) category(w http.ResponseWriter, r *http.Request) (Category, bool) {
	namespace := r.PathValue("namespace")
	name := r.PathValue("category")
	category, ok := g.table.Category(namespace, name)
	if !ok {
		g.writeError(w, http.StatusNotFound, fmt.Sprintf("no asset collection %s/%s", namespace, name))
		return Category{}, false
	}
	return category, true
}

func (g *Gateway) handleUpload(w http.ResponseWriter, r *http.Request) {
	category, ok := g.category(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		g.writeError(w, http.StatusBadRequest, "expected multipart form data")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	var files []*multipart.FileHeader
	for _, headers := range r.MultipartForm.File {
		files = append(files, headers...)
	}
	if len(files) == 0 {
		g.writeError(w, http.StatusBadRequest, "no files in upload")
		return
	}
	if len(files) > g.maxFiles {
		g.writeError(w, http.StatusBadRequest, fmt.Sprintf("too many files: %d exceeds limit of %d", len(files), g.maxFiles))
		return
	}
	names := make([]string, len(files))
	for i, fh := range files {
		name, ok := cleanFileName(fh.Filename)
		if !ok {
			g.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid file name %q", fh.Filename))
			return
		}
		names[i] = name
	}

	if err := os.MkdirAll(category.Dir, 0o755); err != nil {
		g.serverError(w, "create asset directory", category.Dir, err)
		return
	}
	for i, fh := range files {
		dest := filepath.Join(category.Dir, names[i])
		if err := writeUpload(fh, category.Dir, dest); err != nil {
			g.serverError(w, "write uploaded asset", dest, err)
			return
		}
	}
	g.logger.Info("assets uploaded",
		logging.String(logging.FieldNamespace, category.Namespace),
		logging.String(logging.FieldCategory, category.Name),
		logging.Int("files", len(names)),
	)
	g.writeJSON(w, http.StatusOK, UploadResponse{Files: names})
}

// writeUpload streams fh into a hidden temp file in dir and renames it into
// place so the watcher only sees complete files.
func writeUpload(fh *multipart.FileHeader, dir, dest string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, uploadPrefix+"*.partial")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (g *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) {
	category, ok := g.category(w, r)
	if !ok {
		return
	}
	name, ok := cleanFileName(r.PathValue("filename"))
	if !ok {
		g.writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	target := filepath.Join(category.Dir, name)
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			g.writeError(w, http.StatusGone, "the file to delete does not exist")
			return
		}
		g.serverError(w, "delete asset", target, err)
		return
	}
	g.logger.Info("asset deleted",
		logging.String(logging.FieldNamespace, category.Namespace),
		logging.String(logging.FieldCategory, category.Name),
		logging.String(logging.FieldPath, target),
	)
	w.WriteHeader(http.StatusOK)
}

func (g *Gateway) handleGet(w http.ResponseWriter, r *http.Request) {
	category, ok := g.category(w, r)
	if !ok {
		return
	}
	rel := strings.TrimPrefix(path.Clean("/"+r.PathValue("file")), "/")
	if rel == "" {
		http.NotFound(w, r)
		return
	}
	target := filepath.Join(category.Dir, filepath.FromSlash(rel))
	file, err := os.Open(target)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

// cleanFileName accepts a bare file name that cannot escape its directory or
// hide from the watcher.
func cleanFileName(name string) (string, bool) {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" || name == "" || strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, true
}

func (g *Gateway) serverError(w http.ResponseWriter, action, target string, err error) {
	g.logger.Error(action+" failed",
		logging.String(logging.FieldPath, target),
		logging.Error(err),
		logging.String(logging.FieldEventType, "asset_gateway_error"),
	)
	g.writeError(w, http.StatusInternalServerError, action+" failed")
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		g.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (g *Gateway) writeError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}
