// Package storage keeps uploaded proof files and import sheets on local disk.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/ptm-finance-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// URLPrefix is the public path segment every stored file lives under.
const URLPrefix = "storage/"

var proofMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
}

// formats imaging can re-encode after a resize.
var resizableMimeTypes = map[string]imaging.Format{
	"image/jpeg": imaging.JPEG,
	"image/png":  imaging.PNG,
	"image/gif":  imaging.GIF,
}

var importExtensions = map[string]struct{}{".xlsx": {}, ".xls": {}}

// SavedFile describes a stored upload.
type SavedFile struct {
	Name        string
	StoragePath string
	DiskPath    string
	PublicURL   string
	MimeType    string
	Size        int64
}

// Local stores files below a root directory that is served as /storage/.
type Local struct {
	root      string
	publicURL string
	cfg       config.StorageConfig
}

// NewLocal creates the proof and import directories when missing.
func NewLocal(cfg config.StorageConfig, publicURL string) (*Local, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.New("storage root is required")
	}
	l := &Local{root: cfg.Root, publicURL: strings.TrimRight(publicURL, "/"), cfg: cfg}
	for _, dir := range []string{cfg.ProofDir, cfg.ImportDir} {
		if err := os.MkdirAll(filepath.Join(cfg.Root, filepath.FromSlash(dir)), 0o755); err != nil {
			return nil, fmt.Errorf("creating storage dir %s: %w", dir, err)
		}
	}
	return l, nil
}

// Root returns the disk directory behind /storage/.
func (l *Local) Root() string { return l.root }

// SaveProof validates and stores a payment proof. Images larger than the
// configured bounds are downscaled before they are written.
func (l *Local) SaveProof(ctx context.Context, fh *multipart.FileHeader) (SavedFile, error) {
	data, err := readUpload(fh, l.cfg.ProofMaxBytes(), fmt.Sprintf("Proof file must not exceed %dMB", l.cfg.ProofMaxMB))
	if err != nil {
		return SavedFile{}, err
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), proofMimeTypes...) {
		return SavedFile{}, pkgerrors.New(pkgerrors.CodeValidation, "Proof file must be an image or a PDF").
			WithDetails(map[string]string{"proof_file": mt.String()})
	}

	if format, ok := resizableMimeTypes[mt.String()]; ok {
		data, err = l.downscale(data, format)
		if err != nil {
			return SavedFile{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Proof image could not be processed")
		}
	}

	name := uuid.NewString() + mt.Extension()
	saved, err := l.write(l.cfg.ProofDir, name, data)
	if err != nil {
		return SavedFile{}, err
	}
	saved.MimeType = mt.String()
	return saved, nil
}

// SaveImport stores an uploaded .xlsx or .xls sheet outside the public proof dir.
func (l *Local) SaveImport(ctx context.Context, fh *multipart.FileHeader) (SavedFile, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if _, ok := importExtensions[ext]; !ok {
		return SavedFile{}, pkgerrors.New(pkgerrors.CodeValidation, "Only .xlsx and .xls files are allowed")
	}

	data, err := readUpload(fh, l.cfg.ImportMaxBytes(), fmt.Sprintf("Import file must not exceed %dMB", l.cfg.ImportMaxMB))
	if err != nil {
		return SavedFile{}, err
	}

	mt := mimetype.Detect(data)
	if !isSpreadsheet(mt) {
		return SavedFile{}, pkgerrors.New(pkgerrors.CodeValidation, "Only .xlsx and .xls files are allowed").
			WithDetails(map[string]string{"file": mt.String()})
	}

	saved, err := l.write(l.cfg.ImportDir, uuid.NewString()+ext, data)
	if err != nil {
		return SavedFile{}, err
	}
	saved.MimeType = mt.String()
	return saved, nil
}

// Delete removes a stored file given its public URL or storage path.
// Unknown locations and missing files are not errors.
func (l *Local) Delete(ctx context.Context, p string) error {
	disk := ResolveDiskPath(l.root, p)
	if disk == "" {
		return nil
	}
	if err := os.Remove(disk); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PublicURL rebases p onto the configured public base URL.
func (l *Local) PublicURL(p string) string {
	return NormalizePublicURL(l.publicURL, p)
}

// ProofHandler serves /storage/<proof dir>/* and hides everything else.
func (l *Local) ProofHandler() http.Handler {
	proofPrefix := "/" + URLPrefix + strings.Trim(l.cfg.ProofDir, "/") + "/"
	files := http.FileServer(http.Dir(filepath.Join(l.root, filepath.FromSlash(l.cfg.ProofDir))))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, proofPrefix) || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		http.StripPrefix(strings.TrimSuffix(proofPrefix, "/"), files).ServeHTTP(w, r)
	})
}

func (l *Local) downscale(data []byte, format imaging.Format) ([]byte, error) {
	maxW, maxH := l.cfg.ImageMaxWidth, l.cfg.ImageMaxHeight
	if maxW <= 0 || maxH <= 0 {
		return data, nil
	}
	conf, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if conf.Width <= maxW && conf.Height <= maxH {
		return data, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	img = imaging.Fit(img, maxW, maxH, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l *Local) write(dir, name string, data []byte) (SavedFile, error) {
	storagePath := path.Join(URLPrefix+strings.Trim(dir, "/"), name)
	disk := filepath.Join(l.root, filepath.FromSlash(dir), name)
	if err := os.WriteFile(disk, data, 0o644); err != nil {
		return SavedFile{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to store file")
	}
	return SavedFile{
		Name:        name,
		StoragePath: storagePath,
		DiskPath:    disk,
		PublicURL:   NormalizePublicURL(l.publicURL, storagePath),
		Size:        int64(len(data)),
	}, nil
}

// readUpload reads at most limit+1 bytes; anything longer is rejected.
func readUpload(fh *multipart.FileHeader, limit int64, tooLarge string) ([]byte, error) {
	if fh == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "File is required")
	}
	if fh.Size > limit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, tooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "File could not be read")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "File could not be read")
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "File is empty")
	}
	if int64(len(data)) > limit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, tooLarge)
	}
	return data, nil
}

func isSpreadsheet(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/zip") || m.Is("application/x-ole-storage") {
			return true
		}
	}
	return false
}

// NormalizePublicURL passes http(s) URLs through, rebases any path that
// contains storage/ onto base and returns everything else unchanged.
func NormalizePublicURL(base, p string) string {
	if isHTTPURL(p) {
		return p
	}
	idx := strings.Index(p, URLPrefix)
	if idx < 0 {
		return p
	}
	return strings.TrimRight(base, "/") + "/" + p[idx:]
}

// ResolveDiskPath maps a public URL or storage path to a file below root.
// It returns "" when p does not point into storage.
func ResolveDiskPath(root, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if isHTTPURL(p) {
		u, err := url.Parse(p)
		if err != nil {
			return ""
		}
		p = u.Path
	}
	idx := strings.Index(p, URLPrefix)
	if idx < 0 {
		return ""
	}
	rel := path.Clean("/" + p[idx+len(URLPrefix):])
	if rel == "/" {
		return ""
	}
	return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
}

func isHTTPURL(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}
