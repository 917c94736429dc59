package devserver

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	httpmiddleware "github.com/valderanvvk/frontend-base-template/internal/http"
)

// LiveReloadPath is the server-sent events endpoint browsers subscribe to.
const LiveReloadPath = "/__livereload"

// HandlerConfig configures the dev server handler.
type HandlerConfig struct {
	Fs afero.Fs
	// OutputDir is served first, ContentBase for anything not built.
	OutputDir   string
	ContentBase string
	Compress    bool
	CORSOrigins []string
}

// NewHandler returns the dev server handler: the live reload stream plus
// static files from the build output with a fallback to the source root.
// Every response is marked uncacheable.
func NewHandler(cfg HandlerConfig, broker *Broker) http.Handler {
	var static http.Handler = &fallbackHandler{
		fs:       cfg.Fs,
		primary:  cfg.OutputDir,
		fallback: cfg.ContentBase,
		files:    http.FileServer(afero.NewHttpFs(cfg.Fs).Dir(cfg.OutputDir)),
		base:     http.FileServer(afero.NewHttpFs(cfg.Fs).Dir(cfg.ContentBase)),
	}
	if cfg.Compress {
		static = gzhttp.GzipHandler(static)
	}

	mux := http.NewServeMux()
	mux.Handle(LiveReloadPath, broker)
	mux.Handle("/", static)

	mws := []httpmiddleware.Middleware{
		httpmiddleware.RequestLogger(log.Logger),
		httpmiddleware.NoStore(),
	}
	if len(cfg.CORSOrigins) > 0 {
		mws = append(mws, withCORS(cfg.CORSOrigins))
	}

	return httpmiddleware.Chain(mux, mws...)
}

type fallbackHandler struct {
	fs       afero.Fs
	primary  string
	fallback string
	files    http.Handler
	base     http.Handler
}

func (h *fallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.fallback != "" && !h.built(r.URL.Path) {
		h.base.ServeHTTP(w, r)
		return
	}
	h.files.ServeHTTP(w, r)
}

// built reports whether the output directory can answer urlPath.
func (h *fallbackHandler) built(urlPath string) bool {
	clean := path.Clean("/" + urlPath)
	target := filepath.Join(h.primary, filepath.FromSlash(clean))

	info, err := h.fs.Stat(target)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return true
	}
	if !strings.HasSuffix(urlPath, "/") {
		return true
	}
	ok, _ := afero.Exists(h.fs, filepath.Join(target, "index.html"))
	return ok
}

func withCORS(allowedOrigins []string) httpmiddleware.Middleware {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler
}
