// Package devserver rebuilds on change, serves the output and tells
// connected browsers to reload.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/valderanvvk/frontend-base-template/internal/assembler"
	"github.com/valderanvvk/frontend-base-template/internal/assets"
	"github.com/valderanvvk/frontend-base-template/internal/build"
	"github.com/valderanvvk/frontend-base-template/internal/staticcopy"
)

type Options struct {
	CORSOrigins []string
	// Debounce coalesces file events before static files are re-copied.
	Debounce time.Duration
	// ProbeTimeout bounds the wait for the server to answer before the
	// browser is opened.
	ProbeTimeout time.Duration
	// OpenURL opens the browser. Defaults to pkg/browser.
	OpenURL func(url string) error
}

// Server is the development server for one builder.
type Server struct {
	builder *build.Builder
	cfg     *assembler.Config
	fs      afero.Fs
	broker  *Broker
	opts    Options

	// mu serializes output updates from the bundler and the file watcher.
	mu sync.Mutex
}

func New(builder *build.Builder, fs afero.Fs, opts Options) *Server {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if opts.Debounce == 0 {
		opts.Debounce = 100 * time.Millisecond
	}
	if opts.ProbeTimeout == 0 {
		opts.ProbeTimeout = 10 * time.Second
	}
	if opts.OpenURL == nil {
		opts.OpenURL = browser.OpenURL
	}
	return &Server{
		builder: builder,
		cfg:     builder.Config(),
		fs:      fs,
		broker:  NewBroker(),
		opts:    opts,
	}
}

// Broker returns the live reload broker.
func (s *Server) Broker() *Broker {
	return s.broker
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	ds := s.cfg.DevServer
	return NewHandler(HandlerConfig{
		Fs:          s.fs,
		OutputDir:   s.cfg.Output.Path,
		ContentBase: ds.ContentBase,
		Compress:    ds.Compress,
		CORSOrigins: s.opts.CORSOrigins,
	}, s.broker)
}

// Run prepares the output, starts watching and serves until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := staticcopy.Clean(s.fs, s.cfg.Output.Path); err != nil {
		return fmt.Errorf("failed to clean output: %w", err)
	}
	if _, err := s.builder.CopyStatic(ctx); err != nil {
		return err
	}

	if err := s.builder.Pipeline().Watch(ctx, func(m *assets.Manifest, err error) {
		s.rebuilt(ctx, m, err)
	}); err != nil {
		return err
	}

	tw, err := newTreeWatcher(s.staticRoots(), s.opts.Debounce, func(paths []string) {
		s.staticChanged(ctx, paths)
	})
	if err != nil {
		return fmt.Errorf("failed to watch static files: %w", err)
	}
	go tw.run(ctx)

	ds := s.cfg.DevServer
	ln, err := net.Listen("tcp", net.JoinHostPort(ds.Host, strconv.Itoa(ds.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	url := "http://" + ln.Addr().String() + "/"

	srv := configureHTTPServer(s.Handler())
	srv.BaseContext = func(net.Listener) context.Context { return ctx }
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	log.Info().Str("url", url).Bool("hot", ds.Hot).Msg("Dev server listening")

	go func() {
		if err := s.waitReady(ctx, url); err != nil {
			log.Warn().Err(err).Msg("Dev server did not become ready")
			return
		}
		if ds.Open {
			if err := s.opts.OpenURL(url); err != nil {
				log.Warn().Err(err).Msg("Failed to open browser")
			}
		}
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	log.Info().Msg("Dev server stopped")
	return nil
}

func configureHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

// rebuilt runs after every bundle build in watch mode.
func (s *Server) rebuilt(ctx context.Context, m *assets.Manifest, err error) {
	if err != nil {
		log.Error().Err(err).Msg("Rebuild failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.builder.RenderHTML(m); err != nil {
		log.Error().Err(err).Msg("Failed to render html")
		return
	}
	s.reload(ctx, m.BuildID)
}

// staticChanged re-copies static trees or re-renders the page after the
// watched files changed.
func (s *Server) staticChanged(ctx context.Context, paths []string) {
	log.Debug().Strs("paths", paths).Msg("Static files changed")

	htmlDir := filepath.Dir(s.cfg.HTML.Template)
	renderHTML := false
	for _, p := range paths {
		if under(htmlDir, p) {
			renderHTML = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.builder.CopyStatic(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to copy static files")
		return
	}

	if m := s.builder.Pipeline().Manifest(); renderHTML && m != nil {
		if err := s.builder.RenderHTML(m); err != nil {
			log.Error().Err(err).Msg("Failed to render html")
			return
		}
	}

	s.reload(ctx, "static")
}

func (s *Server) reload(ctx context.Context, id string) {
	if !s.cfg.DevServer.Hot {
		return
	}
	s.broker.Publish(ctx, id)
}

// staticRoots are the directories whose changes esbuild does not see: the
// copy sources and the directory of the HTML template.
func (s *Server) staticRoots() []string {
	roots := []string{filepath.Dir(s.cfg.HTML.Template)}
	for _, p := range s.cfg.Copy {
		roots = append(roots, p.From)
	}
	return roots
}

// waitReady polls url until the server answers.
func (s *Server) waitReady(ctx context.Context, url string) error {
	client := &http.Client{Timeout: time.Second}

	_, err := backoff.Retry(ctx, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return 0, fmt.Errorf("server answered %s", resp.Status)
		}
		return resp.StatusCode, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(s.opts.ProbeTimeout),
	)
	return err
}

func under(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
