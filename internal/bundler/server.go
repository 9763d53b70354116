// Package bundler serves the synthesized browser entry, in watch mode
// rebuilding it on source change and signalling the runner to reload the
// page. The bundler itself — the actual transform from source files to a
// browser-loadable bundle — is an external collaborator (§1's Non-goals);
// this package owns everything around that seam: entry synthesis, the
// in-memory build cache, request blocking during an in-flight build, the
// static-assets/working-directory fallback, and watch-mode debouncing.
package bundler

import (
	"context"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/PaperStrike/wrightplay/internal/log"
)

// BuiltFile is one file produced by a build: its content and content hash,
// used to detect whether a rebuild actually changed anything (§4.6:
// "if the build's outputs differ from the previous successful build, a
// 'changed' event is raised").
type BuiltFile struct {
	Content []byte
	Hash    string
	// ContentType overrides the MIME type guessed from the path's
	// extension, used for source maps served without a matching
	// extension-based content type.
	ContentType string
}

// Builder is the external bundler adapter: given the synthesized entry
// source, produce a map from served path to built file.
type Builder interface {
	Build(ctx context.Context, entrySource string) (map[string]BuiltFile, error)
}

// Server is the bundle server (§4.6): it holds the last successful build,
// serves it over HTTP, and in watch mode rebuilds on file change.
type Server struct {
	builder      Builder
	entrySource  string
	staticDir    string
	workDir      string
	watchDebounce time.Duration
	logger       *log.Logger

	mu       sync.RWMutex
	built    map[string]BuiltFile
	building chan struct{} // non-nil while a build is in flight; closed when it completes

	changeMu   sync.Mutex
	changeSubs []chan struct{}
}

// NewServer constructs a bundle server. staticDir and workDir are, in
// order, the two fallback locations for requests that don't match a built
// path (§6: "static assets directory, then working directory").
func NewServer(builder Builder, entrySource, staticDir, workDir string, logger *log.Logger) *Server {
	return &Server{
		builder:       builder,
		entrySource:   entrySource,
		staticDir:     staticDir,
		workDir:       workDir,
		watchDebounce: 100 * time.Millisecond,
		logger:        logger,
	}
}

// SetEntrySource replaces the source Build compiles, taking effect on the
// next call to Build. Used by the runner to stamp a fresh session id into
// the synthesized entry before each run in a watch-mode sequence.
func (s *Server) SetEntrySource(src string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entrySource = src
}

// SourceMap returns the content of the last successful build's source map
// for the given served path (e.g. "entry.js" -> "entry.js.map"), if the
// configured Builder produced one (§4.6, "source maps retained for
// coverage and stack remapping"). The passthrough builder used when no
// real bundler is wired never produces one, so this reports !ok in that
// case rather than fabricating an identity map.
func (s *Server) SourceMap(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.built[path+".map"]
	if !ok {
		return nil, false
	}
	return f.Content, true
}

// Build runs (or re-runs) a build synchronously and, if the outputs
// differ from the previous successful build, notifies OnChange
// subscribers.
func (s *Server) Build(ctx context.Context) error {
	s.mu.Lock()
	if s.building != nil {
		ch := s.building
		s.mu.Unlock()
		<-ch
		return nil
	}
	building := make(chan struct{})
	s.building = building
	entrySource := s.entrySource
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.building = nil
		s.mu.Unlock()
		close(building)
	}()

	built, err := s.builder.Build(ctx, entrySource)
	if err != nil {
		s.logger.Errorf("bundler", "build failed, keeping prior output: %s", err)
		return err
	}

	s.mu.Lock()
	changed := !sameBuild(s.built, built)
	s.built = built
	s.mu.Unlock()

	if changed {
		s.notifyChange()
	}
	return nil
}

func sameBuild(prev, next map[string]BuiltFile) bool {
	if prev == nil {
		return false
	}
	if len(prev) != len(next) {
		return false
	}
	for path, nf := range next {
		pf, ok := prev[path]
		if !ok || pf.Hash != nf.Hash {
			return false
		}
	}
	return true
}

// OnChange registers a channel that receives a value every time a rebuild
// produces output that differs from the previous one. The runner uses
// this to reload the page (§4.6).
func (s *Server) OnChange() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.changeMu.Lock()
	s.changeSubs = append(s.changeSubs, ch)
	s.changeMu.Unlock()
	return ch
}

func (s *Server) notifyChange() {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()
	for _, ch := range s.changeSubs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Handler returns the HTTP handler serving built artifacts, falling back
// to static assets then the working directory (§6). WebSocket upgrade
// (`/__wrightplay__`) is registered separately by the runner, which owns
// the bridge lifecycle.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	fileServers := []http.Handler{}
	if s.staticDir != "" {
		fileServers = append(fileServers, http.FileServer(http.Dir(s.staticDir)))
	}
	if s.workDir != "" {
		fileServers = append(fileServers, http.FileServer(http.Dir(s.workDir)))
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		s.mu.RLock()
		building := s.building
		s.mu.RUnlock()
		if building != nil {
			<-building
		}

		s.mu.RLock()
		f, ok := s.built[cleanPath(req.URL.Path)]
		s.mu.RUnlock()
		if ok {
			serveBuilt(w, req, f)
			return
		}

		for _, fs := range fileServers {
			if fileExists(fs, req.URL.Path) {
				fs.ServeHTTP(w, req)
				return
			}
		}
		http.NotFound(w, req)
	})

	return r
}

func cleanPath(p string) string {
	p = path.Clean("/" + p)
	return p[1:]
}

func serveBuilt(w http.ResponseWriter, req *http.Request, f BuiltFile) {
	ct := f.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(req.URL.Path))
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	if !hasCharset(ct) {
		ct += "; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("ETag", f.Hash)
	_, _ = w.Write(f.Content)
}

func hasCharset(ct string) bool {
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	_, ok := params["charset"]
	return ok
}

// fileExists probes an http.Handler-backed static file server for whether
// it would serve something other than a 404, without writing to the
// caller's real ResponseWriter.
func fileExists(fs http.Handler, urlPath string) bool {
	rec := &statusRecorder{header: make(http.Header)}
	req, err := http.NewRequest(http.MethodGet, urlPath, nil)
	if err != nil {
		return false
	}
	fs.ServeHTTP(rec, req)
	return rec.status != http.StatusNotFound
}

type statusRecorder struct {
	header http.Header
	status int
	body   []byte
}

func (r *statusRecorder) Header() http.Header { return r.header }
func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body = append(r.body, b...)
	return len(b), nil
}
func (r *statusRecorder) WriteHeader(code int) { r.status = code }
