package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/recera/dicomview/internal/config"
	"github.com/recera/dicomview/internal/study"
	"github.com/recera/dicomview/pkg/live"
	"github.com/recera/dicomview/pkg/viewer"
)

// watchDebounce coalesces bursts of file events, e.g. a whole exam copied in
const watchDebounce = 100 * time.Millisecond

func newServeCommand(configDir *string) *cobra.Command {
	var (
		port    int
		host    string
		studies string
		static  string
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve DICOM exams and the browser viewer",
		Long: `Serves the exams found under the study directory, the browser viewer assets,
and live viewer sessions at /live/{session}?exam={id}.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(*configDir)

			// CLI takes precedence
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if studies != "" {
				cfg.Server.StudyDir = studies
			}
			if static != "" {
				cfg.Server.StaticDir = static
			}
			if noWatch {
				cfg.Server.Watch = false
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().StringVarP(&host, "host", "H", "localhost", "Host to bind to")
	cmd.Flags().StringVar(&studies, "studies", "", "Study directory (one sub-directory per exam)")
	cmd.Flags().StringVar(&static, "static", "", "Directory with index.html, app.wasm and wasm_exec.js")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not rescan the study directory on changes")

	return cmd
}

type server struct {
	cfg     *config.Config
	library *study.Library
	live    *live.Server
}

func newServer(cfg *config.Config) (*server, error) {
	lib, err := study.Open(cfg.Server.StudyDir)
	if err != nil {
		return nil, err
	}
	log.Printf("📂 %d exam(s) in %s", len(lib.Exams()), cfg.Server.StudyDir)

	if cfg.Live.Debug {
		logFn := func(args ...interface{}) { log.Println(args...) }
		viewer.SetDebugLog(logFn)
		live.SetDebugLog(logFn)
	}

	s := &server{
		cfg:     cfg,
		library: lib,
		live: live.NewServer(live.Options{
			CallTimeout:  cfg.Live.CallTimeout,
			PingInterval: cfg.Live.PingInterval,
			Viewer:       cfg.ViewerOptions(),
			Exams:        lib.URLs,
		}),
	}
	return s, nil
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/exams", s.handleExams)
	mux.HandleFunc("GET /api/exams/{id}", s.handleExam)
	mux.HandleFunc("GET /files/{exam}/{file}", s.handleFile)
	mux.HandleFunc("/live/", s.live.HandleWebSocket)
	mux.HandleFunc("/", s.serveStatic)
	return mux
}

func (s *server) close() {
	s.live.Close()
	if err := s.library.Close(); err != nil {
		log.Printf("⚠️  Closing study watcher: %v", err)
	}
}

func runServe(cfg *config.Config) error {
	s, err := newServer(cfg)
	if err != nil {
		return err
	}
	defer s.close()

	if cfg.Server.Watch {
		s.library.OnChange(func(ids []string) {
			log.Printf("🔄 Exams updated: %s", strings.Join(ids, ", "))
		})
		if err := s.library.Watch(watchDebounce); err != nil {
			log.Printf("⚠️  File watching disabled: %v", err)
		}
	}

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: s.routes(),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("🛑 Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Printf("✨ dicomview running at http://%s", cfg.Addr())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("❌ Encoding response: %v", err)
	}
}

func (s *server) handleExams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.library.Exams())
}

type examResponse struct {
	ID   string   `json:"id"`
	URLs []string `json:"urls"`
}

func (s *server) handleExam(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	urls, err := s.library.URLs(id)
	if err != nil {
		http.Error(w, "Exam not found", http.StatusNotFound)
		return
	}
	writeJSON(w, examResponse{ID: id, URLs: urls})
}

func (s *server) handleFile(w http.ResponseWriter, r *http.Request) {
	path, err := s.library.Resolve(r.PathValue("exam"), r.PathValue("file"))
	switch {
	case errors.Is(err, study.ErrInvalidPath):
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	case err != nil:
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/dicom")
	http.ServeFile(w, r, path)
}

func (s *server) serveStatic(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	// Security: prevent directory traversal
	if strings.Contains(path, "..") {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	filePath := filepath.Join(s.cfg.Server.StaticDir, strings.TrimPrefix(path, "/"))
	content, err := os.ReadFile(filePath)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	switch filepath.Ext(filePath) {
	case ".html":
		w.Header().Set("Content-Type", "text/html")
	case ".js":
		w.Header().Set("Content-Type", "application/javascript")
	case ".css":
		w.Header().Set("Content-Type", "text/css")
	case ".wasm":
		w.Header().Set("Content-Type", "application/wasm")
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(content)
}
