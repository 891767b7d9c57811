package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/recera/dicomview/internal/config"
	"github.com/recera/dicomview/internal/study"
	"github.com/recera/dicomview/internal/tui"
	"github.com/recera/dicomview/pkg/toolkit"
	"github.com/recera/dicomview/pkg/toolkit/native"
	"github.com/recera/dicomview/pkg/viewer"
)

func newViewCommand(configDir *string) *cobra.Command {
	var (
		serverURL string
		exam      string
		logFile   string
	)

	cmd := &cobra.Command{
		Use:   "view [files, directories or URLs...]",
		Short: "Browse a DICOM stack in the terminal",
		Long: `Loads a stack of DICOM images and browses it in the terminal. Sources are
files, directories (their DICOM files in name order) or http(s) URLs.
With --server and --exam the stack is fetched from a running dicomview serve.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(*configDir)

			// The TUI owns the terminal
			var logOut io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}
			log.SetOutput(logOut)
			defer log.SetOutput(os.Stderr)

			sources, err := expandSources(args)
			if err != nil {
				return err
			}

			loader := &native.SourceLoader{}
			title := "dicomview"
			if serverURL != "" {
				base, err := url.Parse(serverURL)
				if err != nil {
					return fmt.Errorf("invalid --server: %w", err)
				}
				loader.BaseURL = base
				if exam != "" {
					urls, err := fetchExam(cmd.Context(), base, exam)
					if err != nil {
						return err
					}
					sources = append(urls, sources...)
					title = "dicomview · " + exam
				}
			}

			if len(sources) == 0 {
				return fmt.Errorf("no DICOM sources given")
			}

			c, err := cfg.OpenCache()
			if err != nil {
				log.Printf("⚠️  Payload cache disabled: %v", err)
			} else if c != nil {
				defer c.Close()
				loader.Cache = c
			}

			return runView(cfg, title, loader, sources)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Base URL of a dicomview server, resolves /files/... sources")
	cmd.Flags().StringVar(&exam, "exam", "", "Exam id to fetch from --server")
	cmd.Flags().StringVar(&logFile, "log", "", "Write logs to this file")

	return cmd
}

func runView(cfg *config.Config, title string, loader native.Loader, sources []string) error {
	tk := native.New(loader)
	surface := toolkit.SurfaceID("terminal")
	view := viewer.NewMemoryView()

	ctrl := viewer.New(tk, surface, view, cfg.ViewerOptions())
	defer ctrl.Close()
	if err := ctrl.Init(); err != nil {
		return err
	}
	ctrl.LoadImages(sources)

	model := tui.NewModel(title, ctrl, view, func() (toolkit.Viewport, error) {
		return tk.GetViewport(surface)
	})
	return tui.Run(model)
}

// expandSources replaces directories by their DICOM files in name order
func expandSources(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		if strings.Contains(arg, "://") {
			out = append(out, arg)
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var files []string
		for _, entry := range entries {
			path := filepath.Join(arg, entry.Name())
			if !entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") && study.IsDICOM(path) {
				files = append(files, path)
			}
		}
		sort.Strings(files)
		out = append(out, files...)
	}
	return out, nil
}

// fetchExam asks a dicomview server for the URLs of an exam
func fetchExam(ctx context.Context, base *url.URL, exam string) ([]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	u := base.ResolveReference(&url.URL{
		Path:    "/api/exams/" + exam,
		RawPath: "/api/exams/" + url.PathEscape(exam),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch exam %s: %w", exam, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch exam %s: %s", exam, resp.Status)
	}
	var body examResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode exam %s: %w", exam, err)
	}
	return body.URLs, nil
}
