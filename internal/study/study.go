// Package study serves a directory of DICOM exams. Each sub-directory of the
// root is an exam; its DICOM files, sorted by name, are the image stack.
package study

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FilesPrefix is the URL path under which exam files are served
const FilesPrefix = "/files/"

var (
	// ErrExamNotFound is returned for an unknown exam id
	ErrExamNotFound = errors.New("study: exam not found")
	// ErrInvalidPath is returned when a file reference escapes its exam
	ErrInvalidPath = errors.New("study: invalid path")
)

// dicmMagic sits after the 128 byte preamble of a Part 10 file
var dicmMagic = []byte("DICM")

// Exam is one study folder
type Exam struct {
	ID      string    `json:"id"`
	Files   []string  `json:"files"`
	Updated time.Time `json:"updated"`
}

// Library indexes the exams under a root directory
type Library struct {
	root string

	mu    sync.RWMutex
	exams map[string]*Exam

	watcher  *fsnotify.Watcher
	onChange func(ids []string)
	stopCh   chan struct{}
	done     chan struct{}
}

// Open scans root. A missing root is created empty.
func Open(root string) (*Library, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create study dir: %w", err)
	}
	l := &Library{
		root:  root,
		exams: make(map[string]*Exam),
	}
	if _, err := l.Rescan(); err != nil {
		return nil, err
	}
	return l, nil
}

// Root returns the library directory
func (l *Library) Root() string {
	return l.root
}

// Rescan rebuilds the index and returns the ids of exams that were added,
// removed or changed
func (l *Library) Rescan() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("read study dir: %w", err)
	}

	exams := make(map[string]*Exam)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		exam, err := scanExam(filepath.Join(l.root, entry.Name()))
		if err != nil {
			log.Printf("[Study] ⚠️  Skipping %s: %v", entry.Name(), err)
			continue
		}
		exams[exam.ID] = exam
	}

	l.mu.Lock()
	changed := diff(l.exams, exams)
	l.exams = exams
	l.mu.Unlock()
	return changed, nil
}

func scanExam(dir string) (*Exam, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	exam := &Exam{ID: filepath.Base(dir)}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !IsDICOM(path) {
			continue
		}
		exam.Files = append(exam.Files, entry.Name())
		if info, err := entry.Info(); err == nil && info.ModTime().After(exam.Updated) {
			exam.Updated = info.ModTime()
		}
	}
	sort.Strings(exam.Files)
	return exam, nil
}

func diff(old, cur map[string]*Exam) []string {
	var ids []string
	for id, exam := range cur {
		prev, ok := old[id]
		if !ok || !prev.Updated.Equal(exam.Updated) || strings.Join(prev.Files, "/") != strings.Join(exam.Files, "/") {
			ids = append(ids, id)
		}
	}
	for id := range old {
		if _, ok := cur[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// IsDICOM reports whether path holds a DICOM file: a .dcm/.dicom extension
// or the DICM marker after the preamble
func IsDICOM(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dcm", ".dicom":
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 132)
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head[128:], dicmMagic)
}

// Exams returns the exam ids in sorted order
func (l *Library) Exams() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.exams))
	for id := range l.exams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Exam returns a copy of an exam
func (l *Library) Exam(id string) (Exam, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	exam, ok := l.exams[id]
	if !ok {
		return Exam{}, fmt.Errorf("%q: %w", id, ErrExamNotFound)
	}
	cp := *exam
	cp.Files = append([]string(nil), exam.Files...)
	return cp, nil
}

// URLs returns the file URLs of an exam in display order. It satisfies the
// live server's exam resolver.
func (l *Library) URLs(id string) ([]string, error) {
	exam, err := l.Exam(id)
	if err != nil {
		return nil, err
	}
	urls := make([]string, len(exam.Files))
	for i, name := range exam.Files {
		urls[i] = FileURL(exam.ID, name)
	}
	return urls, nil
}

// FileURL is the served URL of a file in an exam
func FileURL(exam, file string) string {
	return FilesPrefix + url.PathEscape(exam) + "/" + url.PathEscape(file)
}

// Resolve maps an exam id and file name to a path on disk. Names that would
// leave the exam directory are rejected.
func (l *Library) Resolve(examID, file string) (string, error) {
	for _, part := range []string{examID, file} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) || strings.Contains(part, "..") {
			return "", fmt.Errorf("%q: %w", part, ErrInvalidPath)
		}
	}

	exam, err := l.Exam(examID)
	if err != nil {
		return "", err
	}
	i := sort.SearchStrings(exam.Files, file)
	if i == len(exam.Files) || exam.Files[i] != file {
		return "", fmt.Errorf("%s/%s: %w", examID, file, os.ErrNotExist)
	}
	return filepath.Join(l.root, examID, file), nil
}

// OnChange sets the handler called after a watched change was rescanned
func (l *Library) OnChange(fn func(ids []string)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Watch rescans the library when files change. Bursts of events within
// debounce are coalesced into one rescan.
func (l *Library) Watch(debounce time.Duration) error {
	if l.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create study watcher: %w", err)
	}
	if err := watcher.Add(l.root); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", l.root, err)
	}
	for _, id := range l.Exams() {
		if err := watcher.Add(filepath.Join(l.root, id)); err != nil {
			log.Printf("[Study] ⚠️  Cannot watch %s: %v", id, err)
		}
	}

	l.watcher = watcher
	l.stopCh = make(chan struct{})
	l.done = make(chan struct{})
	go l.watchLoop(debounce)
	log.Printf("[Study] 👀 Watching %s", l.root)
	return nil
}

func (l *Library) watchLoop(debounce time.Duration) {
	defer close(l.done)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					l.watcher.Add(event.Name)
				}
			}
			pending = true
			timer.Reset(debounce)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			log.Println("[Study] Watcher error:", err)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			changed, err := l.Rescan()
			if err != nil {
				log.Printf("[Study] ❌ Rescan failed: %v", err)
				continue
			}
			if len(changed) == 0 {
				continue
			}
			log.Printf("[Study] 🔄 %d exam(s) changed: %s", len(changed), strings.Join(changed, ", "))
			l.mu.RLock()
			fn := l.onChange
			l.mu.RUnlock()
			if fn != nil {
				fn(changed)
			}

		case <-l.stopCh:
			return
		}
	}
}

// Close stops watching
func (l *Library) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.stopCh)
	err := l.watcher.Close()
	<-l.done
	l.watcher = nil
	return err
}
