//go:build js && wasm
// +build js,wasm

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"syscall/js"

	"github.com/recera/dicomview/pkg/debug"
	"github.com/recera/dicomview/pkg/live"
	"github.com/recera/dicomview/pkg/toolkit"
	"github.com/recera/dicomview/pkg/toolkit/cornerstone"
	"github.com/recera/dicomview/pkg/viewer"
	"github.com/recera/dicomview/pkg/viewer/dom"
)

var (
	document js.Value
	window   js.Value
)

// pageConfig is read from window.dicomviewConfig, then from the query string
type pageConfig struct {
	Mode  string   `json:"mode"` // "local" (default) or "live"
	Exam  string   `json:"exam"`
	URLs  []string `json:"urls"`
	Debug bool     `json:"debug"`
}

func main() {
	document = js.Global().Get("document")
	window = js.Global().Get("window")

	log.Println("🚀 dicomview WASM client starting...")

	if document.Get("readyState").String() != "loading" {
		go onReady()
	} else {
		var ready js.Func
		ready = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
			go onReady()
			ready.Release()
			return nil
		})
		document.Call("addEventListener", "DOMContentLoaded", ready)
	}

	// Keep the WASM runtime alive
	select {}
}

func readConfig() pageConfig {
	var cfg pageConfig
	if v := window.Get("dicomviewConfig"); !v.IsUndefined() && !v.IsNull() {
		raw := js.Global().Get("JSON").Call("stringify", v).String()
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			log.Printf("❌ Invalid dicomviewConfig: %v", err)
		}
	}

	query, _ := url.ParseQuery(strings.TrimPrefix(window.Get("location").Get("search").String(), "?"))
	if cfg.Exam == "" {
		cfg.Exam = query.Get("exam")
	}
	if cfg.Mode == "" {
		cfg.Mode = query.Get("mode")
	}
	if query.Get("debug") != "" {
		cfg.Debug = true
	}
	return cfg
}

func onReady() {
	cfg := readConfig()
	if cfg.Debug {
		debug.EnableLogging()
	}

	el := dom.Lookup(dom.DefaultIDs)
	view := dom.NewView(el)

	if cfg.Mode == "live" {
		runLive(cfg, el, view)
		return
	}
	runLocal(cfg, el, view)
}

// runLocal runs the viewer in the page
func runLocal(cfg pageConfig, el dom.Elements, view *dom.View) {
	urls := cfg.URLs
	if len(urls) == 0 && cfg.Exam != "" {
		var err error
		urls, err = fetchExam(cfg.Exam)
		if err != nil {
			log.Printf("❌ %v", err)
		}
	}

	ctrl := viewer.New(cornerstone.New(), el.Surface(), view, nil)
	if err := ctrl.Init(); err != nil {
		log.Printf("❌ Viewer init failed: %v", err)
		return
	}
	dom.Bind(ctrl, el)
	ctrl.LoadImages(urls)
	log.Printf("✅ Local viewer ready with %d image(s)", len(urls))
}

// runLive hands the viewer to the server and executes its commands here
func runLive(cfg pageConfig, el dom.Elements, view *dom.View) {
	surface := el.Surface()
	exec := &live.Executor{
		Toolkit: cornerstone.New(),
		View:    view,
		Surface: func(id string) (toolkit.Surface, error) {
			if id != surface.ID {
				return nil, fmt.Errorf("surface %s: %w", id, toolkit.ErrSurfaceNotEnabled)
			}
			return surface, nil
		},
	}

	client := live.NewClient(liveURL(cfg.Exam), exec)
	release := dom.Bind(client.Actions(), el)
	client.OnReady(func(id string) {
		log.Printf("✅ Live session %s ready", id)
	})
	client.OnClose(func() {
		release()
		view.SetStatus("❌ Connection lost")
	})
	if err := client.Connect(); err != nil {
		log.Printf("❌ Live connection failed: %v", err)
	}
}

func liveURL(exam string) string {
	loc := window.Get("location")
	scheme := "ws"
	if loc.Get("protocol").String() == "https:" {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: loc.Get("host").String(), Path: "/live/"}
	if exam != "" {
		u.RawQuery = url.Values{"exam": {exam}}.Encode()
	}
	return u.String()
}

// fetchExam asks the server for the URLs of an exam
func fetchExam(exam string) ([]string, error) {
	origin := window.Get("location").Get("origin").String()
	resp, err := http.Get(origin + "/api/exams/" + url.PathEscape(exam))
	if err != nil {
		return nil, fmt.Errorf("fetch exam %s: %w", exam, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch exam %s: %s", exam, resp.Status)
	}
	var body struct {
		URLs []string `json:"urls"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode exam %s: %w", exam, err)
	}
	return body.URLs, nil
}
