/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Seednode/promptbox/games"
	"github.com/Seednode/promptbox/imagegen"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

type game struct {
	store   *games.Store
	hub     *games.Hub
	archive *imagegen.Archive
}

func newGame(cfg *Config) (*game, error) {
	var (
		archive *imagegen.Archive
		err     error
	)

	if cfg.archiveDir != "" {
		archive, err = imagegen.NewArchive(cfg.archiveDir, cfg.archiveCompress)
		if err != nil {
			return nil, err
		}
	}

	client, err := imagegen.New(imagegen.Options{
		APIKey:  cfg.apiKey,
		BaseURL: cfg.baseURL,
		Count:   cfg.imageCount,
		Size:    cfg.imageSize,
		Model:   cfg.imageModel,
		Archive: archive,
		Logf:    logger(cfg),
	})
	if err != nil {
		return nil, err
	}

	logf(cfg, "IMAGES: Generating %d images per prompt", client.Count())

	orch := games.NewOrchestrator(client, games.OrchestratorOptions{
		Placeholder: imagegen.Placeholder(),
		Limit:       cfg.maxConcurrent,
		Logf:        logger(cfg),
		Reason:      imagegen.Reason,
	})

	store := games.NewStore()

	return &game{
		store: store,
		hub: games.NewHub(store, games.HubOptions{
			Orchestrator:       orch,
			AllowStageOverride: cfg.allowOverride,
			IdleTimeout:        cfg.sessionTimeout,
			Logf:               logger(cfg),
		}),
		archive: archive,
	}, nil
}

func (g *game) close() error {
	if g.archive == nil {
		return nil
	}

	return g.archive.Close()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWebSocket(cfg *Config, hub *games.Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: upgrading connection from %s: %v", realIP(r), err)
			return
		}

		logf(cfg, "SERVE: WebSocket opened by %s", realIP(r))

		hub.ServeConn(conn)
	}
}

func corsHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", cfg.corsOrigin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Vary", "Origin")
}

// serveImages returns the cached images for one player as a JSON array,
// or null if that player has none.
func serveImages(cfg *Config, store *games.Store, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		user := p.ByName("user")

		images, _ := store.Images(user)

		body, err := json.Marshal(images)
		if err != nil {
			errs <- err

			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		securityHeaders(cfg, w)
		corsHeaders(cfg, w)

		written, err := w.Write(body)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Images for %q (%s) to %s in %s",
			user,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveImagesPreflight(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		corsHeaders(cfg, w)
		w.Header().Set("Access-Control-Max-Age", "3600")
		w.WriteHeader(http.StatusNoContent)
	}
}

// serveQR renders a QR code pointing at the game, for players joining
// from their phones.
func serveQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/"

		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			errs <- err

			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		securityHeaders(cfg, w)

		_, err = w.Write(png)
		if err != nil {
			errs <- err

			return
		}
	}
}

// registerGame sets up routes so that:
//   - $prefix/ws            → WebSocket for the room
//   - $prefix/images/:user  → cached images for one player
//   - $prefix/qr            → PNG QR code for the game URL
func registerGame(cfg *Config, g *game, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/ws", serveWebSocket(cfg, g.hub))

	mux.GET(cfg.prefix+"/images/:user", serveImages(cfg, g.store, errs))
	mux.OPTIONS(cfg.prefix+"/images/:user", serveImagesPreflight(cfg))

	mux.GET(cfg.prefix+"/qr", serveQR(cfg, errs))
}
