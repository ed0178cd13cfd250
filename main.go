package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"ScriptInk/internal/config"
	"ScriptInk/internal/engine"
	"ScriptInk/internal/export"
	inknet "ScriptInk/internal/net"
	"ScriptInk/internal/state"
	"ScriptInk/internal/store"
	"ScriptInk/internal/store/sqlite"
	"ScriptInk/internal/ui"
)

const dialTimeout = 10 * time.Second

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Invalid configuration: %v", err)
	}

	var background image.Image
	if cfg.Background != "" {
		background, err = export.LoadBackground(cfg.Background)
		if err != nil {
			config.Exitf("Could not load background: %v", err)
		}
	}

	st, closeStore, err := openStore(&cfg)
	if err != nil {
		config.Exitf("Could not open store: %v", err)
	}
	defer closeStore()

	if cfg.Headless() {
		if err := runHeadless(cfg, st, background); err != nil {
			closeStore()
			config.Exitf("%v", err)
		}
		return
	}

	// The host's own session saves through the server so peers see its ink.
	client, peer := st.(*inknet.Client)
	var host *inknet.Server
	sessStore := st
	if !peer {
		host = inknet.NewServer(st)
		sessStore = host.Store()
	}

	a := ui.NewApp("ScriptInk - " + cfg.Page)
	sess := engine.NewSession(cfg.Page, sessStore,
		engine.WithPost(a.Post),
		engine.WithNotify(a.Notify),
		engine.WithOnChange(a.OnChange),
		engine.WithRouter(engine.WithWheelZoom(cfg.WheelZoom)),
	)

	link := ""
	if peer {
		client.OnLayer(sess.Hydrate)
		go func() {
			<-client.Done()
			// A hang-up we started leaves the bare ErrClosed.
			if err := client.Err(); err != nil && err != store.ErrClosed {
				log.Printf("[CLIENT] Lost host %s: %v", client.Addr(), err)
				a.Post(func() { a.Notify("Disconnected from host") })
			}
		}()
	} else {
		host.OnLayer(sess.Hydrate)
		shutdown, shareLink, err := serve(cfg, host)
		if err != nil {
			config.Exitf("Could not start host: %v", err)
		}
		defer shutdown()
		link = shareLink
	}

	a.Run(sess, ui.NewBoardWidget(background), link)
}

// openStore picks the page store. A peer reads and writes through its host.
// It may rewrite cfg.Page from a share link.
func openStore(cfg *config.Config) (store.Store, func(), error) {
	if cfg.Peer() {
		addr, err := hostAddr(cfg)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		client, err := inknet.Dial(ctx, addr)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[CLIENT] Connected to %s for page %s", addr, cfg.Page)
		return client, func() { _ = client.Close() }, nil
	}

	switch cfg.Store {
	case config.StoreFile:
		f, err := store.OpenFile(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return f, func() {}, nil
	case config.StoreMemory:
		m := store.NewMemory()
		return m, func() { _ = m.Close() }, nil
	default:
		db, err := sqlite.Open(cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	}
}

func hostAddr(cfg *config.Config) (string, error) {
	if cfg.Discover {
		hosts, err := inknet.Browse(cfg.DiscoverTimeout)
		if err != nil {
			return "", err
		}
		if len(hosts) == 0 {
			return "", fmt.Errorf("no hosts found within %s", cfg.DiscoverTimeout)
		}
		log.Printf("[NET] Joining %s at %s", hosts[0].Name, hosts[0].Addr)
		return hosts[0].Addr, nil
	}
	if strings.HasPrefix(cfg.Connect, inknet.LinkScheme+"://") {
		addr, page, err := inknet.ParseLink(cfg.Connect)
		if err != nil {
			return "", err
		}
		if page != "" {
			cfg.Page = page
		}
		return addr, nil
	}
	return cfg.Connect, nil
}

// serve shares the host's store with peers on cfg.Addr and returns the
// share link.
func serve(cfg config.Config, host *inknet.Server) (func(), string, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, "", err
	}
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		_ = ln.Close()
		return nil, "", err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		_ = ln.Close()
		return nil, "", err
	}

	srv := &http.Server{Handler: host.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[HOST] Server stopped: %v", err)
		}
	}()

	ip := inknet.GetOutgoingIP()
	link := inknet.FormatLink(ip, port, cfg.Page)
	log.Printf("[HOST] Serving pages on %s, share %s", ln.Addr(), link)

	stopAdvert := func() {}
	if cfg.Advertise {
		adv, err := inknet.Advertise(port, "page="+cfg.Page)
		if err != nil {
			log.Printf("[NET] mDNS advertisement failed: %v", err)
		} else {
			stopAdvert = func() { _ = adv.Shutdown() }
		}
	}

	return func() {
		stopAdvert()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, link, nil
}

func runHeadless(cfg config.Config, st store.Store, background image.Image) error {
	ctx := context.Background()
	if cfg.List {
		lister, ok := st.(store.Lister)
		if !ok {
			return errors.New("this store cannot list pages")
		}
		pages, err := lister.ListPages(ctx)
		if err != nil {
			return fmt.Errorf("list pages: %w", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PAGE\tSTROKES\tUPDATED")
		for _, p := range pages {
			fmt.Fprintf(w, "%s\t%d\t%s\n", p.ID, p.StrokeCount, p.UpdatedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	}

	page, err := st.Load(ctx, cfg.Page)
	if err != nil {
		return fmt.Errorf("load page %s: %w", cfg.Page, err)
	}
	if cfg.ExportPDF != "" {
		if err := export.ExportPDF(cfg.ExportPDF, page.Layer, background); err != nil {
			return fmt.Errorf("export pdf: %w", err)
		}
		log.Printf("[RENDER] Wrote %s (%d strokes)", cfg.ExportPDF, len(page.Layer))
	}
	if cfg.ExportPNG != "" {
		w, h := export.ContentSize(page.Layer, 24)
		if background != nil {
			w, h = background.Bounds().Dx(), background.Bounds().Dy()
		}
		out, err := os.Create(cfg.ExportPNG)
		if err != nil {
			return fmt.Errorf("export png: %w", err)
		}
		if err := export.WritePNG(out, page.Layer, w, h, state.NewViewport()); err != nil {
			_ = out.Close()
			return fmt.Errorf("export png: %w", err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("export png: %w", err)
		}
		log.Printf("[RENDER] Wrote %s (%dx%d)", cfg.ExportPNG, w, h)
	}
	return nil
}
