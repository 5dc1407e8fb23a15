// Command kakimaild is the server's entrypoint: it loads configuration,
// opens the store, and runs every listener (plain IMAP, implicit-TLS IMAP,
// the delivery API, and the auth socket) side by side, the way the
// teacher's cmd/server/main.go runs its two bare listener loops, but
// gathered under one errgroup (spec.md §2 ambient stack). The group has no
// shared context: a listener that fails does not stop the others, and Wait
// returns only after every listener has returned.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"kakimail/internal/archive"
	"kakimail/internal/authsocket"
	"kakimail/internal/conf"
	"kakimail/internal/deliveryapi"
	"kakimail/internal/session"
	"kakimail/internal/store"
	"kakimail/internal/wire"
)

func main() {
	dbPath := flag.String("db", "", "override the configured SQLite path")
	flag.Parse()

	cfg, err := conf.LoadConfig()
	if err != nil {
		log.Fatalf("kakimaild: %v", err)
	}
	if *dbPath != "" {
		cfg.SQLitePath = *dbPath
	}

	st, err := store.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("kakimaild: open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	archiver, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		log.Fatalf("kakimaild: archive: %v", err)
	}

	deps := session.Deps{
		Store:    st,
		Logger:   log.Default(),
		Archiver: archiver,
	}

	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			log.Fatalf("kakimaild: load TLS keypair: %v", err)
		}
		deps.TLS = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	var g errgroup.Group

	g.Go(func() error {
		return serveIMAP(cfg.ListenAddr, false, deps)
	})

	if deps.TLS != nil {
		g.Go(func() error {
			return serveIMAP(cfg.TLSListenAddr, true, deps)
		})
	} else {
		log.Println("kakimaild: no TLS certificate configured, implicit-TLS listener disabled")
	}

	if cfg.DeliveryAPI.ListenAddr != "" {
		g.Go(func() error {
			api := deliveryapi.NewServer(st, cfg.DeliveryAPI.JWTKey)
			log.Printf("kakimaild: delivery API listening on %s", cfg.DeliveryAPI.ListenAddr)
			return http.ListenAndServe(cfg.DeliveryAPI.ListenAddr, api.Handler())
		})
	}

	g.Go(func() error {
		sock := authsocket.NewServer("/var/run/kakimail/auth.sock", st)
		return sock.Start()
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("kakimaild: %v", err)
	}
}

// serveIMAP runs the accept loop for one listener, handing every accepted
// connection to a fresh session.Session the way the teacher's
// imapServer.HandleConnection/HandleSSLConnection split did, except both
// plain and implicit-TLS listeners share the same session.New path, with
// isTLS only changing whether wire.Stream reports itself as already
// encrypted, in which case STARTTLS replies OK without a second handshake
// (spec.md §4.B).
func serveIMAP(addr string, isTLS bool, deps session.Deps) error {
	var ln net.Listener
	var err error
	if isTLS {
		ln, err = tls.Listen("tcp", addr, deps.TLS)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return err
	}
	defer ln.Close()

	log.Printf("kakimaild: IMAP listening on %s (tls=%v)", addr, isTLS)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go session.New(wire.New(conn, isTLS), deps).Run()
	}
}
