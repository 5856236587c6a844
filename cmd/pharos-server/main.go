package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/iamrichardD/pharos/internal/auth"
	"github.com/iamrichardD/pharos/internal/config"
	"github.com/iamrichardD/pharos/internal/log"
	"github.com/iamrichardD/pharos/internal/middleware"
	"github.com/iamrichardD/pharos/internal/session"
	"github.com/iamrichardD/pharos/internal/store"
	"github.com/iamrichardD/pharos/internal/sysutil"
	"github.com/iamrichardD/pharos/internal/version"
)

var (
	ver     = flag.Bool("version", false, "Print the version information and exit")
	verbose = flag.Bool("v", false, "Display verbose status updates to stdout")

	v  bool
	lg *log.Logger
)

func init() {
	flag.Parse()
	if *ver {
		version.PrintVersion(os.Stdout)
		os.Exit(0)
	}
	v = *verbose
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	cb := func(w io.Writer) { version.PrintVersion(w) }
	lg, err = log.NewStderrLogger(cfg.LogFile, cb)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get stderr logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Close()
	if cfg.LogLevel != "" {
		if err := lg.SetLevelString(cfg.LogLevel); err != nil {
			lg.FatalCode(1, "invalid log level", log.KV("level", cfg.LogLevel), log.KVErr(err))
		}
	}

	st := buildStore(cfg, lg)

	am := auth.NewManager(lg)
	if cfg.KeysDir != "" {
		if err := am.Load(cfg.KeysDir); err != nil {
			lg.FatalCode(1, "failed to load authorized keys", log.KV("dir", cfg.KeysDir), log.KVErr(err))
		}
	}

	chain := middleware.NewChain(
		middleware.NewLogging(lg),
		middleware.NewReadOnly(cfg.ReadOnlyLower()),
		middleware.NewSecurityTier(cfg.Tier),
	)

	handler := session.NewHandler(st, am, chain, lg, cfg.IdleTimeout)

	ln, err := net.Listen("tcp", cfg.Bind)
	if err != nil {
		lg.FatalCode(1, "failed to listen", log.KV("bind", cfg.Bind), log.KVErr(err))
	}
	debugout("listening on %s (tier=%s)\n", cfg.Bind, cfg.Tier)

	var wg sync.WaitGroup
	done := make(chan struct{})
	go acceptLoop(ln, handler, &wg, done, lg)

	sysutil.WaitForQuit()
	debugout("shutting down\n")
	close(done)
	ln.Close()

	wch := make(chan struct{})
	go func() {
		wg.Wait()
		close(wch)
	}()
	select {
	case <-wch:
	case <-time.After(1 * time.Second):
		lg.Error("timed out waiting for in-flight sessions to finish")
	}
}

func acceptLoop(ln net.Listener, handler *session.Handler, wg *sync.WaitGroup, done chan struct{}, lg *log.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-done:
				return
			default:
				lg.Error("accept failed", log.KVErr(err))
				return
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler.Serve(conn)
		}()
	}
}

func buildStore(cfg config.Config, lg *log.Logger) store.Store {
	switch cfg.Backend {
	case config.BackendLDAP:
		debugout("using directory-backend store at %s\n", cfg.LDAPURL)
		return store.NewLDAPStore(cfg.LDAPURL, cfg.LDAPBindDN, cfg.LDAPBindPW, cfg.LDAPBaseDN, lg)
	case config.BackendFile:
		debugout("using file-backed store at %s\n", cfg.StoragePath)
		return store.NewFileStore(cfg.StoragePath, lg)
	default:
		debugout("using in-memory store\n")
		return store.NewMemoryStore()
	}
}

func debugout(format string, args ...interface{}) {
	if !v {
		return
	}
	fmt.Printf(format, args...)
}
