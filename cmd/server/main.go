package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"starconquest.ai/internal/persistence/docstore"
	"starconquest.ai/internal/sim/multigame"
	"starconquest.ai/internal/sim/tuning"
	"starconquest.ai/internal/transport/ws"
)

func main() {
	// Optional .env next to the binary; real environment wins.
	_ = godotenv.Load()

	var (
		addr       = flag.String("addr", envString("SC_ADDR", ":8080"), "http listen address")
		dataDir    = flag.String("data", envString("SC_DATA_DIR", "./data"), "runtime data directory")
		tuningPath = flag.String("tuning", envString("SC_TUNING", ""), "path to tuning.yaml (optional)")
		storeKind  = flag.String("store", envString("SC_STORE", "sqlite"), "document store: sqlite|memory")
		dbPath     = flag.String("db", envString("SC_DB", ""), "sqlite path (default: <data>/games.sqlite)")
		tickEvery  = flag.Duration("deadline_interval", envDuration("SC_DEADLINE_INTERVAL", time.Second), "how often turn time limits are checked")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune := tuning.Defaults()
	if tp := strings.TrimSpace(*tuningPath); tp != "" {
		t, err := tuning.Load(tp)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = t
	}

	store, err := openStore(*storeKind, *dbPath, *dataDir)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer store.Close()

	mgr, err := multigame.NewManager(multigame.Config{
		Store:   store,
		Rules:   tune,
		DataDir: *dataDir,
		Logger:  log.New(os.Stdout, "[games] ", log.LstdFlags|log.Lmicroseconds),
	})
	if err != nil {
		logger.Fatalf("game manager: %v", err)
	}
	defer mgr.Close()

	ctx, cancel := signalContext()
	defer cancel()

	go runDeadlines(ctx, mgr, *tickEvery, logger)

	wsSrv := ws.NewServer(mgr, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newRouter(mgr, wsSrv.Handler(), logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (store=%s)", *addr, *storeKind)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func openStore(kind, dbPath, dataDir string) (docstore.Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "memory":
		return docstore.NewMemory(), nil
	case "", "sqlite":
		if dbPath == "" {
			dbPath = filepath.Join(dataDir, "games.sqlite")
		}
		return docstore.OpenSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}

// runDeadlines forces resolution of games whose turn time limit ran out.
func runDeadlines(ctx context.Context, mgr *multigame.Manager, every time.Duration, logger *log.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			ids, err := mgr.CheckDeadlines(ctx, now)
			if err != nil {
				logger.Printf("deadline check: %v", err)
				continue
			}
			for _, id := range ids {
				logger.Printf("game %s: turn time limit reached, resolved", id)
			}
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
