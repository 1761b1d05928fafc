package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/livefir/livetree"
	"github.com/livefir/livetree/dom"
	"github.com/livefir/livetree/internal/demo"
	"github.com/livefir/livetree/journal"
	"github.com/livefir/livetree/remote"
	"github.com/livefir/livetree/wire"
	"github.com/tliron/commonlog"
	"go.uber.org/multierr"
)

var log = commonlog.GetLogger("livetree.cmd")

// Serve runs the demo server until interrupted.
func Serve(args []string) (err error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var c common
	c.register(fs)
	addr := fs.String("addr", ":8080", "listen address")
	app := fs.String("app", "page", "app to serve")
	codecName := fs.String("codec", "cbor", "wire codec (cbor or json)")
	idle := fs.Duration("idle", 30*time.Minute, "close sessions without events for this long (0 keeps them)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	config, err := c.load()
	if err != nil {
		return err
	}
	codec, err := wire.CodecFor(*codecName)
	if err != nil {
		return err
	}
	if _, err := demo.New(*app); err != nil {
		return err
	}

	opts := []remote.ServerOption{remote.WithCodec(codec), remote.WithIdleTimeout(*idle)}
	if c.journal != "" {
		j, err := journal.Open(c.journal)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, j.Close()) }()
		opts = append(opts, remote.WithRecorder(j))
	}

	factory := func(r *http.Request) (*livetree.Runtime, error) {
		name := *app
		if q := r.URL.Query().Get("app"); q != "" {
			name = q
		}
		return demo.New(name, livetree.WithConfig(config))
	}

	live := remote.NewServer(factory, opts...)
	mux := http.NewServeMux()
	mux.Handle("/live", live)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *idle > 0 {
		go func() {
			ticker := time.NewTicker(*idle / 2)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := live.Reap(); n > 0 {
						log.Infof("closed %d idle sessions", n)
					}
				}
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}()

	log.Infof("serving %s on %s (codec %s)", *app, *addr, codec.Name())
	fmt.Printf("Serving %s at ws://localhost%s/live\n", *app, *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Render prints the initial HTML of an app.
func Render(args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	var c common
	c.register(fs)
	app := fs.String("app", "page", "app to render")
	if err := fs.Parse(args); err != nil {
		return err
	}

	config, err := c.load()
	if err != nil {
		return err
	}
	rt, err := demo.New(*app, livetree.WithConfig(config))
	if err != nil {
		return err
	}
	defer rt.Close()

	doc := dom.New()
	if err := rt.Rebuild(doc); err != nil {
		return err
	}
	out, err := doc.Minified()
	if err != nil {
		return fmt.Errorf("minify: %w", err)
	}
	fmt.Println(out)
	return nil
}
