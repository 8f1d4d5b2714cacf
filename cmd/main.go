// mtevent - multi-touch input event record tool
// Decodes 16-byte input event streams and synthesizes tap gestures
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mtevent/internal/api"
	"mtevent/internal/config"
	"mtevent/internal/event"
	"mtevent/internal/format"
	"mtevent/internal/gesture"
	"mtevent/internal/network"
	"mtevent/internal/osutils"
	"mtevent/internal/stream"
)

var (
	version = "0.1.0"

	decodePath = flag.String("decode", "", "Decode a record stream from `path` (- for stdin)")
	outFormat  = flag.String("format", "", "Output format: text or json")
	lenient    = flag.Bool("lenient", false, "Drop a partial trailing record instead of failing")
	only       = flag.String("only", "", "Comma-separated code names to keep (e.g. MT_POSITION_X,MT_POSITION_Y)")

	doTap    = flag.Bool("tap", false, "Write a synthesized tap gesture")
	tapX     = flag.Uint("x", 0, "Tap X coordinate (default from config)")
	tapY     = flag.Uint("y", 0, "Tap Y coordinate (default from config)")
	pressure = flag.Uint("pressure", 0, "Tap pressure (default from config)")
	count    = flag.Int("count", 1, "Number of taps to write")
	outPath  = flag.String("o", "-", "Write the tap stream to `path` (- for stdout)")
	force    = flag.Bool("force", false, "Write binary output even when stdout is a terminal")

	serve   = flag.Bool("serve", false, "Run the HTTP/WebSocket server")
	port    = flag.Int("port", 0, "Server port (default from config)")
	watch   = flag.String("watch", "", "Print records streamed by the server at `host:port`")
	token   = flag.String("token", "", "API token for -serve and -watch")
	cfgPath = flag.String("config", "", "Configuration file (.json, .yaml or .yml)")

	initConfig = flag.Bool("init-config", false, "Write the effective configuration and exit")
	quiet      = flag.Bool("quiet", false, "Suppress diagnostic logging")
	showVer    = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("mtevent version %s\n", version)
		return
	}

	if *quiet {
		log.SetOutput(io.Discard)
	}

	// Initialize config
	var cfgMgr *config.Manager
	if *cfgPath != "" {
		cfgMgr = config.NewManagerAt(*cfgPath)
	} else {
		m, err := config.NewManager()
		if err != nil {
			log.Fatalf("Failed to initialize config: %v", err)
		}
		cfgMgr = m
	}
	if err := cfgMgr.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := applyFlags(cfgMgr); err != nil {
		log.Fatalf("Invalid options: %v", err)
	}

	// Handle --init-config flag
	if *initConfig {
		if err := cfgMgr.Save(); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}
		fmt.Printf("Wrote %s\n", cfgMgr.Path())
		return
	}

	switch {
	case *serve:
		runServer(cfgMgr)
	case *watch != "":
		runWatch(cfgMgr, *watch)
	case *doTap:
		runTapMode(cfgMgr)
	default:
		path := *decodePath
		if path == "" {
			path = "-"
			if flag.NArg() > 0 {
				path = flag.Arg(0)
			}
		}
		runDecodeMode(cfgMgr, path)
	}
}

// applyFlags overrides config values with the flags given on the command line
func applyFlags(cfgMgr *config.Manager) error {
	cfg := cfgMgr.Get()

	var err error
	setUint32 := func(name string, v uint, dst *uint32) {
		if v > math.MaxUint32 {
			if err == nil {
				err = fmt.Errorf("-%s: %d exceeds %d", name, v, uint32(math.MaxUint32))
			}
			return
		}
		*dst = uint32(v)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "format":
			cfg.Decode.Format = strings.ToLower(*outFormat)
		case "lenient":
			cfg.Decode.Lenient = *lenient
		case "only":
			cfg.Decode.Only = splitCodes(*only)
		case "x":
			setUint32(f.Name, *tapX, &cfg.Gesture.X)
		case "y":
			setUint32(f.Name, *tapY, &cfg.Gesture.Y)
		case "pressure":
			setUint32(f.Name, *pressure, &cfg.Gesture.Pressure)
		case "port":
			cfg.Server.Port = *port
		case "token":
			cfg.Server.Token = *token
		}
	})
	if err != nil {
		return err
	}

	return cfgMgr.Set(cfg)
}

func splitCodes(s string) []string {
	var names []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func runDecodeMode(cfgMgr *config.Manager, path string) {
	in := os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("Failed to open %s: %v", path, err)
		}
		defer f.Close()
		in = f
	}

	n, err := decodeStream(cfgMgr.Get().Decode, in, os.Stdout)
	if err != nil {
		log.Fatalf("Decode failed after %d records: %v", n, err)
	}
	log.Printf("Decoded %d records from %s", n, path)
}

// decodeStream prints every record of r to w and returns the number of records read
func decodeStream(dc config.DecodeConfig, r io.Reader, w io.Writer) (int, error) {
	filter, err := format.ParseFilter(dc.Only)
	if err != nil {
		return 0, err
	}
	p, err := format.New(dc.Format, w)
	if err != nil {
		return 0, err
	}
	p = format.Filtered(p, filter)

	var opts []stream.DecoderOption
	if dc.Lenient {
		opts = append(opts, stream.WithLenientTail())
	}

	dec := stream.NewDecoder(r, opts...)
	for rec, err := range dec.Records() {
		if err != nil {
			p.Flush()
			return dec.Count(), err
		}
		if err := p.Print(rec); err != nil {
			return dec.Count(), err
		}
	}
	return dec.Count(), p.Flush()
}

func runTapMode(cfgMgr *config.Manager) {
	out := os.Stdout
	if *outPath != "-" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *outPath, err)
		}
		defer f.Close()
		out = f
	} else if osutils.IsTerminal(os.Stdout) && !*force {
		log.Fatalf("Refusing to write binary records to a terminal; redirect output, use -o or pass -force")
	}

	g := cfgMgr.Get().Gesture
	n, err := writeTaps(g.NewGenerator(), g.DefaultTap(), *count, out)
	if err != nil {
		log.Fatalf("Failed to write taps: %v", err)
	}
	log.Printf("Wrote %d records (%d tap(s) at %d, %d)", n, *count, g.X, g.Y)
}

// writeTaps encodes count taps to w and returns the number of records written
func writeTaps(gen *gesture.Generator, tap gesture.Tap, count int, w io.Writer) (int, error) {
	if count < 1 {
		return 0, fmt.Errorf("count must be positive, got %d", count)
	}

	enc := stream.NewEncoder(w)
	for i := 0; i < count; i++ {
		recs, err := gen.Tap(tap)
		if err != nil {
			return enc.Count(), fmt.Errorf("tap %d: %w", i, err)
		}
		for _, rec := range recs {
			if err := enc.Encode(rec); err != nil {
				return enc.Count(), err
			}
		}
	}
	return enc.Count(), enc.Flush()
}

func runServer(cfgMgr *config.Manager) {
	server := api.NewServer(cfgMgr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfgMgr.Get().Server.Port)
	}()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Println("mtevent server running. Press Ctrl+C to stop.")
	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("API server error: %v", err)
		}
	case <-sigCh:
		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}
}

func runWatch(cfgMgr *config.Manager, addr string) {
	cfg := cfgMgr.Get()
	p, err := format.New(cfg.Decode.Format, os.Stdout)
	if err != nil {
		log.Fatalf("Invalid format: %v", err)
	}
	filter, err := format.ParseFilter(cfg.Decode.Only)
	if err != nil {
		log.Fatalf("Invalid filter: %v", err)
	}
	p = format.Filtered(p, filter)

	wsClient := network.NewWSClient(addr, cfg.Server.Token)
	wsClient.OnRecord = func(source string, rec event.Record) {
		if err := p.Print(rec); err != nil {
			log.Printf("Watch: Failed to print record: %v", err)
		}
	}
	wsClient.OnError = func(source string, msg string) {
		p.Flush()
	}
	wsClient.OnEnd = func(source string, n int) {
		p.Flush()
		log.Printf("Watch: %s finished with %d records", source, n)
	}
	wsClient.Start()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		wsClient.Close()
	}()

	if err := wsClient.Wait(); err != nil && !errors.Is(err, network.ErrClosed) {
		log.Printf("Watch error: %v", err)
	}
	// The client loop has exited, so no callback touches p any more
	p.Flush()
}
