package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/inventa-dev/inventa/internal/importdata"
	"github.com/inventa-dev/inventa/internal/mcp"
	"github.com/inventa-dev/inventa/internal/metrics"
	"github.com/inventa-dev/inventa/internal/store"
)

const defaultDB = "inventa.db"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "init":
		cmdInit(os.Args[2:])
	case "serve":
		cmdServe(os.Args[2:])
	case "import":
		cmdImport(os.Args[2:])
	case "list":
		cmdList(os.Args[2:])
	case "stats":
		cmdStats(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `inventa - users/products dataset served over MCP

Usage:
  inventa <command> [flags]

Commands:
  init     Create, initialize, and seed the database
  serve    Start the server (http, sse, or stdio transport)
  import   Bulk-import users and products from a JSON file
  list     List users and products
  stats    Show aggregate dataset statistics

Environment variables:
  INVENTA_DB       Database path (default: %s)
  INVENTA_ADDR     Server address (default: :8080)
  INVENTA_SECRET   Shared API key (generated and logged if unset)
  INVENTA_DEBUG    Enable debug logging (any non-empty value)
  METRICS_PROMETHEUS  Enable the Prometheus exporter (any non-empty value)
  METRICS_ADDR        Metrics listen address (default: :9090)

Run 'inventa <command> --help' for more information.
`, defaultDB)
}

// --- init ---

func cmdInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path")
	noSeed := fs.Bool("no-seed", false, "Skip sample data")
	fs.Parse(args)

	path := resolve(*dbPath, "INVENTA_DB", defaultDB)

	st, err := store.Open(path)
	if err != nil {
		fatal("init: %v", err)
	}
	defer st.Close()

	if !*noSeed {
		if err := st.Seed(context.Background()); err != nil {
			fatal("seed: %v", err)
		}
	}
	fmt.Printf("Database initialized at %s\n", path)
}

// --- serve ---

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path")
	addr := fs.String("addr", "", "Listen address")
	secret := fs.String("secret", "", "Shared API key (generated if empty)")
	transport := fs.String("transport", "http", "Transport: http, sse, or stdio")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	path := resolve(*dbPath, "INVENTA_DB", defaultDB)
	listenAddr := resolve(*addr, "INVENTA_ADDR", ":8080")
	apiKey := resolve(*secret, "INVENTA_SECRET", "")

	if !*debug && os.Getenv("INVENTA_DEBUG") != "" {
		*debug = true
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Auth is never silently disabled: with no configured secret the
	// server mints one and logs it so the operator can hand it out.
	if apiKey == "" {
		apiKey = mcp.GenerateSecret()
		slog.Warn("no API key configured; generated one for this run", "api_key", apiKey)
	}

	metrics.InitFromEnv()

	st, err := store.Open(path)
	if err != nil {
		fatal("serve: %v", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := st.Seed(ctx); err != nil {
		fatal("seed: %v", err)
	}

	dispatcher := mcp.NewDispatcher(st, &mcp.Authenticator{Secret: apiKey})

	switch *transport {
	case "stdio":
		slog.Info("server starting", "transport", "stdio", "db", path, "debug", *debug)
		if err := mcp.NewStdioTransport(dispatcher).Run(ctx); err != nil && ctx.Err() == nil {
			fatal("serve: %v", err)
		}
	case "http", "sse":
		// One listener carries both the POST endpoint and the SSE push
		// stream; sse mode additionally announces the stream endpoint.
		server := &http.Server{Addr: listenAddr, Handler: mcp.NewServer(dispatcher)}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()

		slog.Info("server starting",
			"transport", *transport,
			"addr", listenAddr,
			"db", path,
			"debug", *debug,
		)
		if *transport == "sse" {
			slog.Info("sse stream ready", "endpoint", "http://"+hostAddr(listenAddr)+"/sse")
		}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("serve: %v", err)
		}
	default:
		fatal("serve: unknown transport %q (want http, sse, or stdio)", *transport)
	}
}

// --- import ---

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path")
	file := fs.String("file", "", "Path to JSON seed file (required)")
	fs.Parse(args)

	path := resolve(*dbPath, "INVENTA_DB", defaultDB)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		fs.Usage()
		os.Exit(1)
	}

	content, err := os.ReadFile(*file)
	if err != nil {
		fatal("read file: %v", err)
	}
	f, err := importdata.Parse(content)
	if err != nil {
		fatal("import: %v", err)
	}

	st, err := store.Open(path)
	if err != nil {
		fatal("open db: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	for _, nu := range f.Users {
		if _, err := st.CreateUser(ctx, nu); err != nil {
			fatal("import user %q: %v", nu.Email, err)
		}
	}
	for _, np := range f.Products {
		if _, err := st.CreateProduct(ctx, np); err != nil {
			fatal("import product %q: %v", np.Name, err)
		}
	}
	fmt.Printf("Imported %d users and %d products from %s\n", len(f.Users), len(f.Products), *file)
}

// --- list ---

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path")
	kind := fs.String("kind", "all", "What to list: users, products, or all")
	fs.Parse(args)

	path := resolve(*dbPath, "INVENTA_DB", defaultDB)

	st, err := store.Open(path)
	if err != nil {
		fatal("open db: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	if *kind == "users" || *kind == "all" {
		users, err := st.ListUsers(ctx)
		if err != nil {
			fatal("list users: %v", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tAGE\tPHONE")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, optNum(u.Age), optText(u.Phone))
		}
		w.Flush()
		fmt.Printf("\n%d users\n", len(users))
	}

	if *kind == "products" || *kind == "all" {
		products, err := st.ListProducts(ctx)
		if err != nil {
			fatal("list products: %v", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK")
		for _, p := range products {
			fmt.Fprintf(w, "%d\t%s\t%.2f\t%d\n", p.ID, p.Name, p.Price, p.StockQuantity)
		}
		w.Flush()
		fmt.Printf("\n%d products\n", len(products))
	}
}

// --- stats ---

func cmdStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path")
	fs.Parse(args)

	path := resolve(*dbPath, "INVENTA_DB", defaultDB)

	st, err := store.Open(path)
	if err != nil {
		fatal("open db: %v", err)
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		fatal("stats: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Users\t%d\n", stats.TotalUsers)
	fmt.Fprintf(w, "Products\t%d\n", stats.TotalProducts)
	fmt.Fprintf(w, "Inventory value\t%.2f\n", stats.TotalInventoryValue)
	w.Flush()
}

// --- helpers ---

// resolve returns the flag value if non-empty, otherwise the env var, otherwise the default.
func resolve(flagVal, envKey, def string) string {
	if flagVal != "" {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return def
}

// hostAddr makes a bare ":8080" listen address printable as a URL host.
func hostAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func optText(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func optNum(n *int64) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *n)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
