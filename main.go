// Command autodrive runs the auto-driving vehicle simulation.
//
// Commands:
//  1. "server" (default) runs the HTTP server exposing the REST API, WebSocket and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "console" runs the interactive menu
//  4. "run" and "watch" play a scenario file as text or on a terminal screen
//
// Settings come from autodrive.json, AUTODRIVE_* environment variables and flags,
// with flags taking precedence.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/autodrive/api"
	"github.com/wricardo/mcp-training/autodrive/console"
	"github.com/wricardo/mcp-training/autodrive/logging"
	"github.com/wricardo/mcp-training/autodrive/settings"
	"github.com/wricardo/mcp-training/autodrive/sim/config"
	"github.com/wricardo/mcp-training/autodrive/sim/engine"
	"github.com/wricardo/mcp-training/autodrive/sim/render"
	"github.com/wricardo/mcp-training/autodrive/sim/service"
	"github.com/wricardo/mcp-training/autodrive/sim/session"
	"github.com/wricardo/mcp-training/autodrive/transport/mcp"
	"github.com/wricardo/mcp-training/autodrive/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Autodrive Simulation"
)

const (
	sessionCleanupInterval = time.Hour
	shutdownTimeout        = 10 * time.Second
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "autodrive",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "settings", Usage: "Path to a settings file (default: ./" + settings.FileName + " if present)"},
			&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port"},
			&cli.StringFlag{Name: "scenarios-dir", Usage: "Directory containing scenario files"},
			&cli.StringFlag{Name: "storage", Usage: "Session storage: file or sqlite"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn, error"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token (or NGROK_AUTHTOKEN)", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain"},
		},
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Run the HTTP server with REST API, WebSocket and MCP endpoint",
				Action: serverAction,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run an MCP stdio server backed by the REST API",
				Action:  mcpAction,
			},
			{
				Name:   "console",
				Usage:  "Run the interactive simulation menu",
				Action: consoleAction,
			},
			{
				Name:      "run",
				Usage:     "Run a scenario file and print the report",
				ArgsUsage: "<scenario.json>",
				Action:    runAction,
			},
			{
				Name:      "watch",
				Usage:     "Replay a scenario file on the terminal",
				ArgsUsage: "<scenario.json>",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "delay", Usage: "Time between ticks"},
				},
				Action: watchAction,
			},
		},
		Action: serverAction,
	}
}

// loadSettings resolves settings and applies flags that were set explicitly
func loadSettings(cmd *cli.Command) (*settings.Settings, error) {
	s, err := settings.Load(cmd.String("settings"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		s.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		s.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("scenarios-dir") {
		s.ScenariosDir = cmd.String("scenarios-dir")
	}
	if cmd.IsSet("storage") {
		s.StorageType = cmd.String("storage")
	}
	if cmd.IsSet("log-level") {
		s.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("ngrok") {
		s.NgrokEnabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-domain") {
		s.NgrokDomain = cmd.String("ngrok-domain")
	}
	if cmd.IsSet("delay") {
		s.ReplayDelay = cmd.Duration("delay")
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func newLogger(s *settings.Settings, console io.Writer) (*zap.SugaredLogger, error) {
	return logging.New(logging.Options{
		Level:   s.LogLevel,
		File:    s.LogFile,
		Console: console,
	})
}

// services bundles what the server and mcp commands share
type services struct {
	simulation service.SimulationService
	sessions   *session.Manager
	closer     io.Closer
}

func (s *services) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// initializeServices wires persistence, session and scenario managers and the
// simulation service
func initializeServices(s *settings.Settings, log *zap.SugaredLogger) (*services, error) {
	scenarios, err := config.NewManager(s.ScenariosDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario manager: %w", err)
	}

	var persistence session.SessionPersistence
	var closer io.Closer
	switch s.StorageType {
	case settings.StorageSQLite:
		sp, err := session.NewSQLitePersistence(s.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		persistence, closer = sp, sp
	default:
		fp, err := session.NewFilePersistence(s.SessionsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		persistence = fp
	}

	sessions := session.NewManagerWithPersistence(persistence, log.Named("session"))
	if err := sessions.LoadPersistedSessions(); err != nil {
		log.Warnw("failed to load persisted sessions", "error", err)
	}

	return &services{
		simulation: service.NewSimulationService(sessions, scenarios, log.Named("service")),
		sessions:   sessions,
		closer:     closer,
	}, nil
}

func serverAction(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(s, os.Stderr)
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	svc, err := initializeServices(s, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runHTTPServer(ctx, s, svc, cmd.String("ngrok-auth"), log)
}

// newRouter combines the REST API with an /mcp endpoint proxying back to it
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// runHTTPServer serves until ctx is cancelled. When ngrok is enabled it also
// serves the same router through a public tunnel.
func runHTTPServer(ctx context.Context, s *settings.Settings, svc *services, ngrokAuth string, log *zap.SugaredLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub(log.Named("websocket"))
	go hub.Run(ctx)

	go svc.sessions.RunCleanup(ctx, sessionCleanupInterval, session.DefaultMaxIdle)

	addr := s.Addr()
	apiServer := api.NewServer(svc.simulation, hub, log.Named("api"))
	mainRouter := newRouter(apiServer, mcp.NewClient("http://"+addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Infow("HTTP server listening",
			"addr", addr,
			"api", fmt.Sprintf("http://%s/api", addr),
			"websocket", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr),
			"mcp", fmt.Sprintf("http://%s/mcp", addr))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	if s.NgrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, mainRouter, ngrokAuth, s.NgrokDomain, log.Named("ngrok"))
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnw("HTTP server shutdown error", "error", err)
	}
	if err := svc.sessions.SaveAllSessions(); err != nil {
		log.Warnw("failed to save sessions on shutdown", "error", err)
	}

	wg.Wait()
	log.Info("server stopped")

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	default:
		return nil
	}
}

func runNgrokTunnel(ctx context.Context, handler http.Handler, authToken, domain string, log *zap.SugaredLogger) {
	if authToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Errorw("failed to start ngrok tunnel", "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Warnw("failed to close ngrok tunnel", "error", err)
		}
	}()

	url := tun.URL()
	log.Infow("ngrok tunnel established", "url", url, "api", url+"/api", "mcp", url+"/mcp")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Warnw("ngrok server error", "error", err)
	}
	log.Info("ngrok tunnel closed")
}

// mcpAction serves MCP over stdio. It reuses an API already listening on the
// configured address; otherwise it starts an internal one on a loopback port.
func mcpAction(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol
	log, err := newLogger(s, os.Stderr)
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	baseURL := "http://" + s.Addr()
	if !apiAvailable(baseURL) {
		log.Infow("no external API server found, starting internal HTTP server", "checked", baseURL)

		svc, err := initializeServices(s, log)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		internalURL, err := startInternalServer(ctx, svc, log)
		if err != nil {
			return err
		}
		baseURL = internalURL
	}

	log.Infow("MCP stdio server ready", "api", baseURL)
	if err := mcp.NewClient(baseURL).ServeStdio(); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func apiAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// startInternalServer serves the API on a random loopback port until ctx is done
func startInternalServer(ctx context.Context, svc *services, log *zap.SugaredLogger) (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to get available port: %w", err)
	}

	hub := websocket.NewHub(log.Named("websocket"))
	go hub.Run(ctx)
	go svc.sessions.RunCleanup(ctx, sessionCleanupInterval, session.DefaultMaxIdle)

	httpServer := &http.Server{Handler: api.NewServer(svc.simulation, hub, log.Named("api"))}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("internal HTTP server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	return "http://" + listener.Addr().String(), nil
}

func consoleAction(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	// Keep the menu readable: logs go to the file only
	log, err := newLogger(s, io.Discard)
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	return console.New(os.Stdin, os.Stdout, log.Named("console")).Run()
}

func scenarioArg(cmd *cli.Command) (*engine.Scenario, error) {
	if cmd.Args().Len() != 1 {
		return nil, fmt.Errorf("expected exactly one scenario file, got %d arguments", cmd.Args().Len())
	}
	return engine.LoadScenario(cmd.Args().First())
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	scenario, err := scenarioArg(cmd)
	if err != nil {
		return err
	}
	return runScenario(scenario, os.Stdout)
}

// runScenario prints the vehicle list, then every tick and the final report
// as the simulation produces them
func runScenario(scenario *engine.Scenario, out io.Writer) error {
	eng, err := scenario.NewEngine()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Field: %s\n%s", scenario.Field, render.VehicleList(scenario.Vehicles))

	reporter := render.NewTextReporter(out)
	eng.AddObserver(reporter)

	result, err := eng.Run()
	if err != nil {
		return err
	}
	reporter.Final(result.Final)
	return nil
}

func watchAction(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	scenario, err := scenarioArg(cmd)
	if err != nil {
		return err
	}
	eng, err := scenario.NewEngine()
	if err != nil {
		return err
	}
	result, err := eng.Run()
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer screen.Fini()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = render.Replay(ctx, screen, result, s.ReplayDelay)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
