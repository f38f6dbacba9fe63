package main

import (
	"context"
	"errors"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Tyrowin/roomchat/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "roomchat",
		Short: "Real-time multi-room chat server",
		Long: `roomchat serves named chat rooms over WebSocket. Rooms expire a fixed
time after creation and are swept periodically once expired or empty.

Every flag can also be set through the environment, e.g. PORT=5000.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), server.LoadConfig(v))
		},
	}

	flags := cmd.Flags()
	flags.String("port", "", "port or address to listen on (env PORT)")
	flags.String("allowed-origins", "", "comma-separated WebSocket origins, * for any (env ALLOWED_ORIGINS)")
	flags.Int64("max-message-size", 0, "maximum inbound frame size in bytes (env MAX_MESSAGE_SIZE)")
	flags.Duration("room-lifetime", 0, "how long a room lives after creation (env ROOM_LIFETIME)")
	flags.Duration("sweep-interval", 0, "period between expired room sweeps (env SWEEP_INTERVAL)")

	bind := map[string]string{
		server.KeyPort:           "port",
		server.KeyAllowedOrigins: "allowed-origins",
		server.KeyMaxMessageSize: "max-message-size",
		server.KeyRoomLifetime:   "room-lifetime",
		server.KeySweepInterval:  "sweep-interval",
	}
	for key, name := range bind {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			log.Fatalf("bind flag %s: %v", name, err)
		}
	}

	return cmd
}

func run(ctx context.Context, cfg *server.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log.Println("Starting room chat server...")

	srv := server.New(cfg)
	srv.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	wait := gfshutdown.GracefulShutdown(
		ctx,
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"room-chat-server": func(context.Context) error {
				return srv.Shutdown()
			},
		},
	)

	// ListenAndServe returns nil only once the shutdown operation has closed it.
	if err := <-errCh; err != nil {
		return errors.Join(err, srv.Shutdown())
	}

	exitCode := <-wait
	log.Printf("Server exited with code: %d", exitCode)
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}
