// Package main runs a dead-reckoning navigation session from a config file.
package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	goutils "go.viam.com/utils"

	"github.com/macro-rover/navigator/components/movementsensor"
	// registered sensor models
	_ "github.com/macro-rover/navigator/components/movementsensor/fake"
	_ "github.com/macro-rover/navigator/components/movementsensor/mpu6050"
	"github.com/macro-rover/navigator/config"
	"github.com/macro-rover/navigator/logging"
	"github.com/macro-rover/navigator/services/navigation"
	"github.com/macro-rover/navigator/services/navigation/publish"
	"github.com/macro-rover/navigator/utils"
)

var logger = logging.NewLogger("navigator")

func main() {
	goutils.ContextualMain(mainWithArgs, logger.AsZap())
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,required,usage=navigator config file (.json, .yaml or .yml)"`
	Duration   string `flag:"duration,usage=stop after this long (e.g. 30s); runs until interrupted if unset"`
	Summary    bool   `flag:"summary,usage=print a session summary on exit"`
	Debug      bool   `flag:"debug,usage=enable debug logging"`
}

func mainWithArgs(ctx context.Context, args []string, _ *zap.SugaredLogger) error {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg, err := config.Read(argsParsed.ConfigFile)
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.Level())
	if argsParsed.Debug {
		logger.SetLevel(logging.DEBUG)
	}

	var runFor time.Duration
	if argsParsed.Duration != "" {
		if runFor, err = time.ParseDuration(argsParsed.Duration); err != nil {
			return errors.Wrap(err, "invalid duration")
		}
	}

	goutils.ContextMainReadyFunc(ctx)()
	return run(ctx, cfg, runOptions{runFor: runFor, summary: argsParsed.Summary, out: os.Stdout}, logger)
}

type runOptions struct {
	runFor  time.Duration
	summary bool
	out     io.Writer
}

func run(ctx context.Context, cfg *config.Config, opts runOptions, logger logging.Logger) (err error) {
	sensor, err := movementsensor.New(ctx, cfg.Sensor.Model, cfg.Sensor.Attributes, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, sensor.Close(context.Background()))
	}()

	estimator, err := navigation.NewPoseEstimator(ctx, cfg.EstimatorConfig(sensor), logger.Sublogger("estimator"))
	if err != nil {
		return err
	}

	publisher, hub, err := publish.FromConfig(cfg.Publish, logger.Sublogger("publish"))
	if err != nil {
		return err
	}
	sessionOpts := []navigation.SessionOption{
		navigation.WithLogger(logger),
		navigation.WithReportWriter(opts.out),
	}
	if publisher != nil {
		defer func() {
			err = multierr.Combine(err, publisher.Close())
		}()
		sessionOpts = append(sessionOpts, navigation.WithPublisher(publisher))
	}

	if hub != nil {
		var stop func() error
		if stop, err = serveWebsocket(cfg.Publish.Websocket, hub, logger); err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, stop())
		}()
	}

	session, err := navigation.NewSession(estimator, sessionOpts...)
	if err != nil {
		return err
	}

	runCtx := ctx
	if opts.runFor > 0 {
		var cancel func()
		runCtx, cancel = context.WithTimeout(ctx, opts.runFor)
		defer cancel()
	}
	if err := session.RunContinuousUpdate(runCtx, cfg.UpdateConfig()); err != nil {
		return err
	}

	if !opts.summary {
		return nil
	}
	summary, err := session.Summary()
	if err != nil {
		return err
	}
	return summary.Render(opts.out)
}

// serveWebsocket serves the hub until the returned stop function is called.
func serveWebsocket(cfg *publish.WebsocketConfig, hub *publish.WebsocketHub, logger logging.Logger) (func() error, error) {
	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot listen on %s", cfg.Address)
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, hub)
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger.Infow("serving pose feed", "address", "ws://"+listener.Addr().String()+cfg.Path)
	workers := utils.NewWorkers(context.Background(), logger)
	workers.Go("websocket server", func(ctx context.Context) {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("websocket server stopped", "error", err)
		}
	})
	return func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		workers.Stop()
		return err
	}, nil
}
