package broadcast

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"

	"github.com/atims0208/fieldhouse-beta-sub001/cmd/internal/flags"
	"github.com/atims0208/fieldhouse-beta-sub001/internal/broadcast"
	"github.com/atims0208/fieldhouse-beta-sub001/internal/capture"
	"github.com/atims0208/fieldhouse-beta-sub001/internal/hook"
	"github.com/atims0208/fieldhouse-beta-sub001/internal/signaling"
	"github.com/atims0208/fieldhouse-beta-sub001/pkg/mqttclient"
)

const (
	transportHTTP = "http"
	transportMQTT = "mqtt"
)

type sessionConfigOptions struct {
	StreamID  string
	SessionID string
	broadcast.ConfigOptions
}

type webRTCConfigOptions struct {
	ICEServer  string
	Username   string
	Credential string
}

type signalingConfigOptions struct {
	Transport string
	signaling.HTTPConfigOptions
}

// Command returns a broadcast command.
func Command() *cli.Command {
	ctx := context.Background()

	var (
		logger zerolog.Logger

		mc mqtt.Client

		captureConfigOptions   capture.ConfigOptions
		sessionConfigOptions   sessionConfigOptions
		webRTCConfigOptions    webRTCConfigOptions
		signalingConfigOptions signalingConfigOptions
		mqttConfigOptions      mqttclient.ConfigOptions
		topics                 flags.Topics
		hookConfigOptions      hook.ConfigOptions
		metricsAddr            string
	)

	fs := flags.Join(
		flags.LoadConfig(),
		flags.Capture(&captureConfigOptions),
		sessionFlags(&sessionConfigOptions),
		webRTCFlags(&webRTCConfigOptions),
		signalingFlags(&signalingConfigOptions),
		flags.MQTT(&mqttConfigOptions),
		flags.MQTTTopics(&topics),
		hookFlags(&hookConfigOptions),
		metricsFlags(&metricsAddr),
	)

	return &cli.Command{
		Name:  "broadcast",
		Usage: "broadcast publishes capture devices to a signaling endpoint over WebRTC",
		Flags: fs,
		Before: func(c *cli.Context) error {
			var err error
			if logger, err = flags.Setup(c, fs, "broadcast"); err != nil {
				return err
			}
			ctx = logger.WithContext(ctx)

			// MQTT is only needed for MQTT signaling and hook events.
			if signalingConfigOptions.Transport != transportMQTT && hookConfigOptions.HookTopicPrefix == "" {
				return nil
			}
			mc = mqttclient.NewClient(mqttConfigOptions, &logger)
			if err := mqttclient.CheckConnectivity(mc, 3*time.Second); err != nil {
				return err
			}
			ctx = mqttclient.WithContext(ctx, mc)
			return nil
		},
		Action: func(c *cli.Context) error {
			captureConfigOptions.Sources = c.StringSlice(flags.CaptureSourceFlag)
			err := run(ctx, &logger, options{
				capture:   captureConfigOptions,
				session:   sessionConfigOptions,
				webRTC:    webRTCConfigOptions,
				signaling: signalingConfigOptions,
				topics:    topics,
				hook:      hookConfigOptions,
				metrics:   metricsAddr,
			})
			if err != nil {
				logger.Err(err).Msg("broadcast failed")
			}
			return err
		},
		After: func(c *cli.Context) error {
			if mc != nil {
				mc.Disconnect(250)
			}
			logger.Info().Msg("exits")
			return nil
		},
	}
}

type options struct {
	capture   capture.ConfigOptions
	session   sessionConfigOptions
	webRTC    webRTCConfigOptions
	signaling signalingConfigOptions
	topics    flags.Topics
	hook      hook.ConfigOptions
	metrics   string
}

func run(ctx context.Context, logger *zerolog.Logger, opts options) error {
	sources, err := capture.ParseSources(opts.capture.Sources)
	if err != nil {
		return err
	}
	signaler, err := newSignaler(ctx, opts, logger)
	if err != nil {
		return err
	}

	id := signaling.SessionIdentity{StreamID: opts.session.StreamID, SessionID: opts.session.SessionID}
	if id.SessionID == "" {
		id.SessionID = uuid.NewString()
	}
	logger.Info().Str("stream_id", id.StreamID).Str("session_id", id.SessionID).Msg("starting broadcast")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if opts.metrics != "" {
		stopMetrics := serveMetrics(opts.metrics, reg, logger)
		defer stopMetrics()
	}

	hooks := hook.New(mqttclient.FromContext(ctx), opts.hook, logger)
	defer hooks.Wait()

	ended := make(chan struct{})
	var reason error
	callbacks := hooks.Callbacks(id)
	onEnd, onError := callbacks.OnStreamEnd, callbacks.OnStreamError
	callbacks.OnStreamError = func(err error) {
		reason = err
		onError(err)
	}
	callbacks.OnStreamEnd = func() {
		onEnd()
		close(ended)
	}

	controller := broadcast.New(
		opts.session.ConfigOptions,
		capture.NewRegistry(sources, logger),
		signaler,
		logger,
		broadcast.WithCallbacks(callbacks),
		broadcast.WithMetrics(broadcast.NewPrometheusMetrics(reg)),
	)
	defer controller.Close()
	controller.SelectDevices(opts.capture.VideoDeviceID, opts.capture.AudioDeviceID)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := controller.Start(ctx, id, iceServers(opts.webRTC)); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("received stop signal")
		controller.Stop()
		<-ended
		return nil
	case <-ended:
		return reason
	}
}

func newSignaler(ctx context.Context, opts options, logger *zerolog.Logger) (broadcast.Signaler, error) {
	switch opts.signaling.Transport {
	case transportHTTP:
		if opts.signaling.BaseURL == "" {
			return nil, errors.New("signaling.url is required for http signaling")
		}
		return signaling.NewHTTPClient(opts.signaling.HTTPConfigOptions, &http.Client{}, logger), nil
	case transportMQTT:
		return signaling.NewMQTTClient(mqttclient.FromContext(ctx), signaling.MQTTConfigOptions{
			OfferTopic:           opts.topics.OfferTopic,
			AnswerTopicPrefix:    opts.topics.AnswerTopicPrefix,
			CandidateTopicPrefix: opts.topics.CandidateTopicPrefix,
			Qos:                  opts.topics.Qos,
			Retained:             opts.topics.Retained,
		}, logger), nil
	default:
		return nil, errors.New("signaling.transport must be http or mqtt")
	}
}

func iceServers(options webRTCConfigOptions) []broadcast.ICEServer {
	if options.ICEServer == "" {
		return nil
	}
	return []broadcast.ICEServer{
		{
			URLs:       []string{options.ICEServer},
			Username:   options.Username,
			Credential: options.Credential,
		},
	}
}

// serveMetrics serves reg on addr until the returned func is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Err(err).Msg("metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func sessionFlags(options *sessionConfigOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "broadcast.stream_id",
			Usage:       "Stream id the session publishes to",
			Value:       "main",
			DefaultText: "main",
			Destination: &options.StreamID,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "broadcast.session_id",
			Usage:       "Session id, a random uuid when empty",
			Value:       "",
			Destination: &options.SessionID,
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:        "broadcast.signaling_timeout",
			Usage:       "Upper bound of the offer/answer round trip",
			Value:       broadcast.DefaultSignalingTimeout,
			DefaultText: broadcast.DefaultSignalingTimeout.String(),
			Destination: &options.SignalingTimeout,
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:        "broadcast.ice_gathering_timeout",
			Usage:       "Upper bound of the wait for the first local ICE candidate",
			Value:       broadcast.DefaultICEGatheringTimeout,
			DefaultText: broadcast.DefaultICEGatheringTimeout.String(),
			Destination: &options.ICEGatheringTimeout,
		}),
	}
}

func webRTCFlags(options *webRTCConfigOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "webrtc.ice_server",
			Usage:       "ICE server address for webRTC",
			Value:       "stun:stun.l.google.com:19302",
			DefaultText: "stun:stun.l.google.com:19302",
			Destination: &options.ICEServer,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "webrtc.ice_server_username",
			Usage:       "ICE server username",
			Value:       "",
			DefaultText: "",
			Destination: &options.Username,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "webrtc.ice_server_credential",
			Usage:       "ICE server credential",
			Value:       "",
			DefaultText: "",
			Destination: &options.Credential,
		}),
	}
}

func signalingFlags(options *signalingConfigOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "signaling.transport",
			Usage:       "Signaling transport, http or mqtt",
			Value:       transportHTTP,
			DefaultText: transportHTTP,
			Destination: &options.Transport,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "signaling.url",
			Usage:       "Base URL of the signaling endpoint",
			Value:       "http://127.0.0.1:8080",
			DefaultText: "http://127.0.0.1:8080",
			Destination: &options.BaseURL,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "signaling.token",
			Usage:       "Bearer token sent to the signaling endpoint",
			Value:       "",
			Destination: &options.Token,
		}),
	}
}

func hookFlags(options *hook.ConfigOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "hook.topic_prefix",
			Usage:       "MQTT topic prefix for lifecycle events, disabled when empty",
			Value:       "",
			Destination: &options.HookTopicPrefix,
		}),
		altsrc.NewUintFlag(&cli.UintFlag{
			Name:        "hook.qos",
			Usage:       "MQTT qos for lifecycle events",
			Value:       0,
			DefaultText: "0",
			Destination: &options.Qos,
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:        "hook.retained",
			Usage:       "MQTT retention for lifecycle events",
			Value:       false,
			DefaultText: "false",
			Destination: &options.Retained,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "hook.on_start",
			Usage:       "Command run when the stream starts",
			Value:       "",
			Destination: &options.OnStart,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "hook.on_end",
			Usage:       "Command run when the stream ends",
			Value:       "",
			Destination: &options.OnEnd,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "hook.on_error",
			Usage:       "Command run when the stream fails",
			Value:       "",
			Destination: &options.OnError,
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:        "hook.command_timeout",
			Usage:       "Upper bound of a hook command run",
			Value:       30 * time.Second,
			DefaultText: "30s",
			Destination: &options.CommandTimeout,
		}),
	}
}

func metricsFlags(addr *string) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "metrics.addr",
			Usage:       "Address serving /metrics, disabled when empty",
			Value:       "",
			Destination: addr,
		}),
	}
}
