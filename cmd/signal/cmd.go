package signal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"

	"github.com/atims0208/fieldhouse-beta-sub001/cmd/internal/flags"
	"github.com/atims0208/fieldhouse-beta-sub001/internal/signalserver"
	"github.com/atims0208/fieldhouse-beta-sub001/pkg/mqttclient"
)

// Command returns a signal command.
func Command() *cli.Command {
	ctx := context.Background()

	var (
		logger zerolog.Logger

		mc mqtt.Client

		configOptions     signalserver.ConfigOptions
		mqttConfigOptions mqttclient.ConfigOptions
		topics            flags.Topics
		enableMQTT        bool
	)

	fs := flags.Join(
		flags.LoadConfig(),
		serverFlags(&configOptions.ServerConfigOptions),
		webRTCFlags(&configOptions.WebRTCConfigOptions),
		authFlags(&configOptions.AuthConfigOptions),
		rateLimitFlags(&configOptions.RateLimitConfigOptions),
		flags.MQTT(&mqttConfigOptions),
		flags.MQTTTopics(&topics),
		[]cli.Flag{
			altsrc.NewBoolFlag(&cli.BoolFlag{
				Name:        "signal_server.enable_mqtt",
				Usage:       "Also answer offers relayed through MQTT",
				Value:       false,
				DefaultText: "false",
				Destination: &enableMQTT,
			}),
		},
	)

	return &cli.Command{
		Name:  "signal",
		Usage: "signal runs a signaling endpoint answering publishers with a receive-only peer",
		Flags: fs,
		Subcommands: []*cli.Command{
			tokenCommand(),
		},
		Before: func(c *cli.Context) error {
			var err error
			if logger, err = flags.Setup(c, fs, "signal"); err != nil {
				return err
			}
			ctx = logger.WithContext(ctx)

			if !enableMQTT {
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
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			s, err := signalserver.New(configOptions, reg, &logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if client := mqttclient.FromContext(ctx); client != nil {
				frontend := signalserver.NewMQTTFrontend(s, client, signalserver.MQTTConfigOptions{
					OfferTopic:           topics.OfferTopic,
					AnswerTopicPrefix:    topics.AnswerTopicPrefix,
					CandidateTopicPrefix: topics.CandidateTopicPrefix,
					Qos:                  topics.Qos,
					Retained:             topics.Retained,
				})
				if err := frontend.Signal(ctx); err != nil {
					return err
				}
			}
			return s.ListenAndServe(ctx)
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

func tokenCommand() *cli.Command {
	var (
		secret   string
		streamID string
		ttl      time.Duration
	)
	return &cli.Command{
		Name:  "token",
		Usage: "token prints an HS256 publisher token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "secret",
				Usage:       "HMAC secret shared with the signal server",
				EnvVars:     []string{"FIELDHOUSE_SECRET"},
				Destination: &secret,
			},
			&cli.StringFlag{
				Name:        "stream",
				Usage:       "Stream id granted by the token, every stream when empty",
				Destination: &streamID,
			},
			&cli.DurationFlag{
				Name:        "ttl",
				Usage:       "Token lifetime, no expiry when zero",
				Value:       24 * time.Hour,
				DefaultText: "24h",
				Destination: &ttl,
			},
		},
		Action: func(c *cli.Context) error {
			if secret == "" {
				return errors.New("secret is required")
			}
			token, err := signalserver.NewToken([]byte(secret), streamID, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func serverFlags(options *signalserver.ServerConfigOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "signal_server.host",
			Usage:       "Host of webRTC signaling server",
			Value:       "0.0.0.0",
			DefaultText: "0.0.0.0",
			Destination: &options.Host,
		}),
		altsrc.NewIntFlag(&cli.IntFlag{
			Name:        "signal_server.port",
			Usage:       "Port of webRTC signaling server",
			Value:       8080,
			DefaultText: "8080",
			Destination: &options.Port,
		}),
	}
}

func webRTCFlags(options *signalserver.WebRTCConfigOptions) []cli.Flag {
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
			Destination: &options.Username,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "webrtc.ice_server_credential",
			Usage:       "ICE server credential",
			Value:       "",
			Destination: &options.Credential,
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:        "webrtc.gathering_timeout",
			Usage:       "Upper bound of ICE gathering before answering",
			Value:       5 * time.Second,
			DefaultText: "5s",
			Destination: &options.GatheringTimeout,
		}),
	}
}

func authFlags(options *signalserver.AuthConfigOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "auth.secret",
			Usage:       "HMAC secret of HS256 publisher tokens, auth is disabled without secret and public key",
			Value:       "",
			EnvVars:     []string{"FIELDHOUSE_SECRET"},
			Destination: &options.Secret,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "auth.public_key_file",
			Usage:       "OpenSSH ed25519 public key verifying EdDSA publisher tokens",
			Value:       "",
			Destination: &options.PublicKeyFile,
		}),
	}
}

func rateLimitFlags(options *signalserver.RateLimitConfigOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewFloat64Flag(&cli.Float64Flag{
			Name:        "rate_limit.candidates_per_second",
			Usage:       "Candidates accepted per session and second, unlimited when zero",
			Value:       20,
			DefaultText: "20",
			Destination: &options.CandidatesPerSecond,
		}),
		altsrc.NewIntFlag(&cli.IntFlag{
			Name:        "rate_limit.burst",
			Usage:       "Candidate burst per session",
			Value:       40,
			DefaultText: "40",
			Destination: &options.Burst,
		}),
	}
}
