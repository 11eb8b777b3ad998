// Package flags holds the flag groups and setup shared by the fieldhouse commands.
package flags

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
	"github.com/williamlsh/logging"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/capture"
	"github.com/atims0208/fieldhouse-beta-sub001/pkg/mqttclient"
)

const (
	configFlagName = "config"
	serviceName    = "fieldhouse"
)

// Join concatenates flag groups.
func Join(groups ...[]cli.Flag) (flags []cli.Flag) {
	for _, v := range groups {
		flags = append(flags, v...)
	}
	return
}

// LoadConfig sets a config file path for app command.
// Note: you can't set any other flags' `Required` value to `true`,
// As it conflicts with this flag. You can set only either this flag or specifically the other flags but not both.
func LoadConfig() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        configFlagName,
			Aliases:     []string{"c"},
			Usage:       "Config file path",
			Value:       "config/config.toml",
			DefaultText: "config/config.toml",
		},
	}
}

// Setup loads the TOML config into flags and returns the command logger.
func Setup(c *cli.Context, flags []cli.Flag, command string) (zerolog.Logger, error) {
	if err := altsrc.InitInputSourceWithContext(
		flags,
		altsrc.NewTomlSourceFromFlagFunc(configFlagName),
	)(c); err != nil {
		return zerolog.Logger{}, err
	}

	logging.Debug(c.Bool("debug"))
	return log.With().Str("service", serviceName).Str("command", command).Logger(), nil
}

// MQTT returns the broker connection flags.
func MQTT(options *mqttclient.ConfigOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "mqtt.server",
			Usage:       "MQTT server address",
			Value:       "tcp://mosquitto:1883",
			DefaultText: "tcp://mosquitto:1883",
			Destination: &options.Server,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "mqtt.clientID",
			Usage:       "MQTT client id",
			Value:       "fieldhouse",
			DefaultText: "fieldhouse",
			Destination: &options.ClientID,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "mqtt.username",
			Usage:       "MQTT broker username",
			Value:       "",
			Destination: &options.Username,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "mqtt.password",
			Usage:       "MQTT broker password",
			Value:       "",
			Destination: &options.Password,
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:        "mqtt.debug",
			Usage:       "Log MQTT client internals",
			Value:       false,
			DefaultText: "false",
			Destination: &options.Debug,
		}),
	}
}

// Topics are the MQTT signaling topics shared by publisher and signal server.
type Topics struct {
	OfferTopic           string
	AnswerTopicPrefix    string
	CandidateTopicPrefix string
	Qos                  uint
	Retained             bool
}

// MQTTTopics returns the MQTT signaling topic flags.
func MQTTTopics(options *Topics) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "mqtt_client.topic_offer",
			Usage:       "MQTT topic for WebRTC SDP offer signaling",
			Value:       "/fieldhouse/signal/offer",
			DefaultText: "/fieldhouse/signal/offer",
			Destination: &options.OfferTopic,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "mqtt_client.topic_answer_prefix",
			Usage:       "MQTT topic prefix for WebRTC SDP answer signaling, answers go to {prefix}/{stream}/{session}",
			Value:       "/fieldhouse/signal/answer",
			DefaultText: "/fieldhouse/signal/answer",
			Destination: &options.AnswerTopicPrefix,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "mqtt_client.topic_candidate_prefix",
			Usage:       "MQTT topic prefix for trickled candidates, candidates go to {prefix}/{stream}/{session}",
			Value:       "/fieldhouse/signal/candidate",
			DefaultText: "/fieldhouse/signal/candidate",
			Destination: &options.CandidateTopicPrefix,
		}),
		altsrc.NewUintFlag(&cli.UintFlag{
			Name:        "mqtt_client.qos",
			Usage:       "MQTT client qos for WebRTC SDP signaling",
			Value:       0,
			DefaultText: "0",
			Destination: &options.Qos,
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:        "mqtt_client.retained",
			Usage:       "MQTT client setting retention for WebRTC SDP signaling",
			Value:       false,
			DefaultText: "false",
			Destination: &options.Retained,
		}),
	}
}

// CaptureSourceFlag is repeated once per capture device spec.
const CaptureSourceFlag = "capture.source"

// Capture returns the capture device flags. Sources are read with
// c.StringSlice(CaptureSourceFlag) since altsrc does not fill slice destinations.
func Capture(options *capture.ConfigOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringSliceFlag(&cli.StringSliceFlag{
			Name:  CaptureSourceFlag,
			Usage: "Capture device spec id=scheme://host:port[/path][?label=], scheme is rtp+h264, rtp+opus, rtsp or rtmp",
			Value: cli.NewStringSlice("camera=rtp+h264://127.0.0.1:5004", "mic=rtp+opus://127.0.0.1:5006"),
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "capture.video",
			Usage:       "Video device id, the first video device when empty",
			Value:       "",
			Destination: &options.VideoDeviceID,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "capture.audio",
			Usage:       "Audio device id, the first audio device when empty",
			Value:       "",
			Destination: &options.AudioDeviceID,
		}),
	}
}
