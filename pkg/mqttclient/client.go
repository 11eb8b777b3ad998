// Package mqttclient builds the paho MQTT clients shared by the publisher, the hooks and
// the signal server, and carries one through a context.
package mqttclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const clientKey = contextKey("mqtt_client")

// Client options.
const (
	writeTimeout = 1 * time.Second
	pingTimeout  = 10 * time.Second
)

var errConnectTimeout = errors.New("timed out connecting to broker")

// ConfigOptions is config options for an MQTT client.
type ConfigOptions struct {
	Server   string
	ClientID string
	Username string
	Password string
	// Debug routes paho's internal logs into the logger.
	Debug bool
}

// NewClient returns an unconnected client. ClientID gets a random suffix so that
// several processes may share one configuration.
func NewClient(config ConfigOptions, logger *zerolog.Logger) mqtt.Client {
	l := logger.With().Str("component", "MQTTClient").Logger()
	if config.Debug {
		mqtt.ERROR = pahoLogger{l, zerolog.ErrorLevel}
		mqtt.CRITICAL = pahoLogger{l, zerolog.ErrorLevel}
		mqtt.WARN = pahoLogger{l, zerolog.WarnLevel}
		mqtt.DEBUG = pahoLogger{l, zerolog.DebugLevel}
	}

	opts := mqtt.NewClientOptions()

	// The following options are set in addition to package defaults.
	opts.AddBroker(config.Server)
	opts.SetClientID(config.ClientID + "-" + uuid.NewString())

	// Handlers may block on ICE gathering, ordered delivery would stall the router.
	opts.SetOrderMatters(false)
	opts.SetCleanSession(false)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		l.Info().Str("topic", msg.Topic()).Msg("received a missed message")
	})
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		l.Warn().Err(err).Msg("connection lost")
	}
	opts.OnReconnecting = func(mqtt.Client, *mqtt.ClientOptions) {
		l.Info().Msg("attempting to reconnect")
	}
	opts.OnConnect = func(mqtt.Client) {
		l.Info().Str("server", config.Server).Msg("client connected to broker")
	}

	opts.WriteTimeout = writeTimeout
	opts.PingTimeout = pingTimeout

	// Keep trying to connect and reconnect when the network drops.
	opts.ConnectRetry = true

	return mqtt.NewClient(opts)
}

// CheckConnectivity connects client and fails when no connection is made within timeout.
func CheckConnectivity(client mqtt.Client, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w after %s", errConnectTimeout, timeout)
	}
	return token.Error()
}

// WithContext returns a copy of ctx carrying client.
func WithContext(ctx context.Context, client mqtt.Client) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

// FromContext returns the MQTT client stored in context. If no such client exists, it returns nil.
func FromContext(ctx context.Context) mqtt.Client {
	if client, ok := ctx.Value(clientKey).(mqtt.Client); ok {
		return client
	}
	return nil
}

// pahoLogger implements mqtt.Logger at one zerolog level.
type pahoLogger struct {
	logger zerolog.Logger
	level  zerolog.Level
}

func (p pahoLogger) Println(v ...interface{}) {
	p.logger.WithLevel(p.level).Msg(fmt.Sprint(v...))
}

func (p pahoLogger) Printf(format string, v ...interface{}) {
	p.logger.WithLevel(p.level).Msgf(format, v...)
}
