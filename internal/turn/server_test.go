package turn

import (
	"net"
	"testing"

	"github.com/pion/turn/v2"
	"github.com/rs/zerolog"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/pkg/pionlog"
)

func testConfig() ConfigOptions {
	return ConfigOptions{
		Host:         "127.0.0.1",
		PublicIP:     "127.0.0.1",
		Username:     "publisher",
		Password:     "secret",
		Realm:        "fieldhouse",
		RelayMinPort: 40000,
		RelayMaxPort: 49999,
	}
}

func allocate(t *testing.T, addr, username, password string) (net.PacketConn, error) {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	logger := zerolog.Nop()
	client, err := turn.NewClient(&turn.ClientConfig{
		STUNServerAddr: addr,
		TURNServerAddr: addr,
		Conn:           conn,
		Username:       username,
		Password:       password,
		Realm:          "fieldhouse",
		LoggerFactory:  pionlog.New(&logger),
	})
	if err != nil {
		t.Fatalf("could not create client: %v", err)
	}
	t.Cleanup(client.Close)
	if err := client.Listen(); err != nil {
		t.Fatalf("could not listen: %v", err)
	}
	return client.Allocate()
}

func TestRelayAllocates(t *testing.T) {
	logger := zerolog.Nop()
	relay, err := Serve(testConfig(), &logger)
	if err != nil {
		t.Fatalf("could not serve: %v", err)
	}
	defer relay.Close()

	relayConn, err := allocate(t, relay.Addr().String(), "publisher", "secret")
	if err != nil {
		t.Fatalf("could not allocate: %v", err)
	}
	defer relayConn.Close()

	addr, ok := relayConn.LocalAddr().(*net.UDPAddr)
	if !ok {
		t.Fatalf("relay address is %T", relayConn.LocalAddr())
	}
	if !addr.IP.Equal(net.ParseIP("127.0.0.1")) || addr.Port < 40000 || addr.Port > 49999 {
		t.Fatalf("unexpected relay address %s", addr)
	}
}

func TestRelayRejectsUnknownUser(t *testing.T) {
	logger := zerolog.Nop()
	relay, err := Serve(testConfig(), &logger)
	if err != nil {
		t.Fatalf("could not serve: %v", err)
	}
	defer relay.Close()

	if _, err := allocate(t, relay.Addr().String(), "intruder", "secret"); err == nil {
		t.Fatalf("allocation should fail for an unknown user")
	}
}

func TestServeRequiresPublicIP(t *testing.T) {
	cfg := testConfig()
	cfg.PublicIP = ""
	logger := zerolog.Nop()
	if _, err := Serve(cfg, &logger); err == nil {
		t.Fatalf("serve should fail without a public ip")
	}
}
