package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/guardvision/guardvision/internal/monitor/core"
)

// CONNACK reason codes that mean the credentials themselves were refused.
const (
	reasonBadUserNameOrPassword = 0x86
	reasonNotAuthorized         = 0x87
	reasonBadAuthMethod         = 0x8C
)

// BrokerVerifier accepts an operator when the MQTT broker accepts a CONNECT with
// the same credentials. The probe connection is closed immediately.
type BrokerVerifier struct {
	brokerURL          *url.URL
	clientIDPrefix     string
	timeout            time.Duration
	insecureSkipVerify bool

	seq atomic.Uint64
}

var _ core.Verifier = (*BrokerVerifier)(nil)

// NewBrokerVerifier probes brokerURL (tcp, mqtt, tls, ssl or mqtts).
func NewBrokerVerifier(brokerURL, clientIDPrefix string, timeout time.Duration, insecureSkipVerify bool) (*BrokerVerifier, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	switch u.Scheme {
	case "tcp", "mqtt", "tls", "ssl", "mqtts":
	default:
		return nil, fmt.Errorf("broker verifier does not support scheme %q", u.Scheme)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BrokerVerifier{
		brokerURL:          u,
		clientIDPrefix:     clientIDPrefix,
		timeout:            timeout,
		insecureSkipVerify: insecureSkipVerify,
	}, nil
}

func (v *BrokerVerifier) Verify(ctx context.Context, identifier, secret string) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	conn, err := v.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial broker %s: %w", v.brokerURL.Host, err)
	}
	defer conn.Close()

	client := paho.NewClient(paho.ClientConfig{Conn: conn})
	ack, err := client.Connect(ctx, &paho.Connect{
		ClientID:     fmt.Sprintf("%s-login-%d", v.clientIDPrefix, v.seq.Add(1)),
		KeepAlive:    30,
		CleanStart:   true,
		Username:     identifier,
		UsernameFlag: true,
		Password:     []byte(secret),
		PasswordFlag: true,
	})
	if ack != nil && ack.ReasonCode >= 0x80 {
		switch ack.ReasonCode {
		case reasonBadUserNameOrPassword, reasonNotAuthorized, reasonBadAuthMethod:
			return fmt.Errorf("%w: broker reason code 0x%02X", core.ErrAuthenticationRejected, ack.ReasonCode)
		}
		return fmt.Errorf("broker refused connection with reason code 0x%02X", ack.ReasonCode)
	}
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}

	_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	return nil
}

func (v *BrokerVerifier) dial(ctx context.Context) (net.Conn, error) {
	host := v.brokerURL.Host
	secure := v.brokerURL.Scheme == "tls" || v.brokerURL.Scheme == "ssl" || v.brokerURL.Scheme == "mqtts"
	if v.brokerURL.Port() == "" {
		port := 1883
		if secure {
			port = 8883
		}
		host = net.JoinHostPort(v.brokerURL.Hostname(), strconv.Itoa(port))
	}

	if secure {
		d := &tls.Dialer{Config: &tls.Config{
			ServerName:         v.brokerURL.Hostname(),
			InsecureSkipVerify: v.insecureSkipVerify,
		}}
		return d.DialContext(ctx, "tcp", host)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", host)
}
