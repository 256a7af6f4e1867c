package auth

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/guardvision/guardvision/internal/monitor/core"
)

func TestStaticVerifier(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	v, err := NewStaticVerifier([]string{"operator:" + string(hash)})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		id       string
		secret   string
		rejected bool
	}{
		{"valid", "operator", "s3cret", false},
		{"wrong secret", "operator", "nope", true},
		{"unknown operator", "intruder", "s3cret", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(context.Background(), tt.id, tt.secret)
			if got := errors.Is(err, core.ErrAuthenticationRejected); got != tt.rejected {
				t.Errorf("Verify = %v, rejected %v want %v", err, got, tt.rejected)
			}
			if !tt.rejected && err != nil {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestNewStaticVerifierRejectsBadEntries(t *testing.T) {
	for _, entries := range [][]string{{"nohash"}, {":hash"}, {"op:not-a-bcrypt-hash"}} {
		if _, err := NewStaticVerifier(entries); err == nil {
			t.Errorf("NewStaticVerifier(%v) should fail", entries)
		}
	}
}

// fakeBroker answers every CONNECT with a CONNACK carrying reasonCode.
func fakeBroker(t *testing.T, reasonCode byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				r := bufio.NewReader(conn)
				if err := skipPacket(r); err != nil {
					return
				}
				// CONNACK: flags, reason code, empty properties.
				if _, err := conn.Write([]byte{0x20, 0x03, 0x00, reasonCode, 0x00}); err != nil {
					return
				}
				_, _ = io.Copy(io.Discard, r)
			}(conn)
		}
	}()
	return "tcp://" + ln.Addr().String()
}

func skipPacket(r *bufio.Reader) error {
	if _, err := r.ReadByte(); err != nil {
		return err
	}
	var length, shift int
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		length |= int(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	_, err := io.CopyN(io.Discard, r, int64(length))
	return err
}

func TestBrokerVerifier(t *testing.T) {
	tests := []struct {
		name       string
		reasonCode byte
		wantErr    bool
		rejected   bool
	}{
		{"accepted", 0x00, false, false},
		{"bad password", 0x86, true, true},
		{"not authorized", 0x87, true, true},
		{"server unavailable", 0x88, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewBrokerVerifier(fakeBroker(t, tt.reasonCode), "gv-test", 2*time.Second, false)
			if err != nil {
				t.Fatal(err)
			}
			err = v.Verify(context.Background(), "operator", "s3cret")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, core.ErrAuthenticationRejected); got != tt.rejected {
				t.Errorf("rejected = %v, want %v (%v)", got, tt.rejected, err)
			}
		})
	}
}

func TestBrokerVerifierUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	v, err := NewBrokerVerifier("tcp://"+addr, "gv-test", time.Second, false)
	if err != nil {
		t.Fatal(err)
	}
	err = v.Verify(context.Background(), "operator", "s3cret")
	if err == nil || errors.Is(err, core.ErrAuthenticationRejected) {
		t.Errorf("Verify = %v, want a transport error", err)
	}
}

func TestNewBrokerVerifierScheme(t *testing.T) {
	if _, err := NewBrokerVerifier("ws://localhost:8083", "gv", 0, false); err == nil {
		t.Error("websocket brokers are not supported by the probe")
	}
}
