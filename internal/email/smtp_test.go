package email

import (
	"context"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type smtpSession struct {
	from string
	rcpt []string
	body string
}

// serveSMTP answers a single plain SMTP session on ln
func serveSMTP(t *testing.T, ln net.Listener) <-chan smtpSession {
	t.Helper()
	out := make(chan smtpSession, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		var s smtpSession
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch verb {
			case "EHLO", "HELO":
				_ = tp.PrintfLine("250 localhost")
			case "MAIL":
				s.from = line
				_ = tp.PrintfLine("250 OK")
			case "RCPT":
				s.rcpt = append(s.rcpt, line)
				_ = tp.PrintfLine("250 OK")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				body, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				s.body = string(body)
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				out <- s
				return
			default:
				_ = tp.PrintfLine("502 not implemented")
			}
		}
	}()

	return out
}

func TestDeliver_RunsSMTPTransaction(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	sessions := serveSMTP(t, ln)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = deliver(ctx, ln.Addr().String(), nil, "from@example", []string{"a@x.com"}, []byte("Subject: hi\r\n\r\nhello\r\n"))
	require.NoError(t, err)

	select {
	case s := <-sessions:
		assert.Contains(t, s.from, "<from@example>")
		require.Len(t, s.rcpt, 1)
		assert.Contains(t, s.rcpt[0], "<a@x.com>")
		assert.Contains(t, s.body, "hello")
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw QUIT")
	}
}

func TestDeliver_SilentServerHitsDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	t.Cleanup(func() {
		select {
		case conn := <-accepted:
			conn.Close()
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = deliver(ctx, ln.Addr().String(), nil, "from@example", []string{"a@x.com"}, []byte("x"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDeliver_CancelInterruptsWait(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	t.Cleanup(func() {
		select {
		case conn := <-accepted:
			conn.Close()
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	err = deliver(ctx, ln.Addr().String(), nil, "from@example", []string{"a@x.com"}, []byte("x"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDeliver_BadAddress(t *testing.T) {
	err := deliver(context.Background(), "no-port", nil, "from@example", []string{"a@x.com"}, []byte("x"))
	assert.ErrorContains(t, err, "smtp address")
}
