package bootstrap

import (
	"net"
	"strconv"
	"time"
)

// keepaliveListener wraps a net.Listener so every accepted connection gets
// TCP keepalive tuned to TCP_KEEPALIVE_SECS (spec §6), the Go equivalent of
// the original implementation's socket2::TcpKeepalive setup in main.rs.
type keepaliveListener struct {
	net.Listener
	period time.Duration
}

// newKeepaliveListener binds host:port and returns a listener that applies
// TCP keepalive + TCP_NODELAY to every accepted connection.
func newKeepaliveListener(host string, port int64, period time.Duration) (net.Listener, error) {
	inner, err := net.Listen("tcp", net.JoinHostPort(host, strconv.FormatInt(port, 10)))
	if err != nil {
		return nil, err
	}

	return &keepaliveListener{Listener: inner, period: period}, nil
}

func (l *keepaliveListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(l.period)
		_ = tcpConn.SetNoDelay(true)
	}

	return conn, nil
}
