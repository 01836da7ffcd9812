package proxy

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vvennela/ftl/internal/credentials"
)

// idleTimeout bounds how long a CONNECT tunnel may sit without data before
// the proxy gives up on it — long enough for a slow agent tool call,
// short enough not to leak file descriptors across a whole session.
const idleTimeout = 120 * time.Second

const relayChunkSize = 64 * 1024

// Proxy is an HTTP(S) forward proxy that sits between a sandboxed agent
// and the network, swapping shadow credential placeholders for their real
// values on every outbound byte.
type Proxy struct {
	ca     *CA
	swap   *swapTable
	ln     net.Listener
	addr   string
}

// New creates a proxy bound to addr (e.g. "127.0.0.1:0" to pick a free
// port) using ca to terminate intercepted TLS connections.
func New(ca *CA, addr string) (*Proxy, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("proxy: listen %s: %w", addr, err)
	}
	p := &Proxy{ca: ca, swap: newSwapTable(), ln: ln, addr: ln.Addr().String()}
	go p.serve()
	return p, nil
}

// Addr returns the actual listening address, including the resolved port
// when addr was passed as ":0".
func (p *Proxy) Addr() string { return p.addr }

// SetCredentials installs the substitution table for the current agent
// turn. Safe to call repeatedly as credentials are re-shadowed.
func (p *Proxy) SetCredentials(shadow credentials.ShadowMap) {
	p.swap.Set(shadow)
}

// Close shuts the proxy listener down.
func (p *Proxy) Close() error {
	return p.ln.Close()
}

func (p *Proxy) serve() {
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		go p.handleConn(conn)
	}
}

func (p *Proxy) handleConn(conn net.Conn) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(idleTimeout))
	reader := bufio.NewReader(conn)

	req, err := http.ReadRequest(reader)
	if err != nil {
		return
	}

	if req.Method == http.MethodConnect {
		p.handleConnect(conn, reader, req)
		return
	}
	p.handlePlainHTTP(conn, req)
}

// handleConnect terminates the client's TLS connection with a
// freshly-signed leaf certificate, dials the real upstream over TLS, and
// relays bytes between them, substituting shadow placeholders only on the
// client-to-upstream direction.
func (p *Proxy) handleConnect(conn net.Conn, reader *bufio.Reader, req *http.Request) {
	host, _, err := net.SplitHostPort(req.Host)
	if err != nil {
		host = req.Host
	}

	if _, err := conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return
	}

	leafCert, err := p.ca.SignForHost(host)
	if err != nil {
		log.Printf("proxy: sign cert for %s: %v", host, err)
		return
	}

	tlsConn := tls.Server(conn, &tls.Config{Certificates: []tls.Certificate{*leafCert}})
	if err := tlsConn.Handshake(); err != nil {
		log.Printf("proxy: tls handshake with sandbox for %s: %v", host, err)
		return
	}
	defer tlsConn.Close()
	// Drop handleConn's fixed deadline; the relays below set a fresh read
	// deadline before every read instead.
	conn.SetDeadline(time.Time{})

	upstream, err := tls.Dial("tcp", req.Host, &tls.Config{ServerName: host})
	if err != nil {
		log.Printf("proxy: dial upstream %s: %v", req.Host, err)
		return
	}
	defer upstream.Close()

	done := make(chan struct{}, 2)

	go func() {
		idleCopy(tlsConn, upstream)
		done <- struct{}{}
	}()

	go func() {
		p.relayWithSwap(upstream, tlsConn)
		done <- struct{}{}
	}()

	<-done
}

// idleCopy copies src to dst, resetting src's read deadline before every
// read so idleTimeout measures a gap in traffic rather than the tunnel's
// total age — a long-running agent call must not get killed mid-stream
// just because it started more than idleTimeout ago.
func idleCopy(dst io.Writer, src net.Conn) {
	buf := make([]byte, relayChunkSize)
	for {
		src.SetReadDeadline(time.Now().Add(idleTimeout))
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// relayWithSwap copies src to dst, substituting shadow placeholders for
// real credential values as it goes. It reads in fixed-size chunks rather
// than line-by-line so binary payloads pass through untouched, and resets
// src's read deadline on every iteration for the same idle-timeout reason
// as idleCopy.
func (p *Proxy) relayWithSwap(dst io.Writer, src net.Conn) {
	buf := make([]byte, relayChunkSize)
	for {
		src.SetReadDeadline(time.Now().Add(idleTimeout))
		n, err := src.Read(buf)
		if n > 0 {
			out := p.swap.Replace(string(buf[:n]))
			if _, werr := dst.Write([]byte(out)); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// hopByHopHeaders are stripped before forwarding a plain HTTP request, per
// RFC 7230 §6.1 — they describe this specific connection, not the request.
var hopByHopHeaders = []string{"Connection", "Proxy-Connection", "Keep-Alive", "Transfer-Encoding", "Upgrade"}

// handlePlainHTTP forwards a non-CONNECT request (the agent made a bare
// HTTP:// call) after substituting shadow placeholders in its headers and
// body, then streams the upstream response back unmodified.
func (p *Proxy) handlePlainHTTP(conn net.Conn, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		writeError(conn, http.StatusBadRequest)
		return
	}
	req.Body.Close()

	swappedBody := p.swap.Replace(string(body))

	for _, h := range hopByHopHeaders {
		req.Header.Del(h)
	}
	req.Header.Del("Content-Length")
	for k, values := range req.Header {
		for i, v := range values {
			req.Header[k][i] = p.swap.Replace(v)
		}
	}

	outReq, err := http.NewRequest(req.Method, req.URL.String(), strings.NewReader(swappedBody))
	if err != nil {
		writeError(conn, http.StatusBadGateway)
		return
	}
	outReq.Header = req.Header
	outReq.Header.Set("Content-Length", strconv.Itoa(len(swappedBody)))
	outReq.Host = req.Host

	client := &http.Client{Timeout: 300 * time.Second}
	resp, err := client.Do(outReq)
	if err != nil {
		log.Printf("proxy: plain http forward to %s failed: %v", req.Host, err)
		writeError(conn, http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	resp.Write(conn)
}

func writeError(conn net.Conn, status int) {
	fmt.Fprintf(conn, "HTTP/1.1 %d %s\r\nContent-Length: 0\r\n\r\n", status, http.StatusText(status))
}
