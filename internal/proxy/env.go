package proxy

import "fmt"

// caInstallPath is where the ephemeral CA certificate is installed inside
// the sandbox's trust store.
const caInstallPath = "/usr/local/share/ca-certificates/ftl-proxy.crt"

// EnvVars returns the environment variables a sandboxed process needs to
// route all outbound HTTP(S) traffic through the proxy and trust its
// ephemeral CA. Both the upper- and lower-case forms are set since tools
// disagree about which one they read.
func (p *Proxy) EnvVars(hostGateway string) map[string]string {
	proxyURL := fmt.Sprintf("http://%s", p.addrFor(hostGateway))

	return map[string]string{
		"HTTP_PROXY":          proxyURL,
		"HTTPS_PROXY":         proxyURL,
		"http_proxy":          proxyURL,
		"https_proxy":         proxyURL,
		"NO_PROXY":            "localhost,127.0.0.1,::1",
		"no_proxy":            "localhost,127.0.0.1,::1",
		"NODE_EXTRA_CA_CERTS": caInstallPath,
		"REQUESTS_CA_BUNDLE":  caInstallPath,
		"SSL_CERT_FILE":       caInstallPath,
	}
}

// addrFor rewrites the proxy's bind address to use hostGateway (the
// sandbox's route back to the host) instead of whatever loopback address
// it was bound to, since the proxy itself runs on the host, not inside
// the container.
func (p *Proxy) addrFor(hostGateway string) string {
	_, port, err := splitHostPort(p.addr)
	if err != nil {
		return p.addr
	}
	return hostGateway + ":" + port
}

func splitHostPort(addr string) (host, port string, err error) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("proxy: no port in address %q", addr)
}

// CAInstallPath returns the path the CA certificate should be written to
// inside the sandbox before running update-ca-certificates.
func CAInstallPath() string {
	return caInstallPath
}
