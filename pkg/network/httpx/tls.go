package httpx

import "golang.org/x/crypto/acme/autocert"

const certCache = "certs"

// certManager fetches Let's Encrypt certificates for the domain,
// for any host when the domain is empty.
type certManager struct {
	*autocert.Manager
}

func newCertManager(domain string) *certManager {
	m := &autocert.Manager{Prompt: autocert.AcceptTOS, Cache: autocert.DirCache(certCache)}
	if domain != "" {
		m.HostPolicy = autocert.HostWhitelist(domain)
	}
	return &certManager{m}
}
