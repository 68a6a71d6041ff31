// Package httpx runs HTTP(S) servers with port rolling, autocert
// certificates and an optional plain HTTP redirect to HTTPS.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/chaosgomoku/solive/pkg/logger"
)

type Server struct {
	srv      *http.Server
	listener *Listener
	addr     string
	opts     Options
	certs    *certManager
	redirect *Server
	log      *logger.Logger
}

func NewServer(address string, h Handler, options ...Option) (*Server, error) {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	s := &Server{
		srv: &http.Server{
			Handler:      h,
			IdleTimeout:  opts.IdleTimeout,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		},
		opts: opts,
		log:  log,
	}
	if opts.Https && opts.autoCert() {
		s.certs = newCertManager(opts.HttpsDomain)
		s.srv.TLSConfig = s.certs.TLSConfig()
	}

	if address == "" {
		address = ":" + s.Protocol()
		log.Warn().Msgf("no server address, using %v", address)
	}
	ls, err := NewListener(address, opts.PortRoll)
	if err != nil {
		return nil, fmt.Errorf("listen %v: %w", address, err)
	}
	s.listener = ls
	s.addr = buildAddress(address, *ls)
	s.srv.Addr = s.addr
	log.Debug().Msgf("httpx %v (%v)", s.addr, address)
	return s, nil
}

// Address is the host and the actual port the server listens on.
func (s *Server) Address() string { return s.addr }

// Port may differ from the configured one when ports roll.
func (s *Server) Port() int { return s.listener.GetPort() }

func (s *Server) Host() string { return extractHost(s.addr) }

func (s *Server) Protocol() string {
	if s.opts.Https {
		return "https"
	}
	return "http"
}

func (s *Server) String() string { return s.Protocol() + "://" + s.addr }

func (s *Server) Run() {
	if s.opts.Https && s.opts.HttpsRedirect {
		if err := s.startRedirect(); err != nil {
			s.log.Error().Err(err).Msg("https redirect")
		}
	}
	go s.serve()
}

func (s *Server) serve() {
	var err error
	if s.opts.Https {
		err = s.srv.ServeTLS(s.listener, s.opts.HttpsCert, s.opts.HttpsKey)
	} else {
		err = s.srv.Serve(s.listener)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error().Err(err).Msgf("%v server", s.Protocol())
		return
	}
	s.log.Debug().Msgf("%v server closed", s)
}

func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.redirect != nil {
		errs = append(errs, s.redirect.Shutdown(ctx))
	}
	errs = append(errs, s.srv.Shutdown(ctx))
	return errors.Join(errs...)
}

// startRedirect sends plain HTTP clients to the HTTPS address,
// it also answers ACME challenges when certificates are automatic.
func (s *Server) startRedirect() error {
	host := s.addr
	if s.opts.HttpsDomain != "" {
		host = buildAddress(s.opts.HttpsDomain, *s.listener)
	}
	var h Handler = HandlerFunc(func(w ResponseWriter, r *Request) {
		to := url.URL{Scheme: "https", Host: host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
		s.log.Debug().Str("from", r.Host+r.URL.String()).Str("to", to.String()).Msg("redirect")
		http.Redirect(w, r, to.String(), http.StatusFound)
	})
	if s.certs != nil {
		h = s.certs.HTTPHandler(h)
	}
	rdr, err := NewServer(s.opts.HttpsRedirectAddress, h, WithLogger(s.log))
	if err != nil {
		return err
	}
	s.redirect = rdr
	s.log.Info().Msgf("redirect %v -> https://%v", rdr.Address(), host)
	rdr.Run()
	return nil
}
