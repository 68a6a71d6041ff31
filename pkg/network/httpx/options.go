package httpx

import (
	"time"

	"github.com/chaosgomoku/solive/pkg/config"
	"github.com/chaosgomoku/solive/pkg/logger"
)

type Options struct {
	Https                bool
	HttpsRedirect        bool
	HttpsRedirectAddress string
	HttpsCert            string
	HttpsKey             string
	HttpsDomain          string
	PortRoll             bool
	IdleTimeout          time.Duration
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	Logger               *logger.Logger
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		HttpsRedirect: true,
		IdleTimeout:   2 * time.Minute,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
	}
}

// autoCert is true unless both the certificate and the key files are set.
func (o *Options) autoCert() bool { return o.HttpsCert == "" || o.HttpsKey == "" }

func HttpsRedirect(redirect bool) Option   { return func(o *Options) { o.HttpsRedirect = redirect } }
func WithPortRoll(roll bool) Option        { return func(o *Options) { o.PortRoll = roll } }
func WithLogger(log *logger.Logger) Option { return func(o *Options) { o.Logger = log } }

// WithServerConfig takes HTTPS settings from the config, the plain
// address becomes the redirect one.
func WithServerConfig(conf config.Server) Option {
	return func(o *Options) {
		o.Https = conf.Https
		o.HttpsCert = conf.Tls.HttpsCert
		o.HttpsKey = conf.Tls.HttpsKey
		o.HttpsDomain = conf.Tls.Domain
		o.HttpsRedirectAddress = conf.Address
	}
}
