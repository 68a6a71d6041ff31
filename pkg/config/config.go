package config

import (
	"time"

	flag "github.com/spf13/pflag"
)

type Config struct {
	Server     Server
	Monitoring Monitoring
	Webrtc     Webrtc
	Meeting    Meeting
	Live       Live
	Storage    Storage
	Debug      bool
	Version    Version
}

type Version int

// Meeting controls the multi-party room manager.
type Meeting struct {
	// GlobalProducerBroadcast announces new producers to every connection
	// on the server instead of the producer's room only.
	GlobalProducerBroadcast bool
	// EngineTimeout bounds every call into the media-relay engine.
	EngineTimeout time.Duration `default:"10s"`
}

type Live struct {
	// FanOut is the maximum number of children of any relay tree node.
	FanOut int `default:"8"`
}

type Storage struct {
	// Path of the sqlite database file, empty disables persistence.
	Path string `default:"solive.db"`
	// Lock is a file lock held for the lifetime of the process
	// so that two instances never share one database.
	Lock string
}

func (s Storage) IsEnabled() bool { return s.Path != "" }

// allows custom config path
var configPath string

func NewConfig() (conf Config) {
	if _, err := LoadConfig(&conf, configPath); err != nil {
		panic(err)
	}
	conf.expandSpecialTags()
	return
}

// ParseFlags updates config values from passed runtime flags.
// Define own flags with default value set to the current config param.
// Don't forget to call flag.Parse().
func (c *Config) ParseFlags() {
	c.Server.WithFlags()
	flag.BoolVar(&c.Debug, "debug", c.Debug, "Verbose logging")
	flag.IntVar(&c.Monitoring.Port, "monitoring.port", c.Monitoring.Port, "Monitoring server port")
	flag.IntVar(&c.Live.FanOut, "live.fanout", c.Live.FanOut, "Max children per relay tree node")
	flag.StringVar(&c.Storage.Path, "storage.path", c.Storage.Path, "Sqlite database path, empty to disable")
	flag.StringVarP(&configPath, "conf", "c", configPath, "Set custom configuration file path")
	flag.Parse()

	// a custom file replaces the defaults, the command line still wins
	if flag.CommandLine.Changed("conf") {
		if _, err := LoadConfig(c, configPath); err != nil {
			panic(err)
		}
		flag.Parse()
		c.expandSpecialTags()
	}
}

func (c *Config) expandSpecialTags() {
	if c.Live.FanOut < 1 {
		c.Live.FanOut = 1
	}
	if c.Meeting.EngineTimeout <= 0 {
		c.Meeting.EngineTimeout = 10 * time.Second
	}
}
