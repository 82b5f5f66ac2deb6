package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Config interface {
	Init(cmd *cobra.Command) error
	Set()
}

type Root struct {
	Debug bool
}

func (Root) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().Bool("debug", false, "enable debug mode")
	return viper.BindPFlag("debug", cmd.PersistentFlags().Lookup("debug"))
}

func (c *Root) Set() {
	c.Debug = viper.GetBool("debug")
}

type Restream struct {
	FFmpegBinary string        `mapstructure:"ffmpeg-binary"`
	UserAgent    string        `mapstructure:"user-agent"`
	AudioBitrate int           `mapstructure:"audio-bitrate"` // in kilobits
	IdleTimeout  time.Duration `mapstructure:"idle-timeout"`  // grace window after last client detaches
	ClientBuffer int           `mapstructure:"client-buffer"` // chunks queued per attached client
}

type Upstream struct {
	UserAgent      string        `mapstructure:"user-agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRedirects   int           `mapstructure:"max-redirects"`
	MinSegmentSize int           `mapstructure:"min-segment-size"` // smaller bodies are treated as errors
}

type Aggregator struct {
	TTL     time.Duration     `mapstructure:"ttl"`
	Sources map[string]string `mapstructure:"sources"`
}

type Server struct {
	PProf bool

	Cert   string
	Key    string
	Bind   string
	Static string
	Proxy  bool

	Restream   Restream
	Upstream   Upstream
	Aggregator Aggregator
}

func (Server) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().Bool("pprof", false, "enable pprof endpoint available at /debug/pprof")
	if err := viper.BindPFlag("pprof", cmd.PersistentFlags().Lookup("pprof")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("bind", "127.0.0.1:3000", "address/port/socket to serve f1hub")
	if err := viper.BindPFlag("bind", cmd.PersistentFlags().Lookup("bind")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("cert", "", "path to the SSL cert used to secure the f1hub server")
	if err := viper.BindPFlag("cert", cmd.PersistentFlags().Lookup("cert")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("key", "", "path to the SSL key used to secure the f1hub server")
	if err := viper.BindPFlag("key", cmd.PersistentFlags().Lookup("key")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("static", "", "path to client files to serve")
	if err := viper.BindPFlag("static", cmd.PersistentFlags().Lookup("static")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("proxy", false, "allow reverse proxies")
	if err := viper.BindPFlag("proxy", cmd.PersistentFlags().Lookup("proxy")); err != nil {
		return err
	}

	return nil
}

func (s *Server) Set() {
	s.PProf = viper.GetBool("pprof")

	s.Cert = viper.GetString("cert")
	s.Key = viper.GetString("key")
	s.Bind = viper.GetString("bind")
	s.Static = viper.GetString("static")
	s.Proxy = viper.GetBool("proxy")

	if err := viper.UnmarshalKey("restream", &s.Restream); err != nil {
		panic(err)
	}

	if s.Restream.FFmpegBinary == "" {
		s.Restream.FFmpegBinary = "ffmpeg"
	}

	if s.Restream.UserAgent == "" {
		s.Restream.UserAgent = "VLC/3.0.18 LibVLC/3.0.18"
	}

	if s.Restream.AudioBitrate == 0 {
		s.Restream.AudioBitrate = 192
	}

	if s.Restream.IdleTimeout == 0 {
		s.Restream.IdleTimeout = 30 * time.Second
	}

	if s.Restream.ClientBuffer == 0 {
		s.Restream.ClientBuffer = 256
	}

	if err := viper.UnmarshalKey("upstream", &s.Upstream); err != nil {
		panic(err)
	}

	if s.Upstream.UserAgent == "" {
		s.Upstream.UserAgent = "VLC/3.0.18 LibVLC/3.0.18"
	}

	if s.Upstream.Timeout == 0 {
		s.Upstream.Timeout = 30 * time.Second
	}

	if s.Upstream.MaxRedirects == 0 {
		s.Upstream.MaxRedirects = 10
	}

	if s.Upstream.MinSegmentSize == 0 {
		s.Upstream.MinSegmentSize = 100
	}

	if err := viper.UnmarshalKey("aggregator", &s.Aggregator); err != nil {
		panic(err)
	}

	if s.Aggregator.TTL == 0 {
		s.Aggregator.TTL = 5 * time.Minute
	}

	if len(s.Aggregator.Sources) == 0 {
		s.Aggregator.Sources = map[string]string{
			"dlhd":     "https://dlhd.dad/api/stream",
			"streamed": "https://streamed.pk/api/f1",
		}
	}
}
