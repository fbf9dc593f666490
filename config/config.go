package config

import (
	"github.com/francois-poidevin/flightmap/internal/app/sinkers/db"
	"github.com/francois-poidevin/flightmap/internal/app/sinkers/file"
)

// Configuration contains conectivity settings
type Configuration struct {
	Log struct {
		Level  string `toml:"level" default:"info" comment:"Log level: trace, debug, info, warn, error, fatal and panic"`
		Format string `toml:"format" default:"text" comment:"Log format: text or json"`
	} `toml:"Log" comment:"###############################\n Logs Settings \n##############################"`

	Server struct {
		Port         int `toml:"port" default:"5000" comment:"HTTP listening port"`
		RateLimit    int `toml:"rateLimit" default:"120" comment:"requests per minute and per IP, 0 disables the limit"`
		ReadTimeout  int `toml:"readTimeout" default:"10" comment:"HTTP read timeout (sec)"`
		WriteTimeout int `toml:"writeTimeout" default:"15" comment:"HTTP write timeout (sec)"`
	} `toml:"Server" comment:"###############################\n HTTP Server Settings \n##############################"`

	Source struct {
		OpenskyURL       string `toml:"openskyURL" default:"https://opensky-network.org/api" comment:"OpenSky REST API root"`
		OpenskyUser      string `toml:"openskyUser" default:"" comment:"OpenSky user, empty means mock mode"`
		OpenskyPass      string `toml:"openskyPass" default:"" comment:"OpenSky password"`
		Timeout          int    `toml:"timeout" default:"10" comment:"upstream timeout (sec), capped at 10"`
		MinInterval      int    `toml:"minInterval" default:"1000" comment:"minimum delay between two upstream calls (ms)"`
		BreakerThreshold int    `toml:"breakerThreshold" default:"3" comment:"consecutive upstream failures opening the circuit breaker"`
		BreakerTimeout   int    `toml:"breakerTimeout" default:"30" comment:"time the breaker stays open (sec)"`
		Bbox             string `toml:"bbox" default:"" comment:"default area 'lat,lon^lat,lon' (SW^NE), empty means the whole globe"`
		MockCount        int    `toml:"mockCount" default:"300" comment:"number of synthetic flights in mock mode"`
		FallbackCount    int    `toml:"fallbackCount" default:"200" comment:"number of synthetic flights served when the upstream fails"`
		MockBand         string `toml:"mockBand" default:"" comment:"area of synthetic flights 'lat,lon^lat,lon', empty means the whole globe"`
		MockStateful     bool   `toml:"mockStateful" default:"false" comment:"keep synthetic flights between calls and move them"`
	} `toml:"Source" comment:"###############################\n Position Source Settings \n##############################"`

	Watch struct {
		Server  string `toml:"server" default:"http://localhost:5000" comment:"backend root URL"`
		Refresh int    `toml:"refresh" default:"3" comment:"poll interval (sec)"`
		Timeout int    `toml:"timeout" default:"5" comment:"poll request timeout (sec)"`
		Steps   int    `toml:"steps" default:"10" comment:"interpolation points per transition"`
		Cadence int    `toml:"cadence" default:"60" comment:"delay between two interpolation points (ms)"`
		Ui      string `toml:"ui" default:"log" comment:"render layer: log or tui"`
		Query   string `toml:"query" default:"" comment:"initial search filter"`
	} `toml:"Watch" comment:"###############################\n Watch Client Settings \n##############################"`

	Sinker struct {
		Type     string             `toml:"type" default:"NONE" comment:"the sinker Type use (STDOUT|FILE|DB|NONE)"`
		File     file.Configuration `toml:"file" comment:"###############################\n file sinker configuration \n##############################"`
		Postgres db.Configuration   `toml:"postgres" comment:"###############################\n db sinker configuration \n##############################"`
	} `toml:"Sinker" comment:"###############################\n Sinker Settings \n##############################"`
}
