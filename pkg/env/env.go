// Package env provides the common configuration of the sercom tools.
package env

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/sercom.go/pkg/board"
	"github.com/robotalks/sercom.go/pkg/bridge"
	"github.com/robotalks/sercom.go/pkg/framework"
)

// Config provides common options of the tools.
type Config struct {
	// BoardFile is the board YAML file.
	BoardFile string
	// MQTTBrokerURL specifies the MQTT broker to use, overriding the board.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// WebSocketAddr is the listening address of the websocket bridge,
	// overriding the board.
	WebSocketAddr string
	// ClientID is the MQTT client id, defaults to sercom:<machine-id>.
	ClientID       string
	LoopInterval   time.Duration
	ReportInterval time.Duration
}

var defaultConfig = Config{
	BoardFile:      "board.yaml",
	LoopInterval:   framework.DefaultInterval,
	ReportInterval: bridge.DefaultReportInterval,
}

func init() {
	if val := os.Getenv("SERCOM_BOARD"); val != "" {
		defaultConfig.BoardFile = val
	}
	if val := os.Getenv("SERCOM_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.BoardFile, "board", defaultConfig.BoardFile, "Board file")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.WebSocketAddr, "ws", defaultConfig.WebSocketAddr, "Websocket listening address")
	flag.StringVar(&defaultConfig.ClientID, "client-id", defaultConfig.ClientID, "MQTT client ID")
	flag.DurationVar(&defaultConfig.LoopInterval, "interval", defaultConfig.LoopInterval, "Control loop interval")
	flag.DurationVar(&defaultConfig.ReportInterval, "report-interval", defaultConfig.ReportInterval, "Status report interval")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// MachineID retrieves the unique ID identifying the machine, or the
// host name when it is not available.
func MachineID() string {
	id, err := machineid.ID()
	if err == nil {
		return id
	}
	glog.Warningf("machine id: %v", err)
	if id, err = os.Hostname(); err == nil {
		return id
	}
	return "unknown"
}

// MQTTClientID returns ClientID or the default derived from the
// machine.
func (c *Config) MQTTClientID() string {
	if c.ClientID != "" {
		return c.ClientID
	}
	return "sercom:" + MachineID()
}

// LoadBoard loads the board file and applies the overrides.
func (c *Config) LoadBoard() (*board.Board, error) {
	if c.BoardFile == "" {
		return nil, fmt.Errorf("board file is required")
	}
	b, err := board.Load(c.BoardFile)
	if err != nil {
		return nil, err
	}
	if c.MQTTBrokerURL != "" {
		b.MQTT = c.MQTTBrokerURL
	}
	if c.WebSocketAddr != "" {
		b.WebSocket = c.WebSocketAddr
	}
	return b, nil
}
