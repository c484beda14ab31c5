// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flow

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/intel-go/nff-bricks/common"
	"github.com/intel-go/nff-bricks/types"
)

// Supported port drivers.
const (
	DriverAFPacket = "afpacket"
	DriverPcap     = "pcap"
	DriverVirtual  = "virtual"
)

// Default values of Config fields.
const (
	DefaultMbufNumber = 8191
	DefaultRingSize   = 1024
)

// PortConfig describes one port.
type PortConfig struct {
	// Interface name for afpacket driver, any unique name otherwise.
	Name string `yaml:"name"`
	// One of DriverAFPacket, DriverPcap and DriverVirtual. Default
	// value is DriverAFPacket.
	Driver string `yaml:"driver"`
	// Number of queue pairs. Default value is number of cores.
	Queues int `yaml:"queues"`
	// Address reported by pcap and virtual ports. Interface address is
	// used for afpacket ports.
	MAC types.MACAddress `yaml:"mac"`
	// Input and output files of pcap port.
	PcapIn  string `yaml:"pcap_in"`
	PcapOut string `yaml:"pcap_out"`
	// Pcap port replays input file endlessly.
	Repeat bool `yaml:"repeat"`
	// Virtual port transmits to its own receive rings.
	Loopback bool `yaml:"loopback"`
}

// Config is a struct with all parameters, which user can pass to
// framework initialization. Zero values are replaced by defaults.
type Config struct {
	// Specifies cores which will be used by schedulers, for example
	// "0-3,8". Default value is all cores process may run on.
	CPUList string
	// Number of packets in one pipeline batch. Default value is 32.
	BurstSize uint
	// Specifies number of mbufs in mempool. Default value is 8191.
	MbufNumber uint
	// Headroom and data room of every mbuf. Default values are
	// low.DefaultHeadroom and low.DefaultDataRoom.
	MbufHeadroom uint
	MbufDataRoom uint
	// Number of entries in virtual port rings. Default value is 1024.
	RingSize uint
	// Specifies logging type. Default value is common.No |
	// common.Initialization | common.Debug.
	LogType common.LogType
	// Don't bind scheduler threads to cores.
	NoPinning bool
	// Address for HTTP server with counters, for example
	// "127.0.0.1:8080". Server isn't started if it is empty.
	CountersAddress string
	Ports           []PortConfig
}

// fileConfig is a representation of Config in configuration files.
type fileConfig struct {
	CPUList         string       `yaml:"cpu_list"`
	BurstSize       uint         `yaml:"burst_size"`
	MbufNumber      uint         `yaml:"mbuf_number"`
	MbufHeadroom    uint         `yaml:"mbuf_headroom"`
	MbufDataRoom    uint         `yaml:"mbuf_data_room"`
	RingSize        uint         `yaml:"ring_size"`
	LogType         string       `yaml:"log"`
	NoPinning       bool         `yaml:"no_pinning"`
	CountersAddress string       `yaml:"counters"`
	Ports           []PortConfig `yaml:"ports"`
}

func (fc *fileConfig) toConfig() (*Config, error) {
	logType, err := common.ParseLogType(fc.LogType)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		CPUList:         fc.CPUList,
		BurstSize:       fc.BurstSize,
		MbufNumber:      fc.MbufNumber,
		MbufHeadroom:    fc.MbufHeadroom,
		MbufDataRoom:    fc.MbufDataRoom,
		RingSize:        fc.RingSize,
		LogType:         logType,
		NoPinning:       fc.NoPinning,
		CountersAddress: fc.CountersAddress,
		Ports:           fc.Ports,
	}
	return cfg, cfg.validate()
}

// ReadConfig loads configuration from INI file or from YAML file with
// .yaml or .yml extension.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.WrapWithNFError(err, "can't read configuration "+path, common.ConfigErr)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAMLConfig(data)
	default:
		return ParseINIConfig(data)
	}
}

// ParseYAMLConfig parses configuration in YAML format:
//
//	cpu_list: 0-3
//	log: init,debug
//	ports:
//	  - name: eth0
//	    driver: afpacket
func ParseYAMLConfig(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, common.WrapWithNFError(err, "can't parse YAML configuration", common.ConfigErr)
	}
	return fc.toConfig()
}

// Names of INI sections and keys.
const (
	lblSystem     = "system"
	lblPortPrefix = "port "
)

// ParseINIConfig parses configuration in INI format. Framework
// parameters are placed in [system] section, every port has its own
// section [port name]:
//
//	[system]
//	cpu_list = 0-3
//
//	[port eth0]
//	driver = afpacket
//	queues = 2
func ParseINIConfig(data []byte) (*Config, error) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, common.WrapWithNFError(err, "can't parse INI configuration", common.ConfigErr)
	}
	var fc fileConfig
	sys := f.Section(lblSystem)
	fc.CPUList = sys.Key("cpu_list").String()
	fc.LogType = sys.Key("log").String()
	fc.CountersAddress = sys.Key("counters").String()
	uints := map[string]*uint{
		"burst_size":     &fc.BurstSize,
		"mbuf_number":    &fc.MbufNumber,
		"mbuf_headroom":  &fc.MbufHeadroom,
		"mbuf_data_room": &fc.MbufDataRoom,
		"ring_size":      &fc.RingSize,
	}
	for name, v := range uints {
		if sys.HasKey(name) {
			if *v, err = sys.Key(name).Uint(); err != nil {
				return nil, common.WrapWithNFError(err, "bad value of "+name, common.ConfigErr)
			}
		}
	}
	if sys.HasKey("no_pinning") {
		if fc.NoPinning, err = sys.Key("no_pinning").Bool(); err != nil {
			return nil, common.WrapWithNFError(err, "bad value of no_pinning", common.ConfigErr)
		}
	}

	for _, section := range f.Sections() {
		if !strings.HasPrefix(section.Name(), lblPortPrefix) {
			continue
		}
		pc := PortConfig{
			Name:    strings.TrimSpace(strings.TrimPrefix(section.Name(), lblPortPrefix)),
			Driver:  section.Key("driver").String(),
			PcapIn:  section.Key("pcap_in").String(),
			PcapOut: section.Key("pcap_out").String(),
		}
		if section.HasKey("queues") {
			if pc.Queues, err = section.Key("queues").Int(); err != nil {
				return nil, common.WrapWithNFError(err, "bad number of queues of port "+pc.Name, common.ConfigErr)
			}
		}
		if section.HasKey("mac") {
			if pc.MAC, err = types.StringToMACAddress(section.Key("mac").String()); err != nil {
				return nil, common.WrapWithNFError(err, "bad address of port "+pc.Name, common.ConfigErr)
			}
		}
		if section.HasKey("repeat") {
			if pc.Repeat, err = section.Key("repeat").Bool(); err != nil {
				return nil, common.WrapWithNFError(err, "bad repeat flag of port "+pc.Name, common.ConfigErr)
			}
		}
		if section.HasKey("loopback") {
			if pc.Loopback, err = section.Key("loopback").Bool(); err != nil {
				return nil, common.WrapWithNFError(err, "bad loopback flag of port "+pc.Name, common.ConfigErr)
			}
		}
		fc.Ports = append(fc.Ports, pc)
	}
	return fc.toConfig()
}

// validate checks port descriptions and fills default driver.
func (cfg *Config) validate() error {
	names := map[string]bool{}
	for i := range cfg.Ports {
		pc := &cfg.Ports[i]
		if pc.Driver == "" {
			pc.Driver = DriverAFPacket
		}
		switch pc.Driver {
		case DriverAFPacket, DriverPcap:
			if pc.Name == "" {
				return common.WrapWithNFError(nil, pc.Driver+" port needs a name", common.ConfigErr)
			}
		case DriverVirtual:
		default:
			return common.WrapWithNFError(nil, "unknown driver "+pc.Driver+" of port "+pc.Name, common.ConfigErr)
		}
		if pc.Queues < 0 {
			return common.WrapWithNFError(nil, "negative number of queues of port "+pc.Name, common.ConfigErr)
		}
		if pc.Name != "" {
			if names[pc.Name] {
				return common.WrapWithNFError(nil, "port "+pc.Name+" is configured twice", common.ConfigErr)
			}
			names[pc.Name] = true
		}
	}
	return nil
}
