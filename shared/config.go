// Package shared holds the YAML configuration shape loaded at process
// startup, grounded on devicedb's shared/config.go load-and-validate
// pattern and adapted from a single-cluster config to this module's
// per-area, per-peer shape.
package shared

import (
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"

	"gopkg.in/yaml.v2"

	openr "github.com/robertprast/openr"
)

// YAMLPeer is one configured peer entry for an area.
type YAMLPeer struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// YAMLArea is one configured Area and its initial peer set. Peers can
// also be added/removed later at runtime through the RPC surface;
// this is only the set dialed at startup.
type YAMLArea struct {
	Name  string     `yaml:"name"`
	Peers []YAMLPeer `yaml:"peers"`
}

// YAMLServerConfig is the top-level config file shape consumed by
// cmd/openr's start command.
type YAMLServerConfig struct {
	NodeID         string     `yaml:"nodeId"`
	Port           int        `yaml:"port"`
	PeerDialTimeMS uint64     `yaml:"peerDialTimeoutMs"`
	Areas          []YAMLArea `yaml:"areas"`
	LogLevel       string     `yaml:"logLevel"`
	HistoryDir     string     `yaml:"historyDir"`
}

// LoadFromFile reads, parses and validates a config file in place,
// applying the parsed log level as a side effect (matching the
// teacher's behavior of setting the level as part of loading, rather
// than as a separate step the caller must remember to do).
func (config *YAMLServerConfig) LoadFromFile(file string) error {
	rawConfig, err := ioutil.ReadFile(file)

	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(rawConfig, config); err != nil {
		return err
	}

	if !isValidPort(config.Port) {
		return fmt.Errorf("%d is an invalid port for the server", config.Port)
	}

	seenAreas := make(map[string]bool)

	for _, area := range config.Areas {
		if len(area.Name) == 0 {
			return errors.New("an area entry is missing its name")
		}

		if seenAreas[area.Name] {
			return fmt.Errorf("area %s is configured more than once", area.Name)
		}

		seenAreas[area.Name] = true

		seenPeers := make(map[string]bool)

		for _, peer := range area.Peers {
			if len(peer.Name) == 0 {
				return fmt.Errorf("area %s has a peer entry missing its name", area.Name)
			}

			if seenPeers[peer.Name] {
				return fmt.Errorf("area %s configures peer %s more than once", area.Name, peer.Name)
			}

			seenPeers[peer.Name] = true

			if len(peer.Host) == 0 {
				return fmt.Errorf("the host name is empty for peer %s in area %s", peer.Name, area.Name)
			}

			if !isValidPort(peer.Port) {
				return fmt.Errorf("%d is an invalid port to connect to peer %s in area %s", peer.Port, peer.Name, area.Name)
			}
		}
	}

	if config.PeerDialTimeMS == 0 {
		config.PeerDialTimeMS = 5000
	}

	if len(config.HistoryDir) > 0 {
		config.HistoryDir = resolveFilePath(file, config.HistoryDir)
	}

	openr.SetLoggingLevel(config.LogLevel)

	return nil
}

func isValidPort(p int) bool {
	return p >= 0 && p < (1<<16)
}

func resolveFilePath(configFileLocation, file string) string {
	if filepath.IsAbs(file) {
		return file
	}

	return filepath.Join(filepath.Dir(configFileLocation), file)
}
