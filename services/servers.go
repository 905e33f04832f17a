// services/servers.go - configured server inventory
package services

import (
	"fmt"
	"os"
	"sync"

	"portscope/common"

	"github.com/goccy/go-yaml"
)

// LocalServerID is the implicit server when no inventory file is present.
const LocalServerID = "local"

var (
	srvMu   sync.RWMutex
	servers []common.Server
)

type serversFile struct {
	Servers []common.Server `yaml:"servers"`
}

// InitServers loads the server inventory from PORTSCOPE_SERVERS_FILE.
// Without a file the inventory is the single implicit local server.
func InitServers() error {
	path := common.Env("PORTSCOPE_SERVERS_FILE", "")
	if path == "" {
		setServers(defaultServers())
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read servers file: %w", err)
	}
	var f serversFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parse servers file: %w", err)
	}

	loaded := f.Servers
	hasLocal := false
	for i := range loaded {
		if loaded[i].ID == "" {
			return fmt.Errorf("servers file: entry %d has no id", i)
		}
		if loaded[i].Name == "" {
			loaded[i].Name = loaded[i].ID
		}
		if loaded[i].Local {
			hasLocal = true
		}
	}
	if !hasLocal {
		loaded = append(defaultServers(), loaded...)
	}
	setServers(loaded)
	common.InfoLog("servers: loaded %d entries from %s", len(loaded), path)
	return nil
}

func defaultServers() []common.Server {
	return []common.Server{{ID: LocalServerID, Name: "Local Server", Local: true}}
}

func setServers(list []common.Server) {
	srvMu.Lock()
	servers = list
	srvMu.Unlock()
}

// Servers returns a copy of the configured server list.
func Servers() []common.Server {
	srvMu.RLock()
	defer srvMu.RUnlock()
	out := make([]common.Server, len(servers))
	copy(out, servers)
	return out
}

// IsLocalServer reports whether id names the server this instance runs on.
func IsLocalServer(id string) bool {
	srvMu.RLock()
	defer srvMu.RUnlock()
	for _, s := range servers {
		if s.ID == id {
			return s.Local
		}
	}
	return false
}

// KnownServer reports whether id is in the configured inventory.
func KnownServer(id string) bool {
	srvMu.RLock()
	defer srvMu.RUnlock()
	for _, s := range servers {
		if s.ID == id {
			return true
		}
	}
	return false
}
