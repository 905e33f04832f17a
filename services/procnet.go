// services/procnet.go - host collector reading /proc/net listening sockets
package services

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"portscope/common"
)

// socket states from /proc/net. UDP sockets show 07 (unconnected) while
// bound and listening.
const (
	tcpListen      = 0x0A
	udpUnconnected = 0x07
)

// ProcNetCollector enumerates listening sockets from the procfs tables,
// resolving owning processes through /proc/[pid]/fd socket inodes. No
// external commands are run.
type ProcNetCollector struct {
	// Root overrides "/proc" in tests.
	Root string
}

type procSocket struct {
	IP    string
	Port  int
	Inode uint64
}

func (p ProcNetCollector) root() string {
	if p.Root != "" {
		return p.Root
	}
	return "/proc"
}

func (p ProcNetCollector) Ports(ctx context.Context) ([]common.PortObservation, error) {
	snap, err := p.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Ports, nil
}

func (p ProcNetCollector) Collect(ctx context.Context) (*Snapshot, error) {
	tables := []struct {
		file  string
		proto string
		state int
	}{
		{"net/tcp", common.ProtoTCP, tcpListen},
		{"net/tcp6", common.ProtoTCP, tcpListen},
		{"net/udp", common.ProtoUDP, udpUnconnected},
		{"net/udp6", common.ProtoUDP, udpUnconnected},
	}

	owners := p.socketOwners()

	snap := &Snapshot{Platform: "host"}
	opened := 0
	for _, tbl := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(filepath.Join(p.root(), tbl.file))
		if err != nil {
			// udp6/tcp6 are absent on v4-only kernels
			continue
		}
		opened++
		socks, err := parseProcNet(f, tbl.state)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", tbl.file, err)
		}
		for _, s := range socks {
			obs := common.PortObservation{
				HostIP:   s.IP,
				HostPort: s.Port,
				Protocol: tbl.proto,
			}
			if own, ok := owners[s.Inode]; ok {
				obs.Owner = own.comm
				obs.PID = own.pid
			}
			snap.Ports = append(snap.Ports, obs)
		}
	}
	if opened == 0 {
		return nil, fmt.Errorf("no procfs socket tables under %s", p.root())
	}
	return snap, nil
}

// parseProcNet reads one /proc/net table and returns sockets in the wanted
// state. Split out as a pure function so it can be tested against fixture
// text.
func parseProcNet(r io.Reader, wantState int) ([]procSocket, error) {
	var out []procSocket
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		if first { // header row
			first = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 10 {
			continue
		}

		state, err := strconv.ParseInt(fields[3], 16, 32)
		if err != nil || int(state) != wantState {
			continue
		}

		ip, port, err := parseHexSocketAddr(fields[1])
		if err != nil {
			return nil, err
		}
		inode, err := strconv.ParseUint(fields[9], 10, 64)
		if err != nil {
			inode = 0
		}
		out = append(out, procSocket{IP: ip, Port: port, Inode: inode})
	}
	return out, sc.Err()
}

// parseHexSocketAddr decodes the kernel's "ADDR:PORT" hex form. IPv4
// addresses are one little-endian 32-bit word; IPv6 addresses are four of
// them.
func parseHexSocketAddr(s string) (string, int, error) {
	addr, portHex, ok := strings.Cut(s, ":")
	if !ok {
		return "", 0, fmt.Errorf("malformed socket address %q", s)
	}
	port, err := strconv.ParseInt(portHex, 16, 32)
	if err != nil {
		return "", 0, fmt.Errorf("malformed socket port %q", portHex)
	}

	switch len(addr) {
	case 8:
		v, err := strconv.ParseUint(addr, 16, 32)
		if err != nil {
			return "", 0, fmt.Errorf("malformed IPv4 %q", addr)
		}
		ip := make(net.IP, net.IPv4len)
		binary.LittleEndian.PutUint32(ip, uint32(v))
		return ip.String(), int(port), nil
	case 32:
		ip := make(net.IP, net.IPv6len)
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseUint(addr[i*8:(i+1)*8], 16, 32)
			if err != nil {
				return "", 0, fmt.Errorf("malformed IPv6 %q", addr)
			}
			binary.LittleEndian.PutUint32(ip[i*4:], uint32(v))
		}
		return ip.String(), int(port), nil
	default:
		return "", 0, fmt.Errorf("unexpected socket address width %q", addr)
	}
}

type socketOwner struct {
	pid  int
	comm string
}

// socketOwners walks /proc/[pid]/fd and maps socket inodes to their owning
// process. Unreadable processes (permissions, races with exits) are
// skipped silently.
func (p ProcNetCollector) socketOwners() map[uint64]socketOwner {
	owners := make(map[uint64]socketOwner)
	entries, err := os.ReadDir(p.root())
	if err != nil {
		return owners
	}
	for _, ent := range entries {
		pid, err := strconv.Atoi(ent.Name())
		if err != nil {
			continue
		}
		fdDir := filepath.Join(p.root(), ent.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		comm := ""
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil || !strings.HasPrefix(link, "socket:[") {
				continue
			}
			inodeStr := strings.TrimSuffix(strings.TrimPrefix(link, "socket:["), "]")
			inode, err := strconv.ParseUint(inodeStr, 10, 64)
			if err != nil {
				continue
			}
			if comm == "" {
				if b, err := os.ReadFile(filepath.Join(p.root(), ent.Name(), "comm")); err == nil {
					comm = strings.TrimSpace(string(b))
				}
			}
			if _, taken := owners[inode]; !taken {
				owners[inode] = socketOwner{pid: pid, comm: comm}
			}
		}
	}
	return owners
}
