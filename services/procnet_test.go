package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portscope/common"
)

const procNetTCPFixture = `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 00000000:0016 00000000:0000 0A 00000000:00000000 00:00000000 00000000     0        0 12345 1 0000000000000000 100 0 0 10 0
   1: 0100007F:1F90 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 67890 1 0000000000000000 100 0 0 10 0
   2: 0100007F:A1B2 0100007F:0016 01 00000000:00000000 00:00000000 00000000  1000        0 99999 1 0000000000000000 100 0 0 10 0
`

const procNetTCP6Fixture = `  sl  local_address                         rem_address                        st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 00000000000000000000000000000000:0050 00000000000000000000000000000000:0000 0A 00000000:00000000 00:00000000 00000000     0        0 11111 1 0000000000000000 100 0 0 10 0
   1: 00000000000000000000000001000000:1538 00000000000000000000000000000000:0000 0A 00000000:00000000 00:00000000 00000000     0        0 22222 1 0000000000000000 100 0 0 10 0
`

func TestParseProcNet_FiltersByState(t *testing.T) {
	socks, err := parseProcNet(strings.NewReader(procNetTCPFixture), tcpListen)
	require.NoError(t, err)
	require.Len(t, socks, 2)

	assert.Equal(t, "0.0.0.0", socks[0].IP)
	assert.Equal(t, 22, socks[0].Port)
	assert.Equal(t, uint64(12345), socks[0].Inode)

	assert.Equal(t, "127.0.0.1", socks[1].IP)
	assert.Equal(t, 8080, socks[1].Port)
	assert.Equal(t, uint64(67890), socks[1].Inode)
}

func TestParseProcNet_IPv6(t *testing.T) {
	socks, err := parseProcNet(strings.NewReader(procNetTCP6Fixture), tcpListen)
	require.NoError(t, err)
	require.Len(t, socks, 2)

	assert.Equal(t, "::", socks[0].IP)
	assert.Equal(t, 80, socks[0].Port)

	assert.Equal(t, "::1", socks[1].IP)
	assert.Equal(t, 5432, socks[1].Port)
}

func TestParseProcNet_EmptyTable(t *testing.T) {
	header := "  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode\n"
	socks, err := parseProcNet(strings.NewReader(header), tcpListen)
	require.NoError(t, err)
	assert.Empty(t, socks)
}

func TestParseHexSocketAddr(t *testing.T) {
	ip, port, err := parseHexSocketAddr("0100007F:0050")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)
	assert.Equal(t, 80, port)

	_, _, err = parseHexSocketAddr("nonsense")
	assert.Error(t, err)

	_, _, err = parseHexSocketAddr("ZZZZ:0050")
	assert.Error(t, err)
}

func TestProcNetCollector_CollectFixtureTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "net"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "net", "tcp"), []byte(procNetTCPFixture), 0o644))

	// fake process owning inode 67890 through a dangling socket symlink
	fdDir := filepath.Join(root, "4242", "fd")
	require.NoError(t, os.MkdirAll(fdDir, 0o755))
	require.NoError(t, os.Symlink("socket:[67890]", filepath.Join(fdDir, "3")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "4242", "comm"), []byte("nginx\n"), 0o644))

	col := ProcNetCollector{Root: root}
	snap, err := col.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Ports, 2)

	byPort := map[int]common.PortObservation{}
	for _, o := range snap.Ports {
		byPort[o.HostPort] = o
	}

	assert.Equal(t, "", byPort[22].Owner)
	assert.Equal(t, "nginx", byPort[8080].Owner)
	assert.Equal(t, 4242, byPort[8080].PID)
	assert.Equal(t, common.ProtoTCP, byPort[8080].Protocol)
}

func TestProcNetCollector_MissingRoot(t *testing.T) {
	col := ProcNetCollector{Root: filepath.Join(t.TempDir(), "absent")}
	_, err := col.Collect(context.Background())
	assert.Error(t, err)
}
