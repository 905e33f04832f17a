// services/aggregate.go - dedup/merge of raw collector observations
package services

import (
	"fmt"
	"strings"

	"portscope/common"
)

// AggregatedPort is one deduplicated entry of the ports listing: the
// first-seen observation for its group plus the merged owner and pid sets.
type AggregatedPort struct {
	HostIP      string   `json:"host_ip"`
	HostPort    int      `json:"host_port"`
	Protocol    string   `json:"protocol"`
	Owner       string   `json:"owner"`  // comma-joined owners
	Owners      []string `json:"owners"` // insertion order, deduplicated
	PIDs        []int    `json:"pids,omitempty"`
	ContainerID string   `json:"container_id,omitempty"`
	Internal    bool     `json:"internal"`
}

// groupKey is the merge key for the listing. It is deliberately narrower
// than the 6-tuple annotation identity: two containers publishing the same
// host port collapse into one listed entry with both owners, while their
// annotations stay distinct. See DESIGN.md for the two-tier rationale.
func groupKey(o common.PortObservation) string {
	return fmt.Sprintf("%s:%d:%s", o.HostIP, o.HostPort, o.Protocol)
}

// Aggregate folds raw observations into deduplicated entries. Observations
// missing a host IP or port are dropped. Output order is the first-seen
// order of each group key; owner and pid lists accumulate in order of first
// appearance.
func Aggregate(observations []common.PortObservation) []*AggregatedPort {
	byKey := make(map[string]*AggregatedPort)
	var out []*AggregatedPort

	for _, o := range observations {
		if o.HostIP == "" || o.HostPort == 0 {
			continue
		}

		key := groupKey(o)
		entry, ok := byKey[key]
		if !ok {
			entry = &AggregatedPort{
				HostIP:      o.HostIP,
				HostPort:    o.HostPort,
				Protocol:    o.Protocol,
				ContainerID: o.ContainerID,
				Internal:    o.Internal,
			}
			byKey[key] = entry
			out = append(out, entry)
		}

		if o.Owner != "" && !containsString(entry.Owners, o.Owner) {
			entry.Owners = append(entry.Owners, o.Owner)
		}
		if o.PID > 0 && !containsInt(entry.PIDs, o.PID) {
			entry.PIDs = append(entry.PIDs, o.PID)
		}
	}

	for _, entry := range out {
		entry.Owner = strings.Join(entry.Owners, ", ")
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}
