package capture

import (
	"net/netip"
	"strconv"

	"github.com/serialx/hashring"
)

// FlowHasher assigns a packet's 5-tuple to a worker index using a
// consistent-hash ring over worker ids. Both directions of a flow are
// normalized to the same ring key before hashing, so reply traffic
// always lands on the worker that saw the request.
type FlowHasher struct {
	ring        *hashring.HashRing
	workerCount int
}

// NewFlowHasher builds a ring with one node per worker index.
func NewFlowHasher(workerCount int) *FlowHasher {
	nodes := make([]string, workerCount)
	for i := range nodes {
		nodes[i] = strconv.Itoa(i)
	}
	return &FlowHasher{ring: hashring.New(nodes), workerCount: workerCount}
}

// WorkerIndex returns the worker index both directions of this flow
// should be dispatched to.
func (h *FlowHasher) WorkerIndex(srcIP, dstIP netip.Addr, srcPort, dstPort uint16, protocol uint8) int {
	if h.workerCount <= 1 {
		return 0
	}
	key := flowKey(srcIP, dstIP, srcPort, dstPort, protocol)
	node, ok := h.ring.GetNode(key)
	if !ok {
		return 0
	}
	idx, err := strconv.Atoi(node)
	if err != nil {
		return 0
	}
	return idx
}

// flowKey builds a direction-independent string key: the two endpoints
// are ordered so (src, dst) and (dst, src) produce the same key.
func flowKey(srcIP, dstIP netip.Addr, srcPort, dstPort uint16, protocol uint8) string {
	a := endpoint{srcIP, srcPort}
	b := endpoint{dstIP, dstPort}
	if b.less(a) {
		a, b = b, a
	}
	return a.ip.String() + ":" + strconv.Itoa(int(a.port)) + "-" +
		b.ip.String() + ":" + strconv.Itoa(int(b.port)) + "/" + strconv.Itoa(int(protocol))
}

type endpoint struct {
	ip   netip.Addr
	port uint16
}

func (e endpoint) less(o endpoint) bool {
	if c := e.ip.Compare(o.ip); c != 0 {
		return c < 0
	}
	return e.port < o.port
}
