package model

// OperationClass is the closed set of keys the registry enforces
// at-most-one-live-job-per-class over (§4.1, §3).
type OperationClass string

const (
	OpPing         OperationClass = "ping"
	OpTraceroute   OperationClass = "traceroute"
	OpPortscan     OperationClass = "portscan"
	OpHostscan     OperationClass = "hostscan"
	OpNeighborscan OperationClass = "neighborscan"
)
