// services/classify.go - well-known service classification for open ports
package services

import "strings"

// Service type buckets used by the status resolver.
const (
	ServiceTypeSystem   = "system"
	ServiceTypeWeb      = "web"
	ServiceTypeDatabase = "database"
	ServiceTypeService  = "service"
)

// ServiceDescriptor describes what a port most likely is.
type ServiceDescriptor struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// wellKnownPorts is an immutable lookup table built once at startup.
var wellKnownPorts = map[int]ServiceDescriptor{
	22:   {Name: "SSH", Type: ServiceTypeSystem, Description: "Secure Shell"},
	23:   {Name: "Telnet", Type: ServiceTypeSystem, Description: "Telnet"},
	25:   {Name: "SMTP", Type: ServiceTypeService, Description: "Mail Server"},
	53:   {Name: "DNS", Type: ServiceTypeSystem, Description: "Domain Name Server"},
	80:   {Name: "HTTP", Type: ServiceTypeWeb, Description: "Web Server"},
	110:  {Name: "POP3", Type: ServiceTypeService, Description: "Mail Server"},
	143:  {Name: "IMAP", Type: ServiceTypeService, Description: "Mail Server"},
	443:  {Name: "HTTPS", Type: ServiceTypeWeb, Description: "Secure Web Server"},
	993:  {Name: "IMAPS", Type: ServiceTypeService, Description: "Secure Mail Server"},
	995:  {Name: "POP3S", Type: ServiceTypeService, Description: "Secure Mail Server"},
	1433: {Name: "MSSQL", Type: ServiceTypeDatabase, Description: "Microsoft SQL Server"},
	3306: {Name: "MySQL", Type: ServiceTypeDatabase, Description: "MySQL Database"},
	5432: {Name: "PostgreSQL", Type: ServiceTypeDatabase, Description: "PostgreSQL Database"},
	6379: {Name: "Redis", Type: ServiceTypeDatabase, Description: "Redis Cache"},
	8080: {Name: "HTTP Alt", Type: ServiceTypeWeb, Description: "Alternative Web Server"},
	8443: {Name: "HTTPS Alt", Type: ServiceTypeWeb, Description: "Alternative Secure Web Server"},
	9000: {Name: "Web App", Type: ServiceTypeWeb, Description: "Web Application"},
}

// ownerKeywords maps lowercase process-name substrings to descriptors.
// Checked in a fixed order so classification stays deterministic.
var ownerKeywords = []struct {
	keys []string
	desc ServiceDescriptor
}{
	{[]string{"ssh", "sshd"}, ServiceDescriptor{Name: "SSH", Type: ServiceTypeSystem, Description: "Secure Shell"}},
	{[]string{"nginx", "apache", "httpd"}, ServiceDescriptor{Name: "Web Server", Type: ServiceTypeWeb, Description: "Web Server"}},
	{[]string{"mysql", "postgres", "redis"}, ServiceDescriptor{Name: "Database", Type: ServiceTypeDatabase, Description: "Database Server"}},
}

// Classify maps a port number and optional owning-process name to a service
// descriptor. Total function: always returns a descriptor, never fails.
// Resolution order: exact well-known port, owner keyword, web port-range
// heuristic, privileged-port fallback, generic service.
func Classify(port int, owner string) ServiceDescriptor {
	if desc, ok := wellKnownPorts[port]; ok {
		return desc
	}

	if owner != "" {
		lower := strings.ToLower(owner)
		for _, kw := range ownerKeywords {
			for _, k := range kw.keys {
				if strings.Contains(lower, k) {
					return kw.desc
				}
			}
		}
	}

	if isLikelyWebPort(port) {
		return ServiceDescriptor{Name: "Web Service", Type: ServiceTypeWeb, Description: "Likely Web Service"}
	}

	if port > 0 && port < 1024 {
		return ServiceDescriptor{Name: "System Service", Type: ServiceTypeSystem, Description: "System Service"}
	}

	return ServiceDescriptor{Name: "Service", Type: ServiceTypeService, Description: "Unknown Service"}
}

// isLikelyWebPort covers the conventional web/dev-server port ranges.
func isLikelyWebPort(port int) bool {
	switch port {
	case 80, 443, 8080, 8443:
		return true
	}
	return (port >= 3000 && port <= 4999) ||
		(port >= 8000 && port <= 8999) ||
		(port >= 9000 && port <= 9999)
}
