package mail

import (
	"fmt"
	"strings"

	"github.com/zapsend/zapsend/internal/config"
)

// ResolveHost picks the SMTP submission endpoint for a sender address
// by matching the mail provider in its domain. Unknown providers get
// the configured default endpoint.
func ResolveHost(sender string, cfg config.SMTPConfig) (string, int) {
	domain := ""
	if at := strings.LastIndex(sender, "@"); at >= 0 {
		domain = strings.ToLower(sender[at+1:])
	}
	for provider, hc := range cfg.Providers {
		if strings.Contains(domain, provider) {
			return hc.Host, hc.Port
		}
	}
	return cfg.DefaultHost, cfg.DefaultPort
}

// FormatFrom builds a display-name From header from a bare address,
// using the local part as the name.
func FormatFrom(sender string) string {
	name := sender
	if at := strings.Index(sender, "@"); at > 0 {
		name = sender[:at]
	}
	return fmt.Sprintf("%s <%s>", name, sender)
}
