package instance

import (
	"os"

	"github.com/angelmondragon/ptm-finance-backend/pkg/env"
)

// GetID identifies this process in logs. FINANCE_INSTANCE_ID wins over the
// platform's DYNO, then the hostname.
func GetID() string {
	if id, ok := env.First("FINANCE_INSTANCE_ID", "DYNO"); ok {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
