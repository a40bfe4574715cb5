package gateway

import (
	"fmt"

	"github.com/nulzo/prism-relay/internal/cli"
	"github.com/nulzo/prism-relay/internal/llm"
	"go.uber.org/zap"
)

// ReportCredentials logs, per provider in declared order, whether a credential is
// configured. Credential values are never logged. It returns the number of providers
// that can be called directly.
func ReportCredentials(catalog llm.Catalog, log *zap.Logger) int {
	configured := 0

	for _, id := range llm.Known {
		cfg, err := catalog.Get(id)
		if err != nil {
			log.Error("Provider missing from catalog", zap.String("provider", string(id)))
			continue
		}

		if !cfg.HasCredential() {
			log.Warn(fmt.Sprintf("%s %s %s",
				cli.WarningSign(),
				cli.Style(fmt.Sprintf("%-12s", id), cli.Bold),
				cli.Style("no credential, set "+cfg.CredentialKey, cli.Yellow),
			), zap.String("provider", string(id)), zap.Bool("configured", false))
			continue
		}

		log.Info(fmt.Sprintf("%s %s %s",
			cli.CheckMark(),
			cli.Style(fmt.Sprintf("%-12s", id), cli.Bold),
			cli.Style(cfg.Model, cli.Cyan),
		), zap.String("provider", string(id)), zap.Bool("configured", true))
		configured++
	}

	if configured == 0 {
		log.Warn("No provider credentials configured. Direct calls will fail; only relays can serve requests.")
	}

	return configured
}
