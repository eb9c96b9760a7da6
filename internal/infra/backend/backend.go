package backend

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/pkg/config"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/invoker"
)

// New builds the transport selected by BACKEND_MODE
func New(cfg config.BackendConfig) (invoker.Transport, error) {
	switch cfg.Mode {
	case config.BackendHTTP:
		log.Info().Str("url", cfg.URL).Msg("Using HTTP backend")
		return NewHTTPTransport(cfg.URL, cfg.Token), nil

	case config.BackendMock:
		fixtures, err := LoadFixtures(cfg.Fixtures)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("fixtures", cfg.Fixtures).
			Int("commands", len(fixtures.Commands)).
			Msg("Using mock backend")
		return NewMockTransport(fixtures), nil

	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Mode)
	}
}
