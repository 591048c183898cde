//go:build !windows

package collector

import (
	"context"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
)

func queryWMI(context.Context, string, any) error {
	return fallback.ErrUnsupported
}
