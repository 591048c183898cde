//go:build windows

package collector

import (
	"context"

	"github.com/yusufpapurcu/wmi"
)

// queryWMI runs a WQL query into dst, a pointer to a slice of structs whose
// field names match the class properties.
func queryWMI(ctx context.Context, query string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wmi.Query(query, dst)
}
