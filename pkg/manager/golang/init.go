package golang

import (
	"github.com/flanksource/toolchains/pkg/manager"
)

func init() {
	manager.Register(Moniker, func(cacheDir string) manager.PackageManager {
		return New(cacheDir)
	})
}
