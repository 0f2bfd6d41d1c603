//go:build !sqlite
// +build !sqlite

package store

import (
	"errors"

	logx "notifyd/pkg/logx"
)

func openSQLiteHooks(cfg HookConfig, log logx.Logger) (HookStore, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite hook store not built: build with -tags sqlite")
}
