// Package autoload initializes the process logger from the environment as an
// import side effect.
package autoload

import (
	configx "github.com/casavia/concierge/pkg/config"
	logx "github.com/casavia/concierge/pkg/logger"
)

func init() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*cfg)
}
