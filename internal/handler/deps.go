package handler

import (
	"linechat/internal/app/chat"
	"linechat/internal/configs"
)

// AppDeps bundles everything the HTTP layer needs.
type AppDeps struct {
	Server *chat.Server
	Config *configs.AppConfig
}
